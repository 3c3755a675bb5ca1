package tasks

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

// ExportUnit names a part of the library that can be exported.
type ExportUnit string

const (
	ExportResources ExportUnit = "resources"
	ExportTrainings ExportUnit = "trainings"
	ExportProgress  ExportUnit = "progress"
)

// ExportOpts contains configuration for library exports.
type ExportOpts struct {
	Format     formatter.Format // json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: trainhub_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4)
	UserID     string           // Include this user's progress
	Units      []ExportUnit     // Parts to export (default: everything available)
	Images     bool             // Download training cover images (markdown only)
}

// ExportResult summarizes an export run.
type ExportResult struct {
	Manifest     *formatter.Manifest
	ManifestPath string
}

type exportJob struct {
	name string
	run  func(ctx context.Context) (files []string, items int, err error)
}

// Export writes the library to disk with a worker pool and a manifest summarizing each unit.
// Failed units are recorded in the manifest; the run only fails when content cannot be loaded.
func (l *Library) Export(ctx context.Context, progress chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("trainhub_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if len(opts.Units) == 0 {
		opts.Units = []ExportUnit{ExportResources, ExportTrainings}
		if opts.UserID != "" {
			opts.Units = append(opts.Units, ExportProgress)
		}
	}
	if slices.Contains(opts.Units, ExportProgress) && opts.UserID == "" {
		return nil, fmt.Errorf("%w: a user is required to export progress", shared.ErrMissingArgument)
	}

	jobs, err := l.exportJobs(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := &formatter.Manifest{
		Format:     opts.Format,
		OutputDir:  opts.OutputDir,
		ExportedAt: time.Now().UTC(),
		Units:      make([]formatter.ManifestFile, 0, len(jobs)),
	}

	queue := make(chan exportJob, len(jobs))
	results := make(chan formatter.ManifestFile, len(jobs))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go l.exportWorker(ctx, &wg, queue, results)
	}

	for i, job := range jobs {
		sendProgress(progress, exportingUpdate(i+1, len(jobs), job.name))
		queue <- job
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		manifest.Units = append(manifest.Units, res)
		if res.Error == "" {
			manifest.Successful++
			sendProgress(progress, exportCompletedUpdate(completed, len(jobs), res.Name, len(res.Files)))
		} else {
			manifest.Failed++
			sendProgress(progress, exportFailedUpdate(completed, len(jobs), res.Name, fmt.Errorf("%s", res.Error)))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("export cancelled: %w", err)
	}

	slices.SortFunc(manifest.Units, func(a, b formatter.ManifestFile) int { return cmp.Compare(a.Name, b.Name) })

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	result := &ExportResult{Manifest: manifest}
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	l.logger.Info("export finished", "dir", opts.OutputDir, "successful", manifest.Successful, "failed", manifest.Failed)
	return result, nil
}

func (l *Library) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan exportJob, results chan<- formatter.ManifestFile) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		files, items, err := job.run(ctx)
		res := formatter.ManifestFile{Name: job.name, Files: files, Items: items}
		if err != nil {
			res.Error = err.Error()
		}
		results <- res
	}
}

// exportJobs loads the content up front so the workers only render and write.
func (l *Library) exportJobs(ctx context.Context, opts ExportOpts) ([]exportJob, error) {
	var jobs []exportJob
	ext := opts.Format.Extension()

	for _, unit := range opts.Units {
		switch unit {
		case ExportResources:
			resources, err := l.Resources(ctx, ResourceFilter{})
			if err != nil {
				return nil, fmt.Errorf("failed to load resources: %w", err)
			}
			path := filepath.Join(opts.OutputDir, "resources."+ext)
			jobs = append(jobs, exportJob{
				name: "resources",
				run: func(context.Context) ([]string, int, error) {
					data, err := formatter.RenderResources(opts.Format, resources)
					if err != nil {
						return nil, 0, err
					}
					return []string{path}, len(resources), formatter.WriteFile(path, data)
				},
			})

		case ExportTrainings:
			trainings, err := l.Trainings(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load trainings: %w", err)
			}
			if opts.Format != formatter.FormatMarkdown {
				path := filepath.Join(opts.OutputDir, "trainings."+ext)
				jobs = append(jobs, exportJob{
					name: "trainings",
					run: func(context.Context) ([]string, int, error) {
						data, err := formatter.RenderTrainings(opts.Format, trainings)
						if err != nil {
							return nil, 0, err
						}
						return []string{path}, len(trainings), formatter.WriteFile(path, data)
					},
				})
				continue
			}
			used := make(map[string]int, len(trainings))
			for _, t := range trainings {
				name := trainingDirName(t, used)
				dir, err := containedPath(opts.OutputDir, "trainings", name)
				if err != nil {
					return nil, err
				}
				jobs = append(jobs, exportJob{
					name: "trainings/" + name,
					run: func(ctx context.Context) ([]string, int, error) {
						return l.exportTrainingMarkdown(ctx, t, dir, opts.Images)
					},
				})
			}

		case ExportProgress:
			summaries, err := l.ProgressReport(ctx, opts.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to load progress: %w", err)
			}
			path := filepath.Join(opts.OutputDir, "progress."+ext)
			jobs = append(jobs, exportJob{
				name: "progress",
				run: func(context.Context) ([]string, int, error) {
					data, err := formatter.RenderProgress(opts.Format, summaries)
					if err != nil {
						return nil, 0, err
					}
					return []string{path}, len(summaries), formatter.WriteFile(path, data)
				},
			})

		default:
			return nil, fmt.Errorf("%w: unknown export unit %q", shared.ErrInvalidArgument, unit)
		}
	}
	return jobs, nil
}

// trainingDirName derives a filesystem safe directory name from the training's
// slug, falling back to its ID. Repeated names get a numeric suffix.
func trainingDirName(t models.Training, used map[string]int) string {
	name := shared.Slugify(t.Slug)
	if name == "" {
		name = shared.Slugify(t.ID)
	}
	if name == "" {
		name = "training"
	}

	used[name]++
	if n := used[name]; n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
		used[name]++
	}
	return name
}

// containedPath joins elem onto root and rejects results outside root.
func containedPath(root string, elem ...string) (string, error) {
	path := filepath.Join(append([]string{root}, elem...)...)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: export path %q leaves %s", shared.ErrInvalidInput, filepath.Join(elem...), root)
	}
	return path, nil
}

// exportTrainingMarkdown writes one training as README.md with an optional cover image.
// A cover that cannot be downloaded is left out.
func (l *Library) exportTrainingMarkdown(ctx context.Context, t models.Training, dir string, images bool) ([]string, int, error) {
	var files []string
	var cover string

	if images && t.ImageURL != "" {
		data, err := formatter.DownloadImage(ctx, t.ImageURL)
		if err != nil {
			l.logger.Warn("failed to download cover image", "training", t.Slug, "error", err)
		} else {
			cover = "cover.jpg"
			path := filepath.Join(dir, cover)
			if err := formatter.WriteFile(path, data); err != nil {
				return nil, 0, err
			}
			files = append(files, path)
		}
	}

	path := filepath.Join(dir, "README.md")
	if err := formatter.WriteFile(path, formatter.TrainingMarkdown(t, cover)); err != nil {
		return files, 0, err
	}
	return append([]string{path}, files...), len(t.Steps), nil
}
