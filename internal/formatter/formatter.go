// package formatter renders resources, trainings and progress reports as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

// Format is an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat validates a format name. "md" and "text" are accepted aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return "json"
	}
}

// FormatMinutes renders a duration in minutes as "45m" or "1h 05m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// ProgressBar draws a fixed width bar such as "[#####-----]".
func ProgressBar(percent, width int) string {
	if width <= 0 {
		width = 10
	}
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func categoryTitle(c *models.Category) string {
	if c == nil {
		return ""
	}
	return c.Title
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ResourcesToCSV converts resources to CSV with columns: ID, Title, Slug, Source, Link, Tags, Category, Published
func ResourcesToCSV(resources []models.Resource) ([]byte, error) {
	records := make([][]string, 0, len(resources))
	for _, r := range resources {
		records = append(records, []string{
			r.ID,
			r.Title,
			r.Slug,
			string(r.Source),
			r.Link(),
			strings.Join(r.Tags, ";"),
			categoryTitle(r.Category),
			formatDate(r.PublishedAt),
		})
	}
	return writeCSV([]string{"ID", "Title", "Slug", "Source", "Link", "Tags", "Category", "Published"}, records)
}

// ResourcesToMarkdown converts resources to a Markdown list grouped under one heading
func ResourcesToMarkdown(resources []models.Resource) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Resources\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n\n", len(resources)))

	for _, r := range resources {
		buf.WriteString(fmt.Sprintf("## [%s](%s)\n\n", r.Title, r.Link()))
		if r.Description != "" {
			buf.WriteString(r.Description + "\n\n")
		}
		if len(r.Tags) > 0 {
			buf.WriteString(fmt.Sprintf("**Tags**: %s\n", strings.Join(r.Tags, ", ")))
		}
		if c := categoryTitle(r.Category); c != "" {
			buf.WriteString(fmt.Sprintf("**Category**: %s\n", c))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ResourcesToText converts resources to plain text, one per line
func ResourcesToText(resources []models.Resource) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Resources: %d\n\n", len(resources)))
	for i, r := range resources {
		line := fmt.Sprintf("%d. %s <%s>", i+1, r.Title, r.Link())
		if len(r.Tags) > 0 {
			line += " [" + strings.Join(r.Tags, ", ") + "]"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// TrainingsToCSV converts trainings to CSV with one row per step:
// Training ID, Training, Slug, Position, Step ID, Step, Duration, Video
func TrainingsToCSV(trainings []models.Training) ([]byte, error) {
	var records [][]string
	for _, t := range trainings {
		for _, s := range t.Steps {
			records = append(records, []string{
				t.ID,
				t.Title,
				t.Slug,
				strconv.Itoa(s.Position + 1),
				s.ID,
				s.Title,
				strconv.Itoa(s.Duration),
				s.VideoURL,
			})
		}
	}
	return writeCSV([]string{"Training ID", "Training", "Slug", "Position", "Step ID", "Step", "Duration", "Video"}, records)
}

// TrainingMarkdown converts one training to Markdown with optional cover image
func TrainingMarkdown(t models.Training, imageFilename string) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", t.Title))
	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}
	if t.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", t.Description))
	}
	buf.WriteString(fmt.Sprintf("**Steps**: %d\n", len(t.Steps)))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", FormatMinutes(t.TotalDuration())))
	if len(t.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("**Tags**: %s\n", strings.Join(t.Tags, ", ")))
	}
	buf.WriteString("\n## Steps\n\n")

	for i, s := range t.Steps {
		line := fmt.Sprintf("%d. %s", i+1, s.Title)
		if s.Duration > 0 {
			line += fmt.Sprintf(" [%s]", FormatMinutes(s.Duration))
		}
		if s.VideoURL != "" {
			line += fmt.Sprintf(" ([video](%s))", s.VideoURL)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes()
}

// TrainingsToMarkdown converts trainings to a single Markdown document
func TrainingsToMarkdown(trainings []models.Training) ([]byte, error) {
	var buf bytes.Buffer
	for i, t := range trainings {
		if i > 0 {
			buf.WriteString("\n---\n\n")
		}
		buf.Write(TrainingMarkdown(t, ""))
	}
	return buf.Bytes(), nil
}

// TrainingsToText converts trainings to plain text
func TrainingsToText(trainings []models.Training) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Trainings: %d\n", len(trainings)))
	for _, t := range trainings {
		buf.WriteString(fmt.Sprintf("\n%s (%d steps, %s)\n", t.Title, len(t.Steps), FormatMinutes(t.TotalDuration())))
		for i, s := range t.Steps {
			buf.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s.Title))
		}
	}

	return buf.Bytes(), nil
}

func nextStepTitle(p models.TrainingProgress) string {
	if p.NextStep == nil {
		return ""
	}
	return p.NextStep.Title
}

// ProgressToCSV converts a progress report to CSV with columns: Training, Completed, Total, Percent, Next Step
func ProgressToCSV(summaries []models.TrainingSummary) ([]byte, error) {
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			s.Training.Title,
			strconv.Itoa(s.Progress.Completed),
			strconv.Itoa(s.Progress.Total),
			strconv.Itoa(s.Progress.Percent),
			nextStepTitle(s.Progress),
		})
	}
	return writeCSV([]string{"Training", "Completed", "Total", "Percent", "Next Step"}, records)
}

// ProgressToMarkdown converts a progress report to a Markdown table
func ProgressToMarkdown(summaries []models.TrainingSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Training Progress\n\n")
	buf.WriteString("| Training | Progress | Next Step |\n")
	buf.WriteString("|---|---|---|\n")
	for _, s := range summaries {
		next := nextStepTitle(s.Progress)
		if s.Progress.Done {
			next = "Done"
		}
		buf.WriteString(fmt.Sprintf("| %s | %d/%d (%d%%) | %s |\n",
			s.Training.Title, s.Progress.Completed, s.Progress.Total, s.Progress.Percent, next))
	}

	return buf.Bytes(), nil
}

// ProgressToText converts a progress report to plain text with progress bars
func ProgressToText(summaries []models.TrainingSummary) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range summaries {
		buf.WriteString(fmt.Sprintf("%s %3d%% %s\n", ProgressBar(s.Progress.Percent, 20), s.Progress.Percent, s.Training.Title))
		if next := nextStepTitle(s.Progress); next != "" {
			buf.WriteString(fmt.Sprintf("    next: %s\n", next))
		}
	}
	return buf.Bytes(), nil
}

// RenderResources renders resources in the given format
func RenderResources(f Format, resources []models.Resource) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ResourcesToCSV(resources)
	case FormatMarkdown:
		return ResourcesToMarkdown(resources)
	case FormatText:
		return ResourcesToText(resources)
	default:
		return shared.MarshalJSON(resources, true)
	}
}

// RenderTrainings renders trainings in the given format
func RenderTrainings(f Format, trainings []models.Training) ([]byte, error) {
	switch f {
	case FormatCSV:
		return TrainingsToCSV(trainings)
	case FormatMarkdown:
		return TrainingsToMarkdown(trainings)
	case FormatText:
		return TrainingsToText(trainings)
	default:
		return shared.MarshalJSON(trainings, true)
	}
}

type progressJSON struct {
	TrainingID string `json:"trainingId"`
	Training   string `json:"training"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	NextStep   string `json:"nextStep,omitempty"`
	Done       bool   `json:"done"`
}

// RenderProgress renders a progress report in the given format
func RenderProgress(f Format, summaries []models.TrainingSummary) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ProgressToCSV(summaries)
	case FormatMarkdown:
		return ProgressToMarkdown(summaries)
	case FormatText:
		return ProgressToText(summaries)
	default:
		rows := make([]progressJSON, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, progressJSON{
				TrainingID: s.Training.ID,
				Training:   s.Training.Title,
				Completed:  s.Progress.Completed,
				Total:      s.Progress.Total,
				Percent:    s.Progress.Percent,
				NextStep:   nextStepTitle(s.Progress),
				Done:       s.Progress.Done,
			})
		}
		return shared.MarshalJSON(rows, true)
	}
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}
