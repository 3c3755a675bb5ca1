package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/services"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CMSPosts lists blog posts from the CMS.
func (r *Runner) CMSPosts(ctx context.Context, cmd *cli.Command) error {
	cms, err := r.contentService()
	if err != nil {
		return err
	}

	posts, err := cms.Posts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch posts: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(posts, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d posts:\n\n", len(posts))
	for i, p := range posts {
		r.writePlain("%d. %s\n", i+1, p.Title)
		r.writePlain("   Slug: %s\n", p.Slug)
		if !p.PublishedAt.IsZero() {
			r.writePlain("   Published: %s\n", p.PublishedAt.Format("2006-01-02"))
		}
		if p.Author != "" {
			r.writePlain("   Author: %s\n", p.Author)
		}
		r.writePlain("\n")
	}
	return nil
}

// CMSResources lists resources from the CMS, optionally narrowed by tags.
func (r *Runner) CMSResources(ctx context.Context, cmd *cli.Command) error {
	cms, err := r.contentService()
	if err != nil {
		return err
	}

	resources, err := cms.Resources(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch resources: %w", err)
	}

	if tags := cmd.StringSlice("tag"); len(tags) > 0 {
		filter := tasks.ResourceFilter{Tags: tags}
		matched := make([]models.Resource, 0, len(resources))
		for i := range resources {
			if filter.Match(&resources[i]) {
				matched = append(matched, resources[i])
			}
		}
		resources = matched
	}

	if cmd.Bool("json") {
		return r.writeJSON(resources, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d resources:\n\n", len(resources))
	for i, res := range resources {
		r.writePlain("%d. %s\n", i+1, res.Title)
		r.writePlain("   Slug: %s\n", res.Slug)
		if len(res.Tags) > 0 {
			r.writePlain("   Tags: %s\n", strings.Join(res.Tags, ", "))
		}
		if link := res.Link(); link != "" {
			r.writePlain("   Link: %s\n", link)
		}
		r.writePlain("\n")
	}
	return nil
}

// CMSTrainings lists trainings and their steps from the CMS.
func (r *Runner) CMSTrainings(ctx context.Context, cmd *cli.Command) error {
	cms, err := r.contentService()
	if err != nil {
		return err
	}

	trainings, err := cms.Trainings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch trainings: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(trainings, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d trainings:\n\n", len(trainings))
	for i, t := range trainings {
		r.writePlain("%d. %s (%d steps, %s)\n", i+1, t.Title, len(t.Steps), formatter.FormatMinutes(t.TotalDuration()))
		for j, s := range t.Steps {
			r.writePlain("   %d. %s\n", j+1, s.Title)
		}
		r.writePlain("\n")
	}
	return nil
}

// CMSTags lists the CMS tag taxonomy.
func (r *Runner) CMSTags(ctx context.Context, cmd *cli.Command) error {
	cms, err := r.contentService()
	if err != nil {
		return err
	}

	tags, err := cms.Tags(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tags: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tags, cmd.Bool("pretty"))
	}

	for _, t := range tags {
		r.writePlain("%-24s %s\n", t.Slug, t.Title)
	}
	return nil
}

// parseParams turns name=value pairs into query parameters. Values that parse
// as JSON keep their JSON type; anything else is a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: parameter %q must be name=value", shared.ErrInvalidArgument, pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		params[name] = decoded
	}
	return params, nil
}

// CMSQuery runs a raw query against the CMS and prints the response body.
func (r *Runner) CMSQuery(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query is required", shared.ErrMissingArgument)
	}

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	cms, err := r.contentService()
	if err != nil {
		return err
	}
	svc, ok := cms.(*services.CMSService)
	if !ok {
		return fmt.Errorf("%w: raw queries need the CMS client", shared.ErrServiceUnavailable)
	}

	r.logger.Debug("raw query", "query", query, "params", len(params))

	resp, err := svc.Client().Raw(ctx, query, params)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
