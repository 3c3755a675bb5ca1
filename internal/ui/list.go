package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/models"
)

var (
	_ list.Item = resourceItem{}
	_ list.Item = trainingItem{}
)

// star marks favorited items in list titles.
func star(on bool) string {
	if on {
		return "★ "
	}
	return ""
}

// resourceItem wraps [models.Resource] to implement [list.Item].
type resourceItem struct {
	resource models.Resource
	favorite bool
}

func (i resourceItem) FilterValue() string { return i.resource.Title }
func (i resourceItem) Title() string       { return star(i.favorite) + i.resource.Title }
func (i resourceItem) Description() string {
	parts := []string{string(i.resource.Source)}
	if len(i.resource.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(i.resource.Tags, " #"))
	}
	if i.resource.Description != "" {
		parts = append(parts, i.resource.Description)
	}
	return strings.Join(parts, " • ")
}

// trainingItem wraps [models.Training] and the user's progress to implement [list.Item].
type trainingItem struct {
	training models.Training
	progress models.TrainingProgress
	favorite bool
}

func (i trainingItem) FilterValue() string { return i.training.Title }
func (i trainingItem) Title() string       { return star(i.favorite) + i.training.Title }
func (i trainingItem) Description() string {
	desc := fmt.Sprintf("%d steps", len(i.training.Steps))
	if minutes := i.training.TotalDuration(); minutes > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatter.FormatMinutes(minutes))
	}
	if i.progress.Started() {
		desc = fmt.Sprintf("%s • %s %d%%", desc, formatter.ProgressBar(i.progress.Percent, 10), i.progress.Percent)
	}
	return desc
}
