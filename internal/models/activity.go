package models

import "time"

// Favorite records that a user bookmarked an item.
type Favorite struct {
	UserID    string
	Kind      Kind
	ItemID    string
	CreatedAt time.Time
}

// FavoriteKey identifies a favorited item independent of the user.
type FavoriteKey struct {
	Kind   Kind
	ItemID string
}

// StepCompletion records that a user completed one step of a training.
type StepCompletion struct {
	UserID      string
	TrainingID  string
	StepID      string
	CompletedAt time.Time
}

// TrainingProgress summarizes a user's completion of a training.
type TrainingProgress struct {
	TrainingID string
	Total      int
	Completed  int
	Percent    int
	NextStep   *TrainingStep
	Done       bool
	steps      map[string]bool
}

// NewTrainingProgress builds a summary from the training's current steps and
// the set of step IDs the user has completed. IDs of removed steps are ignored.
func NewTrainingProgress(t *Training, completed map[string]bool) TrainingProgress {
	p := TrainingProgress{
		TrainingID: t.ID,
		Total:      len(t.Steps),
		steps:      make(map[string]bool, len(t.Steps)),
	}

	for i := range t.Steps {
		step := t.Steps[i]
		if completed[step.ID] {
			p.Completed++
			p.steps[step.ID] = true
			continue
		}
		if p.NextStep == nil {
			p.NextStep = &step
		}
	}

	if p.Total > 0 {
		p.Percent = p.Completed * 100 / p.Total
	}
	p.Done = p.Total > 0 && p.Completed == p.Total
	return p
}

// IsComplete reports whether the step counts as completed in this summary.
func (p TrainingProgress) IsComplete(stepID string) bool {
	return p.steps[stepID]
}

// Started reports whether any current step is complete.
func (p TrainingProgress) Started() bool {
	return p.Completed > 0
}

// TrainingSummary pairs a training with one user's progress through it.
type TrainingSummary struct {
	Training Training
	Progress TrainingProgress
}
