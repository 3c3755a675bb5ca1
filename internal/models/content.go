package models

import (
	"errors"
	"strings"
	"time"
)

// Category groups posts and resources.
type Category struct {
	ID    string `json:"_id,omitempty"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// Tag is a taxonomy label. Count is filled in when listing tags over a set of resources.
type Tag struct {
	ID    string `json:"_id,omitempty"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Count int    `json:"count,omitempty"`
}

// Post is a blog post.
type Post struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Body        string     `json:"body"`
	PublishedAt time.Time  `json:"publishedAt"`
	ImageRef    string     `json:"image"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Author      string     `json:"author"`
	Categories  []Category `json:"categories"`
}

// Resource is a downloadable or linkable content item.
type Resource struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	FileURL     string    `json:"fileUrl"`
	FileKey     string    `json:"-"`
	ImageRef    string    `json:"image"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Tags        []string  `json:"tags"`
	Category    *Category `json:"category"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      Source    `json:"source,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Validate checks the fields required to store a user authored resource.
func (r *Resource) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.Slug == "" {
		return errors.New("slug is required")
	}
	if r.OwnerID == "" {
		return errors.New("owner is required")
	}
	if r.URL == "" && r.FileURL == "" {
		return errors.New("a link or an uploaded file is required")
	}
	return nil
}

// HasTag reports whether the resource carries the given normalized tag.
func (r *Resource) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Link returns the file URL when present, otherwise the external URL.
func (r *Resource) Link() string {
	if r.FileURL != "" {
		return r.FileURL
	}
	return r.URL
}

// TrainingStep is one ordered step of a training.
type TrainingStep struct {
	ID       string `json:"_key"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	VideoURL string `json:"videoUrl"`
	Duration int    `json:"duration"` // minutes
	Position int    `json:"position"`
}

// Training is an ordered sequence of steps.
type Training struct {
	ID          string         `json:"_id"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	ImageRef    string         `json:"image"`
	ImageURL    string         `json:"imageUrl,omitempty"`
	Tags        []string       `json:"tags"`
	Steps       []TrainingStep `json:"steps"`
	Source      Source         `json:"source,omitempty"`
	OwnerID     string         `json:"ownerId,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty"`
}

// Validate checks the fields required to store a user authored training.
func (t *Training) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("title is required")
	}
	if t.Slug == "" {
		return errors.New("slug is required")
	}
	if t.OwnerID == "" {
		return errors.New("owner is required")
	}
	for _, s := range t.Steps {
		if strings.TrimSpace(s.Title) == "" {
			return errors.New("every step needs a title")
		}
	}
	return nil
}

// Step returns the step with the given ID.
func (t *Training) Step(id string) (TrainingStep, bool) {
	for _, s := range t.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return TrainingStep{}, false
}

// TotalDuration sums step durations in minutes.
func (t *Training) TotalDuration() int {
	total := 0
	for _, s := range t.Steps {
		total += s.Duration
	}
	return total
}
