package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

const trainingColumns = `id, owner_id, title, slug, description, image_url, updated_at`

// TrainingRepository implements [models.Repository] for user authored [models.Training] persistence,
// including the training's ordered steps.
type TrainingRepository struct {
	db *sql.DB
}

// NewTrainingRepository creates a new [TrainingRepository] with the given database connection
func NewTrainingRepository(db *sql.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

func scanTraining(row scanner) (*models.Training, error) {
	var t models.Training
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Slug, &t.Description, &t.ImageURL, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Source = models.SourceUser
	return &t, nil
}

// Create inserts a training with its tags and steps. Steps get fresh IDs when
// they have none and positions follow slice order.
func (r *TrainingRepository) Create(t *models.Training) error {
	if t.Slug == "" {
		t.Slug = shared.Slugify(t.Title)
	}
	t.Tags = shared.NormalizeTags(t.Tags)
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "trainings")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	t.ID = shared.GenerateID()
	t.Source = models.SourceUser
	t.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO trainings (id, sequence, owner_id, title, slug, description, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, t.ID, sequence, t.OwnerID, t.Title, t.Slug, t.Description, t.ImageURL, now, now); err != nil {
		return conflictOr(err, "failed to insert training %s", t.Slug)
	}

	if err := replaceTags(tx, "training_tags", "training_id", t.ID, t.Tags); err != nil {
		return err
	}

	for i := range t.Steps {
		t.Steps[i].Position = i
		if t.Steps[i].ID == "" {
			t.Steps[i].ID = shared.GenerateID()
		}
		if err := insertStep(tx, t.ID, &t.Steps[i], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get retrieves a training with tags and steps by ID
func (r *TrainingRepository) Get(id string) (*models.Training, error) {
	return r.getWhere("id = ?", id)
}

// GetBySlug retrieves a training with tags and steps by slug
func (r *TrainingRepository) GetBySlug(slug string) (*models.Training, error) {
	return r.getWhere("slug = ?", slug)
}

func (r *TrainingRepository) getWhere(cond, arg string) (*models.Training, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE ` + cond + ` AND deleted_at IS NULL`

	t, err := scanTraining(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training %s: %w", arg, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query training: %w", err)
	}

	if err := r.hydrate([]*models.Training{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Update modifies a training's metadata, tags and steps in one transaction.
//
// Steps keep their IDs (so completions survive edits); steps without an ID are
// inserted, and stored steps missing from t.Steps are removed.
func (r *TrainingRepository) Update(t *models.Training) error {
	if t.Slug == "" {
		t.Slug = shared.Slugify(t.Title)
	}
	t.Tags = shared.NormalizeTags(t.Tags)
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	t.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE trainings
		SET title = ?, slug = ?, description = ?, image_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.Exec(query, t.Title, t.Slug, t.Description, t.ImageURL, now, t.ID)
	if err != nil {
		return conflictOr(err, "failed to update training %s", t.ID)
	}
	if err := checkAffected(result, "training", t.ID); err != nil {
		return err
	}

	if err := replaceTags(tx, "training_tags", "training_id", t.ID, t.Tags); err != nil {
		return err
	}

	existing, err := currentStepIDs(tx, t.ID)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(t.Steps))
	for i := range t.Steps {
		step := &t.Steps[i]
		step.Position = i

		if step.ID != "" && existing[step.ID] {
			keep[step.ID] = true
			_, err := tx.Exec(
				`UPDATE training_steps SET position = ?, title = ?, body = ?, video_url = ?, duration = ?, updated_at = ?
				WHERE id = ? AND training_id = ?`,
				step.Position, step.Title, step.Body, step.VideoURL, step.Duration, now, step.ID, t.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update step %s: %w", step.ID, err)
			}
			continue
		}

		step.ID = shared.GenerateID()
		if err := insertStep(tx, t.ID, step, now); err != nil {
			return err
		}
	}

	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM training_steps WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to remove step %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete soft-deletes a training by ID
func (r *TrainingRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE trainings SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete training: %w", err)
	}
	return checkAffected(result, "training", id)
}

// List retrieves trainings ordered by title.
//
// Supported criteria: "owner" (string), "tags" ([]string, all must match), "query" (string).
func (r *TrainingRepository) List(criteria map[string]any) ([]*models.Training, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE deleted_at IS NULL`
	args := []any{}

	if owner, ok := criteria["owner"].(string); ok && owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}

	if tags, ok := criteria["tags"].([]string); ok {
		if tags = shared.NormalizeTags(tags); len(tags) > 0 {
			query += fmt.Sprintf(` AND id IN (
				SELECT training_id FROM training_tags WHERE tag IN (%s)
				GROUP BY training_id HAVING COUNT(DISTINCT tag) = ?
			)`, placeholders(len(tags)))
			args = append(args, stringArgs(tags)...)
			args = append(args, len(tags))
		}
	}

	if q, ok := criteria["query"].(string); ok && strings.TrimSpace(q) != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
		query += " AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)"
		args = append(args, like, like)
	}

	query += " ORDER BY title COLLATE NOCASE ASC, sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trainings: %w", err)
	}

	var trainings []*models.Training
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan training: %w", err)
		}
		trainings = append(trainings, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if err := r.hydrate(trainings); err != nil {
		return nil, err
	}
	return trainings, nil
}

// AddStep appends a step to the end of the training.
func (r *TrainingRepository) AddStep(trainingID string, step *models.TrainingStep) error {
	if strings.TrimSpace(step.Title) == "" {
		return fmt.Errorf("%w: step title is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := trainingExists(tx, trainingID); err != nil {
		return err
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM training_steps WHERE training_id = ?`, trainingID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count steps: %w", err)
	}

	step.ID = shared.GenerateID()
	step.Position = count
	if err := insertStep(tx, trainingID, step, time.Now().UTC()); err != nil {
		return err
	}

	if err := touch(tx, trainingID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateStep changes a step's content; its position is unchanged.
func (r *TrainingRepository) UpdateStep(trainingID string, step *models.TrainingStep) error {
	if strings.TrimSpace(step.Title) == "" {
		return fmt.Errorf("%w: step title is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE training_steps SET title = ?, body = ?, video_url = ?, duration = ?, updated_at = ?
		WHERE id = ? AND training_id = ?`,
		step.Title, step.Body, step.VideoURL, step.Duration, time.Now().UTC(), step.ID, trainingID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	if err := checkAffected(result, "step", step.ID); err != nil {
		return err
	}

	if err := touch(tx, trainingID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveStep deletes a step and closes the gap in positions.
func (r *TrainingRepository) RemoveStep(trainingID, stepID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRow(
		`SELECT position FROM training_steps WHERE id = ? AND training_id = ?`, stepID, trainingID,
	).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("step %s: %w", stepID, shared.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query step: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM training_steps WHERE id = ?`, stepID); err != nil {
		return fmt.Errorf("failed to remove step: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE training_steps SET position = position - 1 WHERE training_id = ? AND position > ?`,
		trainingID, position,
	); err != nil {
		return fmt.Errorf("failed to compact positions: %w", err)
	}

	if err := touch(tx, trainingID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderSteps sets step positions to the order of stepIDs, which must be a
// permutation of the training's current step IDs.
func (r *TrainingRepository) ReorderSteps(trainingID string, stepIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := trainingExists(tx, trainingID); err != nil {
		return err
	}

	existing, err := currentStepIDs(tx, trainingID)
	if err != nil {
		return err
	}

	if len(stepIDs) != len(existing) {
		return fmt.Errorf("%w: expected %d step ids, got %d", shared.ErrInvalidInput, len(existing), len(stepIDs))
	}
	seen := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		if !existing[id] || seen[id] {
			return fmt.Errorf("%w: step ids must be a permutation of the training's steps", shared.ErrInvalidInput)
		}
		seen[id] = true
	}

	for i, id := range stepIDs {
		if _, err := tx.Exec(`UPDATE training_steps SET position = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("failed to move step %s: %w", id, err)
		}
	}

	if err := touch(tx, trainingID); err != nil {
		return err
	}
	return tx.Commit()
}

// hydrate loads tags and ordered steps for the trainings.
func (r *TrainingRepository) hydrate(trainings []*models.Training) error {
	if len(trainings) == 0 {
		return nil
	}

	ids := make([]string, len(trainings))
	byID := make(map[string]*models.Training, len(trainings))
	for i, t := range trainings {
		ids[i] = t.ID
		byID[t.ID] = t
		t.Steps = []models.TrainingStep{}
	}

	tags, err := loadTags(r.db, "training_tags", "training_id", ids)
	if err != nil {
		return err
	}
	for _, t := range trainings {
		t.Tags = tags[t.ID]
	}

	query := fmt.Sprintf(`
		SELECT training_id, id, position, title, body, video_url, duration
		FROM training_steps WHERE training_id IN (%s)
		ORDER BY training_id, position
	`, placeholders(len(ids)))

	rows, err := r.db.Query(query, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			trainingID string
			step       models.TrainingStep
		)
		if err := rows.Scan(&trainingID, &step.ID, &step.Position, &step.Title, &step.Body, &step.VideoURL, &step.Duration); err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}
		t := byID[trainingID]
		t.Steps = append(t.Steps, step)
	}
	return rows.Err()
}

func insertStep(tx *sql.Tx, trainingID string, step *models.TrainingStep, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO training_steps (id, training_id, position, title, body, video_url, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, trainingID, step.Position, step.Title, step.Body, step.VideoURL, step.Duration, now, now,
	)
	if err != nil {
		return conflictOr(err, "failed to insert step %s", step.ID)
	}
	return nil
}

func currentStepIDs(tx *sql.Tx, trainingID string) (map[string]bool, error) {
	rows, err := tx.Query(`SELECT id FROM training_steps WHERE training_id = ?`, trainingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func trainingExists(tx *sql.Tx, id string) error {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM trainings WHERE id = ? AND deleted_at IS NULL`, id).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to query training: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("training %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func touch(tx *sql.Tx, trainingID string) error {
	if _, err := tx.Exec(`UPDATE trainings SET updated_at = ? WHERE id = ?`, time.Now().UTC(), trainingID); err != nil {
		return fmt.Errorf("failed to touch training: %w", err)
	}
	return nil
}
