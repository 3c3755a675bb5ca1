package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// ProgressRepository persists which training steps each user completed.
//
// Completions reference steps by ID only, so CMS trainings (which have no local
// rows) are tracked the same way as user authored ones.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new [ProgressRepository] with the given database connection
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Complete records the step as done. Completing it again is a no-op.
func (r *ProgressRepository) Complete(userID, trainingID, stepID string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO step_completions (user_id, training_id, step_id, completed_at) VALUES (?, ?, ?, ?)`,
		userID, trainingID, stepID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete step: %w", err)
	}
	return nil
}

// Uncomplete removes the step's completion.
func (r *ProgressRepository) Uncomplete(userID, trainingID, stepID string) error {
	_, err := r.db.Exec(
		`DELETE FROM step_completions WHERE user_id = ? AND training_id = ? AND step_id = ?`,
		userID, trainingID, stepID,
	)
	if err != nil {
		return fmt.Errorf("failed to uncomplete step: %w", err)
	}
	return nil
}

// Completed returns the set of step IDs the user completed in the training.
func (r *ProgressRepository) Completed(userID, trainingID string) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT step_id FROM step_completions WHERE user_id = ? AND training_id = ?`, userID, trainingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completed[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return completed, nil
}

// Reset clears every completion of the training for the user.
func (r *ProgressRepository) Reset(userID, trainingID string) error {
	_, err := r.db.Exec(`DELETE FROM step_completions WHERE user_id = ? AND training_id = ?`, userID, trainingID)
	if err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	return nil
}

// ListTrainings returns the IDs of trainings where the user completed at least
// one step, most recently active first.
func (r *ProgressRepository) ListTrainings(userID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT training_id FROM step_completions WHERE user_id = ?
		GROUP BY training_id ORDER BY MAX(completed_at) DESC, training_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trainings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan training id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
