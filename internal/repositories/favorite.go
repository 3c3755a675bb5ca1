package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
)

// FavoriteRepository persists per user favorites. Favorites are keyed by
// (user, kind, item) and are hard deleted.
type FavoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new [FavoriteRepository] with the given database connection
func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add marks the item as a favorite. Adding an existing favorite is a no-op.
func (r *FavoriteRepository) Add(userID string, kind models.Kind, itemID string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO favorites (user_id, kind, item_id, created_at) VALUES (?, ?, ?, ?)`,
		userID, string(kind), itemID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// Remove unmarks the item. Removing a missing favorite is a no-op.
func (r *FavoriteRepository) Remove(userID string, kind models.Kind, itemID string) error {
	_, err := r.db.Exec(
		`DELETE FROM favorites WHERE user_id = ? AND kind = ? AND item_id = ?`, userID, string(kind), itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// Toggle flips the favorite and returns whether the item is now a favorite.
func (r *FavoriteRepository) Toggle(userID string, kind models.Kind, itemID string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`DELETE FROM favorites WHERE user_id = ? AND kind = ? AND item_id = ?`, userID, string(kind), itemID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if removed == 0 {
		_, err = tx.Exec(
			`INSERT INTO favorites (user_id, kind, item_id, created_at) VALUES (?, ?, ?, ?)`,
			userID, string(kind), itemID, time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to add favorite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed == 0, nil
}

// IsFavorite reports whether the user favorited the item.
func (r *FavoriteRepository) IsFavorite(userID string, kind models.Kind, itemID string) (bool, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM favorites WHERE user_id = ? AND kind = ? AND item_id = ?`, userID, string(kind), itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query favorite: %w", err)
	}
	return n > 0, nil
}

// List returns the user's favorites, most recent first. An empty kind lists every kind.
func (r *FavoriteRepository) List(userID string, kind models.Kind) ([]models.Favorite, error) {
	query := `SELECT user_id, kind, item_id, created_at FROM favorites WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, item_id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var (
			f    models.Favorite
			kind string
		)
		if err := rows.Scan(&f.UserID, &kind, &f.ItemID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		f.Kind = models.Kind(kind)
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return favorites, nil
}

// Keys returns the set of the user's favorited items.
func (r *FavoriteRepository) Keys(userID string) (map[models.FavoriteKey]bool, error) {
	favorites, err := r.List(userID, "")
	if err != nil {
		return nil, err
	}

	keys := make(map[models.FavoriteKey]bool, len(favorites))
	for _, f := range favorites {
		keys[models.FavoriteKey{Kind: f.Kind, ItemID: f.ItemID}] = true
	}
	return keys, nil
}
