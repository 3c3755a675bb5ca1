package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

// ContentCacheRepository stores the last synced JSON document of each CMS item.
//
// Documents are keyed by (kind, id) and replaced on every sync.
type ContentCacheRepository struct {
	db *sql.DB
}

// NewContentCacheRepository creates a new [ContentCacheRepository] with the given database connection
func NewContentCacheRepository(db *sql.DB) *ContentCacheRepository {
	return &ContentCacheRepository{db: db}
}

// Put inserts or replaces a document.
func (r *ContentCacheRepository) Put(kind models.Kind, id, slug string, data []byte) error {
	if id == "" {
		return fmt.Errorf("%w: cached %s needs an id", shared.ErrInvalidInput, kind)
	}

	_, err := r.db.Exec(`
		INSERT INTO content_cache (kind, id, slug, data, fetched_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET slug = excluded.slug, data = excluded.data, fetched_at = excluded.fetched_at
	`, string(kind), id, slug, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cache %s %s: %w", kind, id, err)
	}
	return nil
}

// Get returns the document with the given slug.
func (r *ContentCacheRepository) Get(kind models.Kind, slug string) ([]byte, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM content_cache WHERE kind = ? AND slug = ?`, string(kind), slug).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cached %s %s: %w", kind, slug, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return []byte(data), nil
}

// List returns every cached document of kind, ordered by slug.
func (r *ContentCacheRepository) List(kind models.Kind) ([][]byte, error) {
	rows, err := r.db.Query(`SELECT data FROM content_cache WHERE kind = ? ORDER BY slug`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan cached document: %w", err)
		}
		docs = append(docs, []byte(data))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}

// Prune deletes cached documents of kind whose ID is not in keep and returns
// how many were deleted. An empty keep list clears the kind.
func (r *ContentCacheRepository) Prune(kind models.Kind, keep []string) (int64, error) {
	query := `DELETE FROM content_cache WHERE kind = ?`
	args := []any{string(kind)}
	if len(keep) > 0 {
		query += fmt.Sprintf(" AND id NOT IN (%s)", placeholders(len(keep)))
		args = append(args, stringArgs(keep)...)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return result.RowsAffected()
}

// LastSync returns when kind was last written, zero when never.
func (r *ContentCacheRepository) LastSync(kind models.Kind) (time.Time, error) {
	var (
		count int
		last  sql.NullString
	)
	err := r.db.QueryRow(`SELECT COUNT(*), MAX(fetched_at) FROM content_cache WHERE kind = ?`, string(kind)).Scan(&count, &last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query cache: %w", err)
	}
	if count == 0 || !last.Valid {
		return time.Time{}, nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano} {
		if t, err := time.Parse(layout, last.String); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse sync time %q", last.String)
}
