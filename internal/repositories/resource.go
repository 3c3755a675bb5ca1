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

const resourceColumns = `id, owner_id, title, slug, description, url, file_key, file_url, image_url, category, created_at, updated_at`

// ResourceRepository implements [models.Repository] for user authored [models.Resource] persistence.
type ResourceRepository struct {
	db *sql.DB
}

// NewResourceRepository creates a new [ResourceRepository] with the given database connection
func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func scanResource(row scanner) (*models.Resource, error) {
	var (
		res      models.Resource
		category string
	)

	err := row.Scan(&res.ID, &res.OwnerID, &res.Title, &res.Slug, &res.Description, &res.URL,
		&res.FileKey, &res.FileURL, &res.ImageURL, &category, &res.PublishedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}

	res.Source = models.SourceUser
	if category != "" {
		res.Category = &models.Category{Title: category, Slug: shared.Slugify(category)}
	}
	return &res, nil
}

func categoryTitle(c *models.Category) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Title)
}

// Create inserts a resource and its tags. The slug is derived from the title when empty.
func (r *ResourceRepository) Create(res *models.Resource) error {
	if res.Slug == "" {
		res.Slug = shared.Slugify(res.Title)
	}
	res.Tags = shared.NormalizeTags(res.Tags)
	if err := res.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "resources")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	res.ID = shared.GenerateID()
	res.Source = models.SourceUser
	res.PublishedAt = now
	res.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO resources (id, sequence, owner_id, title, slug, description, url, file_key, file_url,
			image_url, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query, res.ID, sequence, res.OwnerID, res.Title, res.Slug, res.Description, res.URL,
		res.FileKey, res.FileURL, res.ImageURL, categoryTitle(res.Category), now, now)
	if err != nil {
		return conflictOr(err, "failed to insert resource %s", res.Slug)
	}

	if err := replaceTags(tx, "resource_tags", "resource_id", res.ID, res.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get retrieves a resource with its tags by ID, excluding soft-deleted resources
func (r *ResourceRepository) Get(id string) (*models.Resource, error) {
	return r.getWhere("id = ?", id)
}

// GetBySlug retrieves a resource with its tags by slug
func (r *ResourceRepository) GetBySlug(slug string) (*models.Resource, error) {
	return r.getWhere("slug = ?", slug)
}

func (r *ResourceRepository) getWhere(cond string, arg string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE ` + cond + ` AND deleted_at IS NULL`

	res, err := scanResource(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %s: %w", arg, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query resource: %w", err)
	}

	tags, err := loadTags(r.db, "resource_tags", "resource_id", []string{res.ID})
	if err != nil {
		return nil, err
	}
	res.Tags = tags[res.ID]
	return res, nil
}

// Update modifies a resource and replaces its tags. The owner is not changed.
func (r *ResourceRepository) Update(res *models.Resource) error {
	if res.Slug == "" {
		res.Slug = shared.Slugify(res.Title)
	}
	res.Tags = shared.NormalizeTags(res.Tags)
	if err := res.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	res.UpdatedAt = time.Now().UTC()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE resources
		SET title = ?, slug = ?, description = ?, url = ?, file_key = ?, file_url = ?, image_url = ?,
			category = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.Exec(query, res.Title, res.Slug, res.Description, res.URL, res.FileKey, res.FileURL,
		res.ImageURL, categoryTitle(res.Category), res.UpdatedAt, res.ID)
	if err != nil {
		return conflictOr(err, "failed to update resource %s", res.ID)
	}
	if err := checkAffected(result, "resource", res.ID); err != nil {
		return err
	}

	if err := replaceTags(tx, "resource_tags", "resource_id", res.ID, res.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete soft-deletes a resource by ID
func (r *ResourceRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE resources SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return checkAffected(result, "resource", id)
}

// List retrieves resources matching the given criteria, newest first.
//
// Supported criteria:
//   - "owner" (string): only resources of this user
//   - "tags" ([]string): resources carrying every listed tag
//   - "query" (string): case-insensitive match on title or description
func (r *ResourceRepository) List(criteria map[string]any) ([]*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE deleted_at IS NULL`
	args := []any{}

	if owner, ok := criteria["owner"].(string); ok && owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}

	if tags, ok := criteria["tags"].([]string); ok {
		if tags = shared.NormalizeTags(tags); len(tags) > 0 {
			query += fmt.Sprintf(` AND id IN (
				SELECT resource_id FROM resource_tags WHERE tag IN (%s)
				GROUP BY resource_id HAVING COUNT(DISTINCT tag) = ?
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

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}

	var (
		resources []*models.Resource
		ids       []string
	)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
		ids = append(ids, res.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	tags, err := loadTags(r.db, "resource_tags", "resource_id", ids)
	if err != nil {
		return nil, err
	}
	for _, res := range resources {
		res.Tags = tags[res.ID]
	}

	return resources, nil
}

// replaceTags rewrites the tag rows of one parent inside tx.
func replaceTags(tx *sql.Tx, table, column, id string, tags []string) error {
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), id); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}

	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, tag) VALUES (?, ?)", table, column)
	for _, tag := range tags {
		if _, err := tx.Exec(stmt, id, tag); err != nil {
			return fmt.Errorf("failed to insert tag %s: %w", tag, err)
		}
	}
	return nil
}

// loadTags returns the sorted tags of each parent ID.
func loadTags(db *sql.DB, table, column string, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf("SELECT %s, tag FROM %s WHERE %s IN (%s) ORDER BY tag",
		column, table, column, placeholders(len(ids)))

	rows, err := db.Query(query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}
