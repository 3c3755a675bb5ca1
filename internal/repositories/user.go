package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// Password length bounds in bytes. bcrypt rejects input longer than 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

const userColumns = `id, sequence, email, name, avatar_url, password_hash, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db   *sql.DB
	cost int
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, cost: bcrypt.DefaultCost}
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user         models.User
		passwordHash sql.NullString
		deletedAt    sql.NullTime
	)

	err := row.Scan(&user.ID, &user.Sequence, &user.Email, &user.Name, &user.AvatarURL,
		&passwordHash, &user.CreatedAt, &user.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash.String
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}
	return &user, nil
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	user.ID = shared.GenerateID()
	user.Sequence = sequence
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, sequence, email, name, avatar_url, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID, sequence, user.Email, user.Name, user.AvatarURL,
		nullString(user.PasswordHash), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return conflictOr(err, "failed to insert user %s", user.Email)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by (case-insensitive) email address.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// Update modifies an existing user's profile in the database
func (r *UserRepository) Update(user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = ?, name = ?, avatar_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.Email, user.Name, user.AvatarURL, user.UpdatedAt, user.ID)
	if err != nil {
		return conflictOr(err, "failed to update user %s", user.ID)
	}

	return checkAffected(result, "user", user.ID)
}

// Delete soft-deletes a user by ID and ends their sessions
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := checkAffected(result, "user", id); err != nil {
		return err
	}

	if _, err := r.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Supported criteria: "email" (exact, case-insensitive).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`

	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// HashPassword checks the length bounds and returns the bcrypt hash of plain.
func (r *UserRepository) HashPassword(plain string) (string, error) {
	switch {
	case len(plain) < MinPasswordLength:
		return "", fmt.Errorf("%w: password must be at least %d characters", shared.ErrInvalidInput, MinPasswordLength)
	case len(plain) > MaxPasswordLength:
		return "", fmt.Errorf("%w: password must be at most %d bytes", shared.ErrInvalidInput, MaxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), r.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return string(hash), nil
}

// Register hashes plain and inserts the user with the hash in a single statement,
// so a rejected password never leaves an account behind.
func (r *UserRepository) Register(user *models.User, plain string) error {
	hash, err := r.HashPassword(plain)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := r.Create(user); err != nil {
		user.PasswordHash = ""
		return err
	}
	return nil
}

// SetPassword hashes plain with bcrypt and stores it on the user.
func (r *UserRepository) SetPassword(id, plain string) error {
	hash, err := r.HashPassword(plain)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	return checkAffected(result, "user", id)
}

// Authenticate returns the user whose email and password match.
//
// Unknown emails, OAuth-only accounts and wrong passwords all yield [shared.ErrInvalidCredentials].
func (r *UserRepository) Authenticate(email, plain string) (*models.User, error) {
	user, err := r.GetByEmail(email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plain)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	return user, nil
}

// Upsert finds the user by email, refreshing name and avatar when given, or creates it.
// It backs OAuth logins, where the provider is the source of the profile.
func (r *UserRepository) Upsert(user *models.User) (*models.User, error) {
	existing, err := r.GetByEmail(user.Email)
	if errors.Is(err, shared.ErrNotFound) {
		if err := r.Create(user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if user.Name != "" && user.Name != existing.Name {
		existing.Name = user.Name
		changed = true
	}
	if user.AvatarURL != "" && user.AvatarURL != existing.AvatarURL {
		existing.AvatarURL = user.AvatarURL
		changed = true
	}
	if changed {
		if err := r.Update(existing); err != nil {
			return nil, err
		}
	}

	return existing, nil
}
