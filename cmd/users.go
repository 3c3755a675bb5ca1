package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/repositories"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) users() (*repositories.UserRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewUserRepository(db), nil
}

// userByEmail resolves an --email flag to an account.
func (r *Runner) userByEmail(email string) (*models.User, error) {
	users, err := r.users()
	if err != nil {
		return nil, err
	}
	user, err := users.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("no account for %s: %w", email, err)
	}
	return user, nil
}

// UserCreate creates a password account.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	users, err := r.users()
	if err != nil {
		return err
	}

	password := cmd.String("password")
	if n := len(password); n < repositories.MinPasswordLength || n > repositories.MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d to %d bytes", shared.ErrInvalidArgument,
			repositories.MinPasswordLength, repositories.MaxPasswordLength)
	}

	user := models.NewUser(cmd.String("email"), cmd.String("name"))
	if err := users.Register(user, password); err != nil {
		return err
	}

	r.logger.Info("user created", "id", user.ID, "email", user.Email)
	r.writePlain("✓ Created %s (%s)\n", user.Email, user.ID)
	return nil
}

// UserList lists accounts.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	users, err := r.users()
	if err != nil {
		return err
	}

	list, err := users.List(map[string]any{})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d users:\n\n", len(list))
	for _, u := range list {
		login := "password"
		if u.PasswordHash == "" {
			login = "oauth"
		}
		r.writePlain("%-32s %-24s %-8s %s\n", u.Email, u.Name, login, u.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

// UserPasswd sets a new password for an account.
func (r *Runner) UserPasswd(ctx context.Context, cmd *cli.Command) error {
	user, err := r.userByEmail(cmd.String("email"))
	if err != nil {
		return err
	}

	users, err := r.users()
	if err != nil {
		return err
	}
	if err := users.SetPassword(user.ID, cmd.String("password")); err != nil {
		return err
	}

	r.writePlain("✓ Password updated for %s\n", user.Email)
	return nil
}
