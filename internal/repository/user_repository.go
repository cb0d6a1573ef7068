package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/account-service/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername is returned when the username unique constraint fires.
	ErrDuplicateUsername = errors.New("username already registered")
)

// UserRepository defines persistence access for user accounts.
// A handle is only valid inside the Store.WithinTx callback that produced it.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Store hands out transaction-scoped repositories, one transaction per call.
// The transaction commits when fn returns nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, users UserRepository) error) error
	Ping(ctx context.Context) error
	Close() error
}

func encodeRoles(roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(raw), nil
}

func decodeRoles(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return roles, nil
}

// nullableEmail stores a missing email as NULL so the unique index ignores it.
func nullableEmail(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}

// rowScanner is satisfied by pgx.Row, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, username, first_name, last_name, password_hash, is_superuser, roles, created_at, updated_at`

func scanUser(row rowScanner, notFound func(error) bool) (*domain.User, error) {
	var (
		user  domain.User
		email *string
		roles string
	)
	if err := row.Scan(
		&user.ID,
		&email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsSuperuser,
		&roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if email != nil {
		user.Email = *email
	}
	decoded, err := decodeRoles(roles)
	if err != nil {
		return nil, err
	}
	user.Roles = decoded
	return &user, nil
}
