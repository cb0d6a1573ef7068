package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a Store backed by an embedded sqlite database.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) WithinTx(ctx context.Context, fn func(ctx context.Context, users UserRepository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = mapSQLiteError("commit", cerr)
		}
	}()

	return fn(ctx, &sqliteUserRepository{q: tx})
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type sqliteUserRepository struct {
	q sqlQuerier
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx, `
INSERT INTO users (email, username, first_name, last_name, password_hash, is_superuser, roles, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableEmail(user.Email),
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsSuperuser,
		roles,
		now,
		now,
	)
	if err != nil {
		return mapSQLiteError("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *sqliteUserRepository) Update(ctx context.Context, user *domain.User) error {
	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := r.q.ExecContext(ctx, `
UPDATE users SET email = ?, username = ?, first_name = ?, last_name = ?,
	password_hash = ?, is_superuser = ?, roles = ?, updated_at = ?
WHERE id = ?`,
		nullableEmail(user.Email),
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsSuperuser,
		roles,
		now,
		user.ID,
	)
	if err != nil {
		return mapSQLiteError("update user", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *sqliteUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *sqliteUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *sqliteUserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, query, arg), func(err error) bool {
		return errors.Is(err, sql.ErrNoRows)
	})
}

// mapSQLiteError turns "UNIQUE constraint failed: users.<col>" into the duplicate sentinels.
func mapSQLiteError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		switch {
		case strings.Contains(msg, "users.email"):
			return ErrDuplicateEmail
		case strings.Contains(msg, "users.username"):
			return ErrDuplicateUsername
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
