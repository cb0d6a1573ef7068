package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

const (
	pgUniqueViolation    = "23505"
	pgEmailConstraint    = "users_email_key"
	pgUsernameConstraint = "users_username_key"
)

// pgQuerier is the subset of pgx shared by pools and transactions.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, users UserRepository) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &postgresUserRepository{q: tx})
	})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

func (s *postgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type postgresUserRepository struct {
	q pgQuerier
}

func (r *postgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO users (email, username, first_name, last_name, password_hash, is_superuser, roles)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err = r.q.QueryRow(ctx, query,
		nullableEmail(user.Email),
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsSuperuser,
		roles,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapPgError("insert user", err)
	}
	return nil
}

func (r *postgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}

	const query = `
        UPDATE users SET email=$1, username=$2, first_name=$3, last_name=$4,
            password_hash=$5, is_superuser=$6, roles=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`

	err = r.q.QueryRow(ctx, query,
		nullableEmail(user.Email),
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsSuperuser,
		roles,
		user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return mapPgError("update user", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *postgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

func (r *postgresUserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, query, arg), func(err error) bool {
		return errors.Is(err, pgx.ErrNoRows)
	})
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case pgEmailConstraint:
			return ErrDuplicateEmail
		case pgUsernameConstraint:
			return ErrDuplicateUsername
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
