package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/machinemu/machinemu/internal/platform/db"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUserName(ctx context.Context, userName string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, userName, passwordHash string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUserName fetches a user by exact, case-sensitive name.
func (r *PGRepository) FindByUserName(ctx context.Context, userName string) (*User, error) {
	return r.findOne(ctx, `SELECT id, user_name, password_hash, created_at, updated_at FROM users WHERE user_name = $1`, userName)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx, `SELECT id, user_name, password_hash, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user with no roles.
func (r *PGRepository) Create(ctx context.Context, userName, passwordHash string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (user_name, password_hash) VALUES ($1, $2) RETURNING id, user_name, password_hash, created_at, updated_at`,
		userName, passwordHash).
		Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("user name %q: %w", userName, httpx.ErrDuplicate)
		}
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
