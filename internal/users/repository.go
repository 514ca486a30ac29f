package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/machinemu/machinemu/internal/platform/db"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, userName, passwordHash string, roleIDs []int64) (User, error)
	UpdateUser(ctx context.Context, id int64, userName, passwordHash *string, roleIDs []int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool db.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users with their role names materialized.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.user_name, u.created_at, u.updated_at, ro.id, ro.name
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN roles ro ON ro.id = ur.role_id
		ORDER BY u.id, ro.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	index := make(map[int64]int)
	for rows.Next() {
		var (
			user     User
			roleID   *int64
			roleName *string
		)
		if err := rows.Scan(&user.ID, &user.UserName, &user.CreatedAt, &user.UpdatedAt, &roleID, &roleName); err != nil {
			return nil, err
		}
		pos, ok := index[user.ID]
		if !ok {
			user.Roles = []RoleRef{}
			users = append(users, user)
			pos = len(users) - 1
			index[user.ID] = pos
		}
		if roleID != nil && roleName != nil {
			users[pos].Roles = append(users[pos].Roles, RoleRef{ID: *roleID, Name: *roleName})
		}
	}
	return users, rows.Err()
}

// GetUser fetches a single user with its roles.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_name, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.UserName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
		}
		return User{}, err
	}
	roles, err := r.rolesOf(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}

func (r *Repository) rolesOf(ctx context.Context, userID int64) ([]RoleRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.id, ro.name
		FROM roles ro
		JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = $1
		ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []RoleRef{}
	for rows.Next() {
		var ref RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		roles = append(roles, ref)
	}
	return roles, rows.Err()
}

// CreateUser inserts a user and links the initial role set atomically.
func (r *Repository) CreateUser(ctx context.Context, userName, passwordHash string, roleIDs []int64) (User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (user_name, password_hash) VALUES ($1, $2) RETURNING id, user_name, created_at, updated_at`,
			userName, passwordHash).
			Scan(&user.ID, &user.UserName, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("user name %q: %w", userName, httpx.ErrDuplicate)
			}
			return err
		}
		return insertUserRoles(ctx, tx, user.ID, roleIDs)
	})
	if err != nil {
		return User{}, err
	}
	roles, err := r.rolesOf(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}

// UpdateUser applies a partial update. A non-nil roleIDs replaces the whole
// role set for the user; nil leaves it untouched.
func (r *Repository) UpdateUser(ctx context.Context, id int64, userName, passwordHash *string, roleIDs []int64) (User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
		}
		if userName != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET user_name = $2, updated_at = NOW() WHERE id = $1`, id, *userName); err != nil {
				if db.IsUniqueViolation(err) {
					return fmt.Errorf("user name %q: %w", *userName, httpx.ErrDuplicate)
				}
				return err
			}
		}
		if passwordHash != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, *passwordHash); err != nil {
				return err
			}
		}
		if roleIDs != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
				return err
			}
			if err := insertUserRoles(ctx, tx, id, roleIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return r.GetUser(ctx, id)
}

// DeleteUser removes the user and its role links, dependents first.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %d: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

func insertUserRoles(ctx context.Context, tx pgx.Tx, userID int64, roleIDs []int64) error {
	for _, roleID := range roleIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("role %d: %w", roleID, httpx.ErrValidation)
			}
			return err
		}
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
