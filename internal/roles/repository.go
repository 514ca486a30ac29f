package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/machinemu/machinemu/internal/platform/db"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name string, permissionIDs []int64) (Role, error)
	UpdateRole(ctx context.Context, id int64, name *string, permissionIDs []int64) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool db.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with their permission names materialized.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.id, ro.name, ro.created_at, ro.updated_at, p.id, p.name
		FROM roles ro
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		ORDER BY ro.id, p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var (
			role     Role
			permID   *int64
			permName *string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt, &permID, &permName); err != nil {
			return nil, err
		}
		pos, ok := index[role.ID]
		if !ok {
			role.Permissions = []PermissionRef{}
			roles = append(roles, role)
			pos = len(roles) - 1
			index[role.ID] = pos
		}
		if permID != nil && permName != nil {
			roles[pos].Permissions = append(roles[pos].Permissions, PermissionRef{ID: *permID, Name: *permName})
		}
	}
	return roles, rows.Err()
}

// GetRole fetches a single role with its permissions.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	perms, err := r.permissionsOf(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (r *Repository) permissionsOf(ctx context.Context, roleID int64) ([]PermissionRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []PermissionRef{}
	for rows.Next() {
		var ref PermissionRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		perms = append(perms, ref)
	}
	return perms, rows.Err()
}

// CreateRole inserts a role and links the initial permission set atomically.
func (r *Repository) CreateRole(ctx context.Context, name string, permissionIDs []int64) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name).
			Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("role name %q: %w", name, httpx.ErrDuplicate)
			}
			return err
		}
		return insertRolePermissions(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		return Role{}, err
	}
	perms, err := r.permissionsOf(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// UpdateRole applies a partial update. A non-nil permissionIDs replaces the
// whole permission set for the role; nil leaves it untouched.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name *string, permissionIDs []int64) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		if name != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1`, id, *name); err != nil {
				if db.IsUniqueViolation(err) {
					return fmt.Errorf("role name %q: %w", *name, httpx.ErrDuplicate)
				}
				return err
			}
		}
		if permissionIDs != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
				return err
			}
			if err := insertRolePermissions(ctx, tx, id, permissionIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return r.GetRole(ctx, id)
}

// DeleteRole removes the role and every join row referencing it, dependents
// first: permission assignments, user memberships, then the role itself.
// Users and permissions on the other end are untouched.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("role %d: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

func insertRolePermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	for _, permID := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, permID); err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("permission %d: %w", permID, httpx.ErrValidation)
			}
			return err
		}
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
