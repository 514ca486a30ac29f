package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/machinemu/machinemu/internal/platform/db"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// Service orchestrates permission storage and resolution.
type Service struct {
	pool db.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool db.Pool) *Service {
	return &Service{pool: pool}
}

// ListPermissions returns all permissions ordered by id.
func (s *Service) ListPermissions(ctx context.Context) ([]PermissionRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []PermissionRecord
	for rows.Next() {
		var p PermissionRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (PermissionRecord, error) {
	var p PermissionRecord
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionRecord{}, fmt.Errorf("permission %d: %w", id, httpx.ErrNotFound)
		}
		return PermissionRecord{}, err
	}
	return p, nil
}

// CreatePermission inserts a new permission. The name may be outside the
// recognized vocabulary; such permissions are stored and claimed but never
// match a guard.
func (s *Service) CreatePermission(ctx context.Context, name string) (PermissionRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PermissionRecord{}, fmt.Errorf("permission name: %w", httpx.ErrValidation)
	}
	var p PermissionRecord
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return PermissionRecord{}, fmt.Errorf("permission name %q: %w", name, httpx.ErrDuplicate)
		}
		return PermissionRecord{}, err
	}
	return p, nil
}

// UpdatePermission renames a permission.
func (s *Service) UpdatePermission(ctx context.Context, id int64, name string) (PermissionRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PermissionRecord{}, fmt.Errorf("permission name: %w", httpx.ErrValidation)
	}
	var p PermissionRecord
	err := s.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2 WHERE id = $1 RETURNING id, name, created_at`, id, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionRecord{}, fmt.Errorf("permission %d: %w", id, httpx.ErrNotFound)
		}
		if db.IsUniqueViolation(err) {
			return PermissionRecord{}, fmt.Errorf("permission name %q: %w", name, httpx.ErrDuplicate)
		}
		return PermissionRecord{}, err
	}
	return p, nil
}

// DeletePermission removes a permission and every role assignment that
// references it, dependents first, in one transaction.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("permission %d: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
}

// EffectivePermissions returns the deduplicated permission names reachable
// from a user through its roles. A user with no roles resolves to an empty
// set, not an error. This is the sole source of authorization truth at
// token issuance.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// RolesOf returns the role names a user belongs to.
func (s *Service) RolesOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}
