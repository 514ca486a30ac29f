package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole stores a role with its initial permission set.
func (s *Service) CreateRole(ctx context.Context, name string, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("role name: %w", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, permissionIDs)
}

// UpdateRole applies a partial update. Replacing a role's permission set
// with the set it already has is a no-op for resolution.
func (s *Service) UpdateRole(ctx context.Context, id int64, name *string, permissionIDs []int64) (Role, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return Role{}, fmt.Errorf("role name: %w", httpx.ErrValidation)
		}
		name = &trimmed
	}
	return s.repo.UpdateRole(ctx, id, name, permissionIDs)
}

// DeleteRole removes a role and its join rows.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}
