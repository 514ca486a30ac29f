package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// UpdateInput carries a partial update. Nil fields keep the current value;
// a non-nil RoleIDs replaces the entire role set.
type UpdateInput struct {
	UserName *string
	Secret   *string
	RoleIDs  []int64
}

// Service handles user management business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the secret and stores the user with its initial roles.
func (s *Service) CreateUser(ctx context.Context, userName, secret string, roleIDs []int64) (User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return User{}, fmt.Errorf("user name: %w", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, userName, string(hash), roleIDs)
}

// UpdateUser applies a partial update, hashing a new secret when supplied.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error) {
	var userName *string
	if in.UserName != nil {
		trimmed := strings.TrimSpace(*in.UserName)
		if trimmed == "" {
			return User{}, fmt.Errorf("user name: %w", httpx.ErrValidation)
		}
		userName = &trimmed
	}
	var passwordHash *string
	if in.Secret != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Secret), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		hashed := string(hash)
		passwordHash = &hashed
	}
	return s.repo.UpdateUser(ctx, id, userName, passwordHash, in.RoleIDs)
}

// DeleteUser removes a user and its role links.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}
