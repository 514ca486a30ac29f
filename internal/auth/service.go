package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// PermissionResolver resolves the RBAC graph for a user. Implemented by the
// rbac service.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	RolesOf(ctx context.Context, userID int64) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	resolver PermissionResolver
	tokens   *TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, resolver PermissionResolver, tokens *TokenManager) *Service {
	return &Service{repo: repo, resolver: resolver, tokens: tokens}
}

// Login validates credentials and mints a signed token embedding the
// permission snapshot resolved at this moment. An unknown user name and a
// wrong secret return the identical error so callers cannot enumerate
// accounts; store failures propagate unchanged so they are never mistaken
// for bad credentials.
func (s *Service) Login(ctx context.Context, userName, secret string) (string, []string, error) {
	user, err := s.repo.FindByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", nil, httpx.ErrUnauthorized
		}
		return "", nil, fmt.Errorf("auth: find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		return "", nil, httpx.ErrUnauthorized
	}
	permissions, err := s.resolver.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("auth: resolve permissions: %w", err)
	}
	token, _, err := s.tokens.Issue(user, permissions)
	if err != nil {
		return "", nil, err
	}
	return token, permissions, nil
}

// Register creates a user with no roles.
func (s *Service) Register(ctx context.Context, userName, secret string) (*User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, fmt.Errorf("user name: %w", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, userName, string(hash))
}

// Introspect recomputes the caller's profile from the store. Contract:
// authorization decisions read only the token snapshot, while introspection
// always reflects the current graph; a difference tells the client a fresh
// login would change its grants.
func (s *Service) Introspect(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	var roles, permissions []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = s.resolver.RolesOf(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		permissions, err = s.resolver.EffectivePermissions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}

	return Profile{
		ID:          user.ID,
		UserName:    user.UserName,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}
