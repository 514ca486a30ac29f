package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/machinemu/machinemu/internal/rbac"
)

// Claims is the payload embedded in issued credentials. Each granted
// permission appears once in the repeated permission claim; the snapshot is
// fixed at issuance and stays valid until expiry.
type Claims struct {
	Name       string   `json:"name"`
	Permission []string `json:"permission"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 credentials.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret, issuer, audience string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// TTL returns the configured validity window.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue mints a signed credential for the user embedding the resolved
// permission set.
func (m *TokenManager) Issue(user *User, permissions []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Name:       user.UserName,
		Permission: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a credential, returning the identity it
// proves. Signature, issuer, audience and expiry are all checked.
func (m *TokenManager) Verify(raw string) (rbac.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return rbac.Identity{}, fmt.Errorf("auth: verify token: %w", err)
	}
	if !token.Valid {
		return rbac.Identity{}, fmt.Errorf("auth: verify token: invalid")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return rbac.Identity{}, fmt.Errorf("auth: verify token: bad subject: %w", err)
	}
	perms := make(map[string]struct{}, len(claims.Permission))
	for _, p := range claims.Permission {
		perms[p] = struct{}{}
	}
	return rbac.Identity{
		UserID:      userID,
		UserName:    claims.Name,
		Permissions: perms,
	}, nil
}

var _ rbac.TokenVerifier = (*TokenManager)(nil)
