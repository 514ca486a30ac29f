package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the introspection result for "who am I" queries. Roles and
// permissions are recomputed from the store at call time, so a profile can
// be ahead of the permission snapshot inside an outstanding token.
type Profile struct {
	ID          int64    `json:"id"`
	UserName    string   `json:"userName"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
