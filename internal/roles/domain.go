package roles

import "time"

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Permissions []PermissionRef `json:"permissions"`
	CreatedAt   time.Time       `json:"-"`
	UpdatedAt   time.Time       `json:"-"`
}

// PermissionRef is a permission reference carrying the joined name.
type PermissionRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
