package users

import "time"

// User represents a user account for management, with its role names
// materialized for display.
type User struct {
	ID        int64     `json:"id"`
	UserName  string    `json:"userName"`
	Roles     []RoleRef `json:"roles"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// RoleRef is a role reference carrying the joined name, not just the id.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
