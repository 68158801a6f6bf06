package model

import (
	"time"
)

// User is the authenticated principal. Identity and role assignment live
// outside this service; the auth middleware only resolves a token to a row.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Avatar    *string   `db:"avatar" json:"avatar,omitempty"`
	Role      UserRole  `db:"role" json:"role"`
	TokenHash string    `db:"token_hash" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
