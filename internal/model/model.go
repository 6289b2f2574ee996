// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a coarse permission class fixed per identity.
type Role string

const (
	RoleOps    Role = "ops"
	RoleClient Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleOps || r == RoleClient }

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Identity is the public part of an account.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Disabled bool   `json:"disabled"`
	Role     Role   `json:"role"`
}

// User is an account as held by the credential store. PasswordHash is a
// self-describing digest and never leaves the store boundary.
type User struct {
	Identity
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Claims is the decoded payload of a bearer token.
type Claims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// FileRecord describes one uploaded document. Locator addresses the bytes in
// blob storage and is not exposed to callers.
type FileRecord struct {
	ID         uuid.UUID `json:"file_id"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"upload_date"`
	Size       int64     `json:"size"`
	Locator    string    `json:"-"`
}

// Grant authorizes retrieval of exactly one file within a short window.
type Grant struct {
	Token      string
	FileID     uuid.UUID
	Grantee    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RedeemedAt *time.Time // nil until redeemed
}

// Expired reports whether the grant is no longer valid at now. The expiry
// instant itself counts as expired, the same rule jwt/v5 applies to a bearer
// token's exp claim.
func (g Grant) Expired(now time.Time) bool { return !now.Before(g.ExpiresAt) }
