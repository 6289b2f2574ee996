package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/and161185/docshare/internal/model"
)

// UserEntry provisions one account. Exactly one of Password and PasswordHash
// must be set; PasswordHash must be a digest the server's hasher understands.
type UserEntry struct {
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
	FullName     string `yaml:"full_name"`
	Role         string `yaml:"role"`
	Disabled     bool   `yaml:"disabled"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// Identity converts the entry into a domain identity.
func (e UserEntry) Identity() (model.Identity, error) {
	role, err := model.ParseRole(e.Role)
	if err != nil {
		return model.Identity{}, fmt.Errorf("user %q: %w", e.Username, err)
	}
	return model.Identity{
		Username: e.Username,
		Email:    e.Email,
		FullName: e.FullName,
		Disabled: e.Disabled,
		Role:     role,
	}, nil
}

type usersFile struct {
	Users []UserEntry `yaml:"users"`
}

// LoadUsers reads and validates a YAML users file.
func LoadUsers(path string) ([]UserEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("users: read %s: %w", path, err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("users: parse %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(f.Users))
	for i, u := range f.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("users: entry %d: empty username", i)
		}
		if _, dup := seen[u.Username]; dup {
			return nil, fmt.Errorf("users: duplicate username %q", u.Username)
		}
		seen[u.Username] = struct{}{}
		if _, err := u.Identity(); err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		if (u.Password == "") == (u.PasswordHash == "") {
			return nil, fmt.Errorf("users: %q: set exactly one of password and password_hash", u.Username)
		}
	}
	return f.Users, nil
}

// DemoUsers returns the two fixed demo accounts, both with password "secret".
func DemoUsers() []UserEntry {
	return []UserEntry{
		{Username: "opsuser", Email: "ops@example.com", FullName: "Operation User", Role: string(model.RoleOps), Password: "secret"},
		{Username: "clientuser", Email: "client@example.com", FullName: "Client User", Role: string(model.RoleClient), Password: "secret"},
	}
}
