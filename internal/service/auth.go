// Package service contains application services for authentication, the file
// registry and download grants.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/repository"
)

// TokenType is the OAuth2 token type reported with access tokens.
const TokenType = "bearer"

// PasswordHasher produces and checks password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(subject string, role model.Role, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (model.Claims, error)
}

// AuthService defines credential and bearer-token operations.
type AuthService interface {
	// Register creates a user, hashing password.
	Register(ctx context.Context, id model.Identity, password string) error
	// RegisterHashed creates a user from a precomputed digest.
	RegisterHashed(ctx context.Context, id model.Identity, digest string) error
	// Verify checks a username/password pair.
	Verify(ctx context.Context, username, password string) (model.Identity, error)
	// Authenticate verifies credentials and issues an access token.
	Authenticate(ctx context.Context, username, password string) (model.Tokens, model.Identity, error)
	// Guard resolves a bearer token into the caller identity and enforces a role.
	Guard(ctx context.Context, bearer string, required model.Role) (model.Identity, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	tokens    TokenService
	accessTTL time.Duration
	dummy     string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenService, accessTTL time.Duration) (*AuthServiceImpl, error) {
	if accessTTL <= 0 {
		return nil, fmt.Errorf("non-positive access ttl %s", accessTTL)
	}
	// Unknown users are checked against this digest so both login failure
	// paths cost one slow hash.
	dummy, err := hasher.Hash("docshare-dummy-password")
	if err != nil {
		return nil, err
	}
	return &AuthServiceImpl{users: users, hasher: hasher, tokens: tokens, accessTTL: accessTTL, dummy: dummy}, nil
}

// Register creates a new user record with a salted digest of password.
func (s *AuthServiceImpl) Register(ctx context.Context, id model.Identity, password string) error {
	if password == "" {
		return errors.New("validation: empty password")
	}
	if err := validateIdentity(id); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.Create(ctx, &model.User{Identity: id, PasswordHash: digest})
}

// RegisterHashed creates a user whose digest was produced elsewhere.
func (s *AuthServiceImpl) RegisterHashed(ctx context.Context, id model.Identity, digest string) error {
	if digest == "" {
		return errors.New("validation: empty password hash")
	}
	if err := validateIdentity(id); err != nil {
		return err
	}
	return s.users.Create(ctx, &model.User{Identity: id, PasswordHash: digest})
}

func validateIdentity(id model.Identity) error {
	if id.Username == "" {
		return errors.New("validation: empty username")
	}
	if !id.Role.Valid() {
		return fmt.Errorf("validation: unknown role %q", id.Role)
	}
	return nil
}

// Verify returns the identity for a matching username/password pair. Unknown
// user, wrong password and disabled account all yield errs.ErrInvalidCredentials.
func (s *AuthServiceImpl) Verify(ctx context.Context, username, password string) (model.Identity, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.hasher.Verify(password, s.dummy)
			return model.Identity{}, errs.ErrInvalidCredentials
		}
		return model.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) || u.Disabled {
		return model.Identity{}, errs.ErrInvalidCredentials
	}
	return u.Identity, nil
}

// Authenticate verifies credentials and issues an access token carrying the
// stored role.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, username, password string) (model.Tokens, model.Identity, error) {
	id, err := s.Verify(ctx, username, password)
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	access, exp, err := s.tokens.Issue(id.Username, id.Role, s.accessTTL)
	if err != nil {
		return model.Tokens{}, model.Identity{}, fmt.Errorf("issue token: %w", err)
	}
	return model.Tokens{AccessToken: access, TokenType: TokenType, ExpiresAt: exp}, id, nil
}

// Guard verifies bearer, confirms its subject still exists and is enabled, and
// checks the claimed role against required (empty means any role). The
// returned identity carries the role from the token.
func (s *AuthServiceImpl) Guard(ctx context.Context, bearer string, required model.Role) (model.Identity, error) {
	if bearer == "" {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(bearer)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err)
	}
	u, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Identity{}, errs.ErrUnauthenticated
		}
		return model.Identity{}, fmt.Errorf("lookup subject: %w", err)
	}
	if u.Disabled {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	if required != "" && claims.Role != required {
		return model.Identity{}, errs.ErrForbidden
	}
	id := u.Identity
	id.Role = claims.Role
	return id, nil
}
