// Package crypto implements server-side password hashing and verification.
//
// Digests are self-describing modular-crypt strings, so stored hashes carry
// their scheme, cost parameters and salt:
//
//	$pbkdf2-sha256$<iterations>$<salt>$<checksum>        (passlib "ab64" encoding)
//	$argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<hash>
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Supported schemes.
const (
	SchemePBKDF2SHA256 = "pbkdf2-sha256"
	SchemeArgon2id     = "argon2id"
)

// PBKDF2 parameters (passlib pbkdf2_sha256 defaults).
const (
	pbkdf2Iterations = 29000
	pbkdf2KeyLen     = 32
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

const saltLen = 16

// ab64 is standard base64 with '.' in place of '+' and no padding.
var ab64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").WithPadding(base64.NoPadding)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hasher produces and checks password digests. It is safe for concurrent use.
type Hasher struct {
	scheme string
}

// NewHasher returns a Hasher that produces digests of the given scheme.
// Verify accepts every supported scheme regardless.
func NewHasher(scheme string) (*Hasher, error) {
	switch scheme {
	case "":
		scheme = SchemePBKDF2SHA256
	case SchemePBKDF2SHA256, SchemeArgon2id:
	default:
		return nil, fmt.Errorf("unsupported hash scheme %q", scheme)
	}
	return &Hasher{scheme: scheme}, nil
}

// Scheme returns the scheme used for new digests.
func (h *Hasher) Scheme() string { return h.scheme }

// Hash returns a salted digest of password.
func (h *Hasher) Hash(password string) (string, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	switch h.scheme {
	case SchemeArgon2id:
		key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
		return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
			SchemeArgon2id, argon2.Version, argonMemory, argonTime, argonThreads,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(key)), nil
	default:
		key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
		return fmt.Sprintf("$%s$%d$%s$%s",
			SchemePBKDF2SHA256, pbkdf2Iterations, ab64.EncodeToString(salt), ab64.EncodeToString(key)), nil
	}
}

// Verify reports whether password matches digest. Unparseable digests never match.
func (h *Hasher) Verify(password, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) < 2 || parts[0] != "" {
		return false
	}
	switch parts[1] {
	case SchemePBKDF2SHA256:
		return verifyPBKDF2(password, parts)
	case SchemeArgon2id:
		return verifyArgon2id(password, parts)
	default:
		return false
	}
}

func verifyPBKDF2(password string, parts []string) bool {
	if len(parts) != 5 {
		return false
	}
	iter, err := strconv.Atoi(parts[2])
	if err != nil || iter <= 0 {
		return false
	}
	salt, err := ab64.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := ab64.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func verifyArgon2id(password string, parts []string) bool {
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, iter uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iter, &threads); err != nil {
		return false
	}
	if memory == 0 || iter == 0 || threads == 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, iter, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
