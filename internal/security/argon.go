// Package security provides password hashing, session token signing, and the
// opaque random tokens used for session keys and CSRF values.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Sentinel errors for password verification. ErrHashing signals an internal
// engine failure (corrupt or foreign hash) distinct from a plain mismatch;
// the auth service surfaces both as invalid credentials but logs them apart.
var (
	ErrHashing          = errors.New("could not hash password")
	ErrPasswordMismatch = errors.New("password mismatch")
)

const (
	defaultIterations = 3
	defaultMemoryKiB  = 64 * 1024
	hashParallelism   = 2
	saltLength        = 16
	keyLength         = 32
)

// Hasher hashes and verifies passwords with argon2id, keyed by a server-wide
// secret that is never stored with the hash. Callers must not log or persist
// plaintext passwords.
type Hasher struct {
	secret     []byte
	iterations uint32
	memoryKiB  uint32
}

// NewHasher returns a Hasher keyed with secret. iterations and memoryKiB
// override the cost parameters; zero selects the defaults.
func NewHasher(secret string, iterations, memoryKiB uint32) *Hasher {
	if iterations == 0 {
		iterations = defaultIterations
	}
	if memoryKiB == 0 {
		memoryKiB = defaultMemoryKiB
	}
	return &Hasher{
		secret:     []byte(secret),
		iterations: iterations,
		memoryKiB:  memoryKiB,
	}
}

// Hash produces a PHC-formatted argon2id hash of password. The server secret
// is folded in via HMAC-SHA256 before key derivation, so hashes only verify
// under the same secret.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	key := h.deriveKey(password, salt, h.iterations, h.memoryKiB)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memoryKiB, h.iterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash using the cost parameters
// recorded in the hash itself. Returns nil on match, ErrPasswordMismatch on a
// clean mismatch, and ErrHashing when the encoded hash is malformed or uses an
// unsupported variant. Key comparison is constant-time.
func (h *Hasher) Verify(encoded, password string) error {
	salt, key, iterations, memoryKiB, err := parseEncodedHash(encoded)
	if err != nil {
		return err
	}
	derived := h.deriveKey(password, salt, iterations, memoryKiB)
	if subtle.ConstantTimeCompare(derived, key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func (h *Hasher) deriveKey(password string, salt []byte, iterations, memoryKiB uint32) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	return argon2.IDKey(mac.Sum(nil), salt, iterations, memoryKiB, hashParallelism, keyLength)
}

func parseEncodedHash(encoded string) (salt, key []byte, iterations, memoryKiB uint32, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, fmt.Errorf("%w: malformed hash", ErrHashing)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, fmt.Errorf("%w: unsupported version", ErrHashing)
	}
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &iterations, &parallelism); err != nil {
		return nil, nil, 0, 0, fmt.Errorf("%w: malformed parameters", ErrHashing)
	}
	if parallelism != hashParallelism || iterations == 0 || memoryKiB == 0 {
		return nil, nil, 0, 0, fmt.Errorf("%w: unsupported parameters", ErrHashing)
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("%w: malformed salt", ErrHashing)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) != keyLength {
		return nil, nil, 0, 0, fmt.Errorf("%w: malformed key", ErrHashing)
	}
	return salt, key, iterations, memoryKiB, nil
}
