package security

import (
	"crypto/rand"
	"fmt"
)

// OpaqueTokenLength is the length of session keys and CSRF tokens.
const OpaqueTokenLength = 64

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewOpaqueToken returns an unpredictable 64-character alphanumeric token
// drawn from crypto/rand. Used for session keys and CSRF values; the keyspace
// (62^64) makes collisions a non-concern.
func NewOpaqueToken() (string, error) {
	out := make([]byte, 0, OpaqueTokenLength)
	buf := make([]byte, OpaqueTokenLength)
	for len(out) < OpaqueTokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			// Rejection sampling over the low 6 bits keeps the draw uniform.
			b &= 0x3f
			if int(b) >= len(tokenAlphabet) {
				continue
			}
			out = append(out, tokenAlphabet[b])
			if len(out) == OpaqueTokenLength {
				break
			}
		}
	}
	return string(out), nil
}
