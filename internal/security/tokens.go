package security

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a session token is malformed, carries a bad
// signature, or its payload does not decode into Claims.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed payload of a session token: the session key and the
// CSRF token minted at login. No expiry is embedded; the session row is the
// source of truth for lifetime and revocation.
type Claims struct {
	Session string `json:"session"`
	CSRF    string `json:"csrf"`
	jwt.RegisteredClaims
}

// TokenCodec encodes and decodes session claims as HS256-signed JWTs with a
// process-wide symmetric secret. Pure and stateless beyond the secret.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec returns a TokenCodec signing with secret.
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Encode signs claims into a compact token string.
func (c *TokenCodec) Encode(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(c.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return s, nil
}

// Decode verifies the signature and structure of token and returns its claims.
// Returns ErrInvalidToken for any signature, structural, or payload failure.
func (c *TokenCodec) Decode(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Session == "" || claims.CSRF == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
