package security

// RedactedHash wraps a stored password hash so it cannot leak through
// serialization or logging. It marshals to JSON null, prints as a fixed
// placeholder, and its only accessor is Verify.
type RedactedHash struct {
	hash string
}

// NewRedactedHash wraps a stored password hash.
func NewRedactedHash(hash string) RedactedHash {
	return RedactedHash{hash: hash}
}

// Verify checks password against the wrapped hash using h.
// This is the only way to consume the wrapped value.
func (r RedactedHash) Verify(h *Hasher, password string) error {
	return h.Verify(r.hash, password)
}

// MarshalJSON always serializes to null.
func (r RedactedHash) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (r RedactedHash) String() string {
	return "████████"
}

// GoString keeps %#v output redacted as well.
func (r RedactedHash) GoString() string {
	return "security.RedactedHash{████████}"
}
