// Package domain holds the session entity.
package domain

import "time"

// Identity is a snapshot of the client context at login time, stored with the
// session for audit. Not enforced on later requests.
type Identity struct {
	Fingerprint *string `json:"fingerprint"`
	IP          *string `json:"ip"`
}

// Session is one issued login session. Key doubles as the cache key and the
// claims pointer inside the signed token; CSRF is the double-submit secret.
// A session is valid iff !Invalidated && Expiry > now; the predicate is
// evaluated by the store query, never cached beyond the record's own TTL.
type Session struct {
	Key         string     `json:"key"`
	CSRF        string     `json:"csrf"`
	AccountID   string     `json:"account"`
	Identity    Identity   `json:"identity"`
	Expiry      time.Time  `json:"expiry"`
	Invalidated bool       `json:"invalidated"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}
