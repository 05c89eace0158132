// Package audit records authentication events best-effort: failures are
// logged and never affect the authentication path itself.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"accounts-api/internal/audit/domain"
	auditrepo "accounts-api/internal/audit/repository"
)

// recordTimeout bounds a single async write so a slow database cannot pile up
// goroutines behind login traffic.
const recordTimeout = 5 * time.Second

// Recorder writes authentication audit events. Implementations must be
// best-effort and non-blocking for the caller.
type Recorder interface {
	Record(ctx context.Context, accountID, action, ip, metadata string)
}

// Logger implements Recorder on the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  zerolog.Logger
	// async is cleared in tests so Record runs inline.
	async bool
}

// NewLogger returns a Recorder that persists to repo. repo may be nil; then
// Record is a no-op.
func NewLogger(repo auditrepo.Repository, log zerolog.Logger) *Logger {
	return &Logger{repo: repo, log: log, async: true}
}

// Record persists one audit event in a detached goroutine. The caller's
// context is not used for the write so request cancellation cannot drop the
// event mid-flight; errors are logged and swallowed.
func (l *Logger) Record(ctx context.Context, accountID, action, ip, metadata string) {
	if l.repo == nil {
		return
	}
	event := &domain.Event{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	write := func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := l.repo.Create(writeCtx, event); err != nil {
			l.log.Error().Err(err).Str("action", action).Msg("audit: failed to record event")
		}
	}
	if l.async {
		go write()
		return
	}
	write()
}
