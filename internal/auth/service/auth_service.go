// Package service implements credential verification, session issuance, and
// cache-backed session resolution.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	accountdomain "accounts-api/internal/account/domain"
	"accounts-api/internal/audit"
	auditdomain "accounts-api/internal/audit/domain"
	"accounts-api/internal/cache"
	"accounts-api/internal/config"
	"accounts-api/internal/security"
	sessiondomain "accounts-api/internal/session/domain"
)

// ErrInvalidCredentials covers every auth-path failure: unknown email, wrong
// password, forged or malformed token, CSRF mismatch, and expired, revoked, or
// missing sessions. Deliberately unified so callers cannot tell which check
// failed; internal logs keep the distinction.
var ErrInvalidCredentials = errors.New("invalid credentials")

// sessionCachePrefix namespaces session records in the shared cache.
const sessionCachePrefix = "session:"

// Credentials is a login request. Password is plaintext, request-only, never
// persisted. Lifetime zero means "not requested".
type Credentials struct {
	Email    string
	Password string
	Lifetime time.Duration
}

// AccountRepo is the minimal account collaborator needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetValid(ctx context.Context, key, csrf string) (*sessiondomain.Session, error)
	Invalidate(ctx context.Context, key string) error
}

// AuthService implements login, session resolution, and revocation.
type AuthService struct {
	accounts        AccountRepo
	sessions        SessionRepo
	sessionCache    cache.Store
	hasher          *security.Hasher
	codec           *security.TokenCodec
	defaultLifetime time.Duration
	recorder        audit.Recorder
	log             zerolog.Logger
	tracer          trace.Tracer
	nowTime         func() time.Time // injectable for testing
}

// Option modifies the AuthService instance.
type Option func(*AuthService)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *AuthService) {
		s.nowTime = nowFunc
	}
}

// WithRecorder sets the audit recorder. Without it, events are not recorded.
func WithRecorder(r audit.Recorder) Option {
	return func(s *AuthService) {
		s.recorder = r
	}
}

// NewAuthService returns an AuthService with the given dependencies.
// defaultLifetime is the process-wide session lifetime; zero falls back to
// config.DefaultSessionLifetime. A per-login requested lifetime always wins.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	sessionCache cache.Store,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	defaultLifetime time.Duration,
	log zerolog.Logger,
	options ...Option,
) (*AuthService, error) {
	if accounts == nil {
		return nil, errors.New("account repo is required")
	}
	if sessions == nil {
		return nil, errors.New("session repo is required")
	}
	if sessionCache == nil {
		return nil, errors.New("session cache is required")
	}
	if hasher == nil || codec == nil {
		return nil, errors.New("hasher and token codec are required")
	}
	if defaultLifetime <= 0 {
		defaultLifetime = config.DefaultSessionLifetime
	}

	s := &AuthService{
		accounts:        accounts,
		sessions:        sessions,
		sessionCache:    sessionCache,
		hasher:          hasher,
		codec:           codec,
		defaultLifetime: defaultLifetime,
		log:             log,
		tracer:          otel.Tracer("accounts-api/auth"),
		nowTime:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login verifies creds against the account store, persists exactly one new
// session row, and returns the signed token plus the CSRF value. The CSRF
// value travels in the response body only, never in the cookie.
func (s *AuthService) Login(ctx context.Context, creds Credentials, identity sessiondomain.Identity) (token, csrf string, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	account, err := s.accounts.GetByEmail(ctx, creds.Email)
	if err != nil {
		return "", "", fmt.Errorf("account lookup: %w", err)
	}
	if account == nil {
		s.record(ctx, "", auditdomain.ActionLoginFailure, identity, "unknown email")
		return "", "", ErrInvalidCredentials
	}

	if err := account.Password.Verify(s.hasher, creds.Password); err != nil {
		// A corrupt stored hash is an infrastructure problem, but it must be
		// indistinguishable from a wrong password to the caller.
		if errors.Is(err, security.ErrHashing) {
			s.log.Error().Err(err).Str("account", account.ID).Msg("password hash verification failed")
		}
		s.record(ctx, account.ID, auditdomain.ActionLoginFailure, identity, "password mismatch")
		return "", "", ErrInvalidCredentials
	}

	key, err := security.NewOpaqueToken()
	if err != nil {
		return "", "", fmt.Errorf("session key: %w", err)
	}
	csrf, err = security.NewOpaqueToken()
	if err != nil {
		return "", "", fmt.Errorf("csrf token: %w", err)
	}

	now := s.nowTime()
	sess := &sessiondomain.Session{
		Key:       key,
		CSRF:      csrf,
		AccountID: account.ID,
		Identity:  identity,
		Expiry:    now.Add(s.lifetime(creds.Lifetime)),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", "", fmt.Errorf("persist session: %w", err)
	}

	token, err = s.codec.Encode(security.Claims{Session: key, CSRF: csrf})
	if err != nil {
		return "", "", fmt.Errorf("encode token: %w", err)
	}

	s.record(ctx, account.ID, auditdomain.ActionLoginSuccess, identity, "")
	return token, csrf, nil
}

// Resolve decodes the presented token, enforces the double-submit CSRF check,
// and resolves a validated session: cache first, persistent store on miss.
// A cache hit is returned as-is without re-validation against the store; a
// revoked session therefore stays resolvable until its cache TTL lapses.
func (s *AuthService) Resolve(ctx context.Context, token, csrf string) (*sessiondomain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Resolve")
	defer span.End()

	claims, err := s.codec.Decode(token)
	if err != nil {
		s.log.Debug().Msg("session token rejected")
		return nil, ErrInvalidCredentials
	}
	if claims.CSRF != csrf {
		s.log.Debug().Msg("csrf mismatch")
		return nil, ErrInvalidCredentials
	}

	sess, err := cache.GetOrCreate(ctx, s.sessionCache, sessionCachePrefix+claims.Session,
		func(ctx context.Context) (sessiondomain.Session, time.Duration, error) {
			found, err := s.sessions.GetValid(ctx, claims.Session, claims.CSRF)
			if err != nil {
				return sessiondomain.Session{}, 0, fmt.Errorf("session lookup: %w", err)
			}
			if found == nil {
				return sessiondomain.Session{}, 0, ErrInvalidCredentials
			}
			ttl := found.Expiry.Sub(s.nowTime())
			if ttl < 0 {
				ttl = 0
			}
			return *found, ttl, nil
		})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &sess, nil
}

// Revoke invalidates the session row. The cached copy is left to age out on
// its own TTL; see Resolve.
func (s *AuthService) Revoke(ctx context.Context, sess *sessiondomain.Session) error {
	ctx, span := s.tracer.Start(ctx, "auth.Revoke")
	defer span.End()

	if err := s.sessions.Invalidate(ctx, sess.Key); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	s.record(ctx, sess.AccountID, auditdomain.ActionSessionRevoked, sess.Identity, "")
	return nil
}

// lifetime resolves the session lifetime: the caller's requested value wins
// over the process default.
func (s *AuthService) lifetime(requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	return s.defaultLifetime
}

func (s *AuthService) record(ctx context.Context, accountID, action string, identity sessiondomain.Identity, metadata string) {
	if s.recorder == nil {
		return
	}
	ip := ""
	if identity.IP != nil {
		ip = *identity.IP
	}
	s.recorder.Record(ctx, accountID, action, ip, metadata)
}
