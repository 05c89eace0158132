// Package server exposes the HTTP surface: login, session revocation, account
// CRUD, and health. Session resolution happens in middleware; handlers read
// the resolved session from the request context.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	accountservice "accounts-api/internal/account/service"
	auditrepo "accounts-api/internal/audit/repository"
	authservice "accounts-api/internal/auth/service"
)

// HealthCheck reports liveness of one backing store.
type HealthCheck func(ctx context.Context) error

// Server wires the services to HTTP routes.
type Server struct {
	auth     *authservice.AuthService
	accounts *accountservice.Service
	events   auditrepo.Repository
	checks   map[string]HealthCheck
	log      zerolog.Logger
	http     *http.Server
}

// NewServer returns a Server listening on addr once Start is called.
// checks may be nil; healthz then always reports ok.
func NewServer(
	addr string,
	auth *authservice.AuthService,
	accounts *accountservice.Service,
	events auditrepo.Repository,
	checks map[string]HealthCheck,
	log zerolog.Logger,
) (*Server, error) {
	if auth == nil {
		return nil, errors.New("auth service is required")
	}
	if accounts == nil {
		return nil, errors.New("account service is required")
	}
	if events == nil {
		return nil, errors.New("audit event repo is required")
	}
	s := &Server{
		auth:     auth,
		accounts: accounts,
		events:   events,
		checks:   checks,
		log:      log,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           withRequestLog(log, s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth", s.handleLogin)
	mux.Handle("DELETE /session", s.withAuth(requireSession(s.handleRevoke)))
	mux.Handle("GET /auth/events", s.withAuth(requireSession(s.handleListAuthEvents)))

	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.Handle("GET /accounts", s.withAuth(requireSession(s.handleListAccounts)))
	mux.Handle("GET /accounts/{id}", s.withAuth(requireSession(s.handleGetAccount)))
	mux.Handle("PATCH /accounts/{id}", s.withAuth(requireSession(s.handleUpdateAccount)))
	mux.Handle("DELETE /accounts/{id}", s.withAuth(requireSession(s.handleDeleteAccount)))

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}

// Handler exposes the full middleware chain, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
