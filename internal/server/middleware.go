package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	bearerPrefix = "bearer "
	jwtCookie    = "jwt"
	csrfParam    = "csrf"
)

// withAuth resolves the session for requests that present credentials and
// stores it in the request context. Requests with neither a token nor a CSRF
// value pass through anonymous; presenting exactly one of the two is rejected.
// Applied per protected route; public routes (login, registration, health)
// never inspect credentials, so a stale jwt cookie cannot block a re-login.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		csrf := r.URL.Query().Get(csrfParam)

		if token == "" && csrf == "" {
			next.ServeHTTP(w, r)
			return
		}
		if token == "" || csrf == "" {
			writeProblem(w, invalidCredentialsProblem())
			return
		}

		sess, err := s.auth.Resolve(r.Context(), token, csrf)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// requireSession guards handlers that must run with a resolved session.
func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSession(r.Context()); !ok {
			writeProblem(w, invalidCredentialsProblem())
			return
		}
		next(w, r)
	}
}

// tokenFromRequest returns the session token from the authorization header,
// with an optional Bearer prefix stripped, or from the jwt cookie. The header
// wins when both are present.
func tokenFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); v != "" {
		if len(v) >= len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(v[len(bearerPrefix):])
		}
		return v
	}
	if c, err := r.Cookie(jwtCookie); err == nil {
		return c.Value
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog logs one line per request.
func withRequestLog(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
