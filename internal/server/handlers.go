package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	accountservice "accounts-api/internal/account/service"
	auditdomain "accounts-api/internal/audit/domain"
	authservice "accounts-api/internal/auth/service"
	sessiondomain "accounts-api/internal/session/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Lifetime is the requested session lifetime in seconds; nil uses the
	// configured default.
	Lifetime *int64 `json:"lifetime"`
}

type loginResponse struct {
	JWT  string `json:"jwt"`
	CSRF string `json:"csrf"`
}

// handleLogin verifies credentials and issues a session. The token is
// returned in the body and as an HttpOnly cookie; the CSRF value only in the
// body, so a caller must echo it back explicitly.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, Problem{
			Title:  "Invalid request body.",
			Status: http.StatusBadRequest,
			Detail: "Request body is not valid JSON.",
		})
		return
	}

	creds := authservice.Credentials{Email: req.Email, Password: req.Password}
	if req.Lifetime != nil {
		if *req.Lifetime <= 0 {
			writeProblem(w, Problem{
				Title:  "Invalid lifetime.",
				Status: http.StatusBadRequest,
				Detail: "lifetime must be a positive number of seconds.",
			})
			return
		}
		creds.Lifetime = time.Duration(*req.Lifetime) * time.Second
	}

	token, csrf, err := s.auth.Login(r.Context(), creds, identityFromRequest(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{JWT: token, CSRF: csrf})
}

// handleRevoke invalidates the caller's own session and clears the cookie.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())
	if err := s.auth.Revoke(r.Context(), sess); err != nil {
		writeError(w, s.log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleListAuthEvents returns the caller's own authentication audit trail,
// newest first.
func (s *Server) handleListAuthEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	limit, ok := queryInt32(w, r, "limit", 50, 1)
	if !ok {
		return
	}
	offset, ok := queryInt32(w, r, "offset", 0, 0)
	if !ok {
		return
	}

	events, err := s.events.ListByAccount(r.Context(), sess.AccountID, limit, offset)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if events == nil {
		events = []*auditdomain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// queryInt32 parses an optional integer query parameter, writing a 400 problem
// and returning ok=false when the value is present but unusable.
func queryInt32(w http.ResponseWriter, r *http.Request, name string, def, min int32) (int32, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || int32(n) < min {
		writeProblem(w, Problem{
			Title:  "Invalid query parameter.",
			Status: http.StatusBadRequest,
			Detail: name + " must be an integer >= " + strconv.Itoa(int(min)) + ".",
		})
		return 0, false
	}
	return int32(n), true
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleCreateAccount registers a new account. Open to anonymous callers.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, Problem{
			Title:  "Invalid request body.",
			Status: http.StatusBadRequest,
			Detail: "Request body is not valid JSON.",
		})
		return
	}
	account, err := s.accounts.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

type updateAccountRequest struct {
	Email *string `json:"email"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())
	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, Problem{
			Title:  "Invalid request body.",
			Status: http.StatusBadRequest,
			Detail: "Request body is not valid JSON.",
		})
		return
	}
	account, err := s.accounts.Update(r.Context(), sess.AccountID, r.PathValue("id"),
		accountservice.UpdateInput{Email: req.Email})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())
	if err := s.accounts.Delete(r.Context(), sess.AccountID, r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthz pings the backing stores and reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.log.Error().Err(err).Str("check", name).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identityFromRequest captures what we know about the caller at login time.
func identityFromRequest(r *http.Request) sessiondomain.Identity {
	identity := sessiondomain.Identity{}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		identity.IP = &host
	}
	return identity
}
