package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	accountservice "accounts-api/internal/account/service"
	authservice "accounts-api/internal/auth/service"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func problemFromStatus(status int) Problem {
	return Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
	}
}

func invalidCredentialsProblem() Problem {
	return Problem{
		Title:  "Invalid credentials.",
		Status: http.StatusUnauthorized,
		Detail: "The passed credentials were invalid.",
	}
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeError maps service errors onto problem responses. Anything without a
// mapping is a 500 with a generic body; the cause is logged, never leaked.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, authservice.ErrInvalidCredentials),
		errors.Is(err, accountservice.ErrNotOwner):
		writeProblem(w, invalidCredentialsProblem())
	case errors.Is(err, accountservice.ErrNotFound):
		writeProblem(w, problemFromStatus(http.StatusNotFound))
	case errors.Is(err, accountservice.ErrInvalidEmail):
		writeProblem(w, Problem{
			Title:  "Invalid email.",
			Status: http.StatusBadRequest,
			Detail: "The passed email address is not valid.",
		})
	case errors.Is(err, accountservice.ErrEmailAlreadyRegistered):
		writeProblem(w, Problem{
			Title:  "Email already registered.",
			Status: http.StatusConflict,
			Detail: "An account with this email address already exists.",
		})
	default:
		log.Error().Err(err).Msg("internal error occurred")
		writeProblem(w, problemFromStatus(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
