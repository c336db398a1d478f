package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/efish/efish/internal/errorz"
)

// handleError writes the error page that fits err. Unexpected errors are
// logged.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errorz.ErrNotFound) {
		s.writeErrorPage(w, r, http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		s.writeErrorPage(w, r, http.StatusBadRequest)
		return
	}

	// Only log the path, query strings can contain tokens.
	s.deps.Logger.Error("internal server error", "method", r.Method, "path", r.URL.Path, "error", err)
	s.writeErrorPage(w, r, http.StatusInternalServerError)
}

// writeErrorPage renders the error-{status} view, it falls back to plain
// text if that fails.
func (s *Server) writeErrorPage(w http.ResponseWriter, r *http.Request, status int) {
	err := s.writeView(w, r, page{
		status: status,
		name:   fmt.Sprintf("error-%d", status),
	})
	if err != nil {
		s.deps.Logger.Error("failed to render error page", "status", status, "error", err)
		http.Error(w, http.StatusText(status), status)
	}
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.deps.Logger.Warn("csrf check failed", "method", r.Method, "path", r.URL.Path, "reason", csrf.FailureReason(r))
	s.writeErrorPage(w, r, http.StatusForbidden)
}
