// Package web serves the HTML pages of efish.
package web

import (
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/krypto"
	"github.com/efish/efish/internal/task"
	"github.com/efish/efish/internal/web/sessions"
)

const (
	csrfTokenField      = "csrf_token"
	csrfTokenCookieName = "efish-csrf"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger         *slog.Logger
	ViewRenderer   ViewRenderer
	AuthService    *auth.Service
	AccountService *account.Service
	TaskService    *task.Service
	SessionStore   *sessions.Store
	DistFS         fs.FS
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	// Environment is shown in the views, e.g. "development".
	Environment  string
	CSRFKey      krypto.Key
	SecureCookie bool
	// ResetRateInterval is the average time a single client has to wait
	// between password reset requests. Zero disables the limit.
	ResetRateInterval time.Duration
	// ResetRateBurst is the number of reset requests a client can make
	// before it has to wait.
	ResetRateBurst int
}

type Server struct {
	deps         *ServerDeps
	cfg          ServerConfig
	mux          *http.ServeMux
	decoder      *schema.Decoder
	resetLimiter *ipLimiter
	handler      http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps:         deps,
		cfg:          cfg,
		mux:          http.NewServeMux(),
		decoder:      schema.NewDecoder(),
		resetLimiter: newIPLimiter(cfg.ResetRateInterval, cfg.ResetRateBurst),
	}

	// Most endpoints are created using the newHandler functions, these
	// map between HTTP requests, service calls and HTTP responses.
	s.homeRoutes()
	s.authRoutes()
	s.resetRoutes()
	s.profileRoutes()
	s.accountRoutes()
	s.taskRoutes()

	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(s.deps.DistFS)))

	// Anything that didn't match gets the 404 page instead of the plain
	// text response of the mux.
	s.public("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorPage(w, r, http.StatusNotFound)
	}))

	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Path("/"),
		csrf.Secure(cfg.SecureCookie),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)

	middlewares := []func(http.Handler) http.Handler{
		s.requestLog,
		s.session,
	}

	// Without secure cookies we are served over plain HTTP, which the
	// CSRF middleware needs to know to skip its HTTPS referer checks.
	if !cfg.SecureCookie {
		middlewares = append(middlewares, plaintextHTTP)
	}

	middlewares = append(middlewares, csrfMW)

	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) staticHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.writeView(w, r, page{name: name})
		if err != nil {
			s.handleError(w, r, err)
			return
		}
	}
}

func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
