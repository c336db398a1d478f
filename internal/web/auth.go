package web

import (
	"net/http"
	"net/url"
	"strings"
)

// public routes are available to everyone.
func (s *Server) public(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// publicOnly routes are only available to visitors that are not logged
// in, others are sent to their dashboard.
func (s *Server) publicOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessionFromCtx(r.Context())
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		if _, ok := sess.UserID(); ok {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// loggedIn routes require a logged in user, the ID of the user is put
// in the request context. Others are sent to the login page.
func (s *Server) loggedIn(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessionFromCtx(r.Context())
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		userID, ok := sess.UserID()
		if !ok {
			target := "/login"
			if r.Method == http.MethodGet {
				target += "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
			}

			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		ctx := ctxWithUserID(r.Context(), userID)
		handler.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// safeNext returns next if it's a path on this site, otherwise it
// returns an empty string. This prevents open redirects after login.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}

	return next
}
