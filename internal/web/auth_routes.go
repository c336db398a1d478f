package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/web/sessions"
)

// loginForm is the form on the login page.
type loginForm struct {
	Email    email.Address
	Password auth.Password
	Remember bool
	Next     string
}

type loginView struct {
	Next string
}

func (s *Server) authRoutes() {
	// Register user endpoints.
	s.publicOnly("GET /register", s.staticHandler("register"))
	{
		const route = "POST /register"
		h := newHandler(s, s.deps.AuthService.RegisterUser)
		h.onSuccess(func(r result[auth.Registration, auth.User]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Registration successful! You can now log in.", "/login")
		})
		h.onFail(func(f failure[auth.Registration]) error {
			if errors.Is(f.err, auth.ErrDuplicateUser) {
				return f.flashRedirect(sessions.LevelDanger, "Email already registered.", "/register")
			}
			return f.formView("register", nil)
		})

		s.publicOnly(route, h)
	}

	// Login user endpoints.
	{
		const route = "GET /login"
		h := newHandler(s, func(_ context.Context, v loginView) (loginView, error) {
			return v, nil
		})
		h.request(func(sh shared) (loginView, error) {
			return loginView{Next: safeNext(sh.r.URL.Query().Get("next"))}, nil
		})
		h.onSuccess(func(r result[loginView, loginView]) error {
			return r.view("login", r.out)
		})

		s.publicOnly(route, h)
	}
	{
		const route = "POST /login"
		h := newHandler(s, func(ctx context.Context, in loginForm) (auth.User, error) {
			return s.deps.AuthService.Authenticate(ctx, auth.Credentials{
				Email:    in.Email,
				Password: in.Password,
			})
		})
		h.onSuccess(func(r result[loginForm, auth.User]) error {
			// Clearing the CSRF token after login makes a token that leaked
			// before login worthless. A new one is created on the next GET.
			http.SetCookie(r.w, &http.Cookie{
				Name:   csrfTokenCookieName,
				Path:   "/",
				MaxAge: -1,
			})

			r.sess.SetUserID(r.out.ID, r.in.Remember)
			r.sess.AddFlash(sessions.LevelSuccess, "Logged in successfully.")

			next := safeNext(r.in.Next)
			if next == "" {
				next = "/dashboard"
			}

			return r.redirect(next)
		})
		h.onFail(func(f failure[loginForm]) error {
			var invalid errorz.InvalidInput
			if !errors.Is(f.err, auth.ErrInvalidCredentials) && !errors.As(f.err, &invalid) {
				return f.err
			}

			target := "/login"
			if next := safeNext(f.r.PostFormValue("Next")); next != "" {
				target += "?" + url.Values{"next": {next}}.Encode()
			}

			return f.flashRedirect(sessions.LevelDanger, "Login unsuccessful. Please check email and password.", target)
		})

		s.publicOnly(route, h)
	}

	// Logout user endpoint.
	{
		const route = "POST /logout"
		h := newHandler(s, func(context.Context, struct{}) (struct{}, error) {
			return struct{}{}, nil
		})
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, struct{}]) error {
			r.sess.DeleteUserID()
			return r.flashRedirect(sessions.LevelInfo, "You have been logged out.", "/login")
		})

		s.loggedIn(route, h)
	}
}
