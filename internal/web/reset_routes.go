package web

import (
	"context"
	"errors"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/krypto"
	"github.com/efish/efish/internal/web/sessions"
)

// resetRequest is the form on the forgot password page.
type resetRequest struct {
	Email email.Address `schema:",required"`
}

type resetPasswordView struct {
	Token string
}

func (s *Server) resetRoutes() {
	// Request password reset endpoints.
	s.publicOnly("GET /forgot-password", s.staticHandler("forgot-password"))
	{
		const route = "POST /forgot-password"
		h := newInputHandler(s, func(ctx context.Context, in resetRequest) error {
			// Whether an email was sent is never shown, failures end up
			// in the error log of the auth service.
			s.deps.AuthService.RequestPasswordReset(ctx, in.Email)
			return nil
		})
		h.onSuccess(func(r result[resetRequest, struct{}]) error {
			return r.flashRedirect(sessions.LevelInfo, "If an account exists for that email, a reset link has been sent.", "/login")
		})
		h.onFail(func(f failure[resetRequest]) error {
			return f.formView("forgot-password", nil)
		})

		s.publicOnly(route, s.rateLimited(s.resetLimiter, h))
	}

	// Reset password endpoints.
	{
		const route = "GET /password-resets"
		h := newHandler(s, func(ctx context.Context, token string) (resetPasswordView, error) {
			err := s.deps.AuthService.CheckResetToken(ctx, token)
			if err != nil {
				return resetPasswordView{}, err
			}
			return resetPasswordView{Token: token}, nil
		})
		h.request(func(sh shared) (string, error) {
			return sh.r.URL.Query().Get("token"), nil
		})
		h.onSuccess(func(r result[string, resetPasswordView]) error {
			return r.view("reset-password", r.out)
		})
		h.onFail(func(f failure[string]) error {
			if handled, err := resetFailure(f.shared, f.err); handled {
				return err
			}
			return f.err
		})

		s.publicOnly(route, h)
	}
	{
		const route = "POST /password-resets"
		h := newInputHandler(s, s.deps.AuthService.ResetPassword)
		h.onSuccess(func(r result[auth.PasswordReset, struct{}]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Your password has been updated! You can now log in.", "/login")
		})
		h.onFail(func(f failure[auth.PasswordReset]) error {
			if handled, err := resetFailure(f.shared, f.err); handled {
				return err
			}

			return f.formView("reset-password", resetPasswordView{Token: f.r.PostFormValue("Token")})
		})

		s.publicOnly(route, h)
	}
}

// resetFailure redirects the user to where they can recover from a token
// or user error, it reports false for any other error. Both token errors
// end up at the same place, only the message differs.
func resetFailure(sh shared, err error) (bool, error) {
	switch {
	case errors.Is(err, krypto.ErrExpiredToken):
		return true, sh.flashRedirect(sessions.LevelWarning, "The reset link has expired. Please request a new one.", "/forgot-password")
	case errors.Is(err, krypto.ErrInvalidToken):
		return true, sh.flashRedirect(sessions.LevelDanger, "Invalid reset token.", "/forgot-password")
	case errors.Is(err, auth.ErrUserNotFound):
		return true, sh.flashRedirect(sessions.LevelDanger, "User not found.", "/register")
	default:
		return false, nil
	}
}
