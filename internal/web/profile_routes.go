package web

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/web/sessions"
)

func (s *Server) profileRoutes() {
	getUser := withUser(func(ctx context.Context, userID uuid.UUID, _ struct{}) (auth.User, error) {
		return s.deps.AuthService.GetUser(ctx, userID)
	})

	{
		const route = "GET /profile"
		h := newHandler(s, getUser)
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, auth.User]) error {
			return r.view("profile", r.out)
		})

		s.loggedIn(route, h)
	}
	{
		const route = "GET /profile/edit"
		h := newHandler(s, getUser)
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, auth.User]) error {
			return r.s.writeView(r.w, r.r, page{
				name: "profile-edit",
				form: profileForm(auth.ProfileOf(r.out)),
			})
		})

		s.loggedIn(route, h)
	}
	{
		const route = "POST /profile/edit"
		h := newHandler(s, withUser(s.deps.AuthService.UpdateProfile))
		h.onSuccess(func(r result[auth.Profile, auth.User]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Profile updated successfully!", "/profile")
		})
		h.onFail(func(f failure[auth.Profile]) error {
			if errors.Is(f.err, auth.ErrDuplicateUser) {
				f.err = errorz.InvalidInput{
					errorz.Keyed{Key: "Email", Err: f.err},
				}
			}
			return f.formView("profile-edit", nil)
		})

		s.loggedIn(route, h)
	}
}

// profileForm fills the profile form with p.
func profileForm(p auth.Profile) url.Values {
	return url.Values{
		"Email":     {p.Email.String()},
		"FirstName": {p.FirstName},
		"LastName":  {p.LastName},
		"Username":  {p.Username},
		"Phone":     {p.Phone},
		"TimeZone":  {p.TimeZone},
		"AboutMe":   {p.AboutMe},
	}
}
