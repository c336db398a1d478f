package web

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/web/sessions"
)

// accountForm is the form to edit an account.
type accountForm struct {
	Name     string
	PlanType string
}

func (s *Server) accountRoutes() {
	// Users only ever see the account they belong to.
	ownAccount := withUser(func(ctx context.Context, userID uuid.UUID, _ struct{}) (account.Account, error) {
		return s.userAccount(ctx, userID)
	})

	{
		const route = "GET /account"
		h := newHandler(s, ownAccount)
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, account.Account]) error {
			return r.view("account", r.out)
		})

		s.loggedIn(route, h)
	}
	{
		const route = "GET /account/edit"
		h := newHandler(s, ownAccount)
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, account.Account]) error {
			return r.s.writeView(r.w, r.r, page{
				name: "account-edit",
				data: r.out,
				form: url.Values{
					"Name":     {r.out.Name},
					"PlanType": {r.out.PlanType},
				},
			})
		})

		s.loggedIn(route, h)
	}
	{
		const route = "POST /account/edit"
		h := newHandler(s, withUser(func(ctx context.Context, userID uuid.UUID, in accountForm) (account.Account, error) {
			acct, err := s.userAccount(ctx, userID)
			if err != nil {
				return account.Account{}, err
			}

			return s.deps.AccountService.Update(ctx, account.AccountUpdate{
				ID:       acct.ID,
				Name:     in.Name,
				PlanType: in.PlanType,
			})
		}))
		h.onSuccess(func(r result[accountForm, account.Account]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Account updated!", "/account")
		})
		h.onFail(func(f failure[accountForm]) error {
			return f.formView("account-edit", nil)
		})

		s.loggedIn(route, h)
	}
}

func (s *Server) userAccount(ctx context.Context, userID uuid.UUID) (account.Account, error) {
	u, err := s.deps.AuthService.GetUser(ctx, userID)
	if err != nil {
		return account.Account{}, err
	}

	return s.deps.AccountService.Get(ctx, u.AccountID)
}
