package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/task"
)

type dashboardView struct {
	User    auth.User
	Account account.Account
	Tasks   task.Page
}

func (s *Server) homeRoutes() {
	// Homepage sends visitors to where they can do something.
	s.public("GET /{$}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessionFromCtx(r.Context())
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		if _, ok := sess.UserID(); ok {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}

		http.Redirect(w, r, "/login", http.StatusFound)
	}))

	{
		const route = "GET /dashboard"
		h := newHandler(s, withUser(func(ctx context.Context, userID uuid.UUID, _ struct{}) (dashboardView, error) {
			u, err := s.deps.AuthService.GetUser(ctx, userID)
			if err != nil {
				return dashboardView{}, err
			}

			acct, err := s.deps.AccountService.Get(ctx, u.AccountID)
			if err != nil {
				return dashboardView{}, err
			}

			tasks, err := s.deps.TaskService.List(ctx, userID, 1)
			if err != nil {
				return dashboardView{}, err
			}

			return dashboardView{User: u, Account: acct, Tasks: tasks}, nil
		}))
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, dashboardView]) error {
			return r.view("dashboard", r.out)
		})

		s.loggedIn(route, h)
	}

	s.public("GET /api/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		if err != nil {
			s.deps.Logger.Error("failed to write ping response", "error", err)
		}
	}))
}
