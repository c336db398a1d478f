package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/web/sessions"
)

// session is a middleware that loads the session and injects it in the
// context. Handlers save the session when they modified it.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.SessionStore.Get(r)
		if err != nil {
			s.deps.Logger.Error("failed to load session", "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := ctxWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const (
	sessionCtxKey ctxKey = "_session"
	userIDCtxKey  ctxKey = "_userID"
)

func ctxWithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

func sessionFromCtx(ctx context.Context) (*sessions.Session, error) {
	sess, ok := ctx.Value(sessionCtxKey).(*sessions.Session)
	if !ok {
		return nil, errors.New("could not get session from context")
	}

	return sess, nil
}

func ctxWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

func userIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	return userID, ok
}
