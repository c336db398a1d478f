package web

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"github.com/efish/efish/internal"
	"github.com/efish/efish/internal/web/sessions"
)

// viewData is the data every view is rendered with.
type viewData struct {
	Environment string
	Version     string
	CSRFToken   string
	IsLoggedIn  bool
	UserID      uuid.UUID
	Flashes     []sessions.Flash
	// InputForm holds the values to fill a form with.
	InputForm url.Values
	// InputErrors holds error messages by form field.
	InputErrors map[string]string
	Data        any
}

// page describes a view to render.
type page struct {
	// status defaults to 200.
	status int
	name   string
	data   any
	form   url.Values
	errors map[string]string
}

// writeView renders the page and writes it to w. Nothing is written when
// rendering fails, so the caller can still write an error page.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, p page) error {
	vd := viewData{
		Environment: s.cfg.Environment,
		Version:     internal.Version(),
		CSRFToken:   csrf.Token(r),
		InputForm:   p.form,
		InputErrors: p.errors,
		Data:        p.data,
	}

	// The session is missing when the session middleware itself failed.
	sess, err := sessionFromCtx(r.Context())
	if err == nil {
		vd.UserID, vd.IsLoggedIn = sess.UserID()
		vd.Flashes = sess.ConsumeFlashes()
	}

	var buf bytes.Buffer
	err = s.deps.ViewRenderer.Render(&buf, p.name, vd)
	if err != nil {
		return err
	}

	// Consuming the flashes changed the session.
	if sess != nil && sess.NeedsSave() {
		err = s.deps.SessionStore.Save(r, w, sess)
		if err != nil {
			return err
		}
	}

	status := p.status
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	if err != nil {
		// The response has started, all we can do is log.
		s.deps.Logger.Error("failed to write view", "view", p.name, "error", err)
	}

	return nil
}
