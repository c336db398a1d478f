package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/web/sessions"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and maps the outcome to the response.
type mapper[IN, OUT any] struct {
	srv         *Server
	reqToInFunc func(shared) (IN, error)
	targetFunc  func(context.Context, IN) (OUT, error)
	successFunc func(result[IN, OUT]) error
	failFunc    func(failure[IN]) error
}

// shared is what every step of a mapper has access to.
type shared struct {
	s    *Server
	w    http.ResponseWriter
	r    *http.Request
	sess *sessions.Session
}

// result is the outcome of a successful target call.
type result[IN, OUT any] struct {
	shared
	in  IN
	out OUT
}

// failure is the outcome of a failed request mapping or target call.
type failure[IN any] struct {
	shared
	in  IN
	err error
}

// request overwrites the function that maps the request to the input type.
func (m *mapper[IN, OUT]) request(fn func(shared) (IN, error)) *mapper[IN, OUT] {
	m.reqToInFunc = fn
	return m
}

// onSuccess overwrites the function that writes the response after the
// target was called successfully.
func (m *mapper[IN, OUT]) onSuccess(fn func(result[IN, OUT]) error) *mapper[IN, OUT] {
	m.successFunc = fn
	return m
}

// onFail overwrites the function that handles errors of the request
// mapping and the target. Errors it returns are written using the server
// error handler.
func (m *mapper[IN, OUT]) onFail(fn func(failure[IN]) error) *mapper[IN, OUT] {
	m.failFunc = fn
	return m
}

func (m *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		m.srv.handleError(w, r, err)
		return
	}

	sh := shared{
		s:    m.srv,
		w:    w,
		r:    r,
		sess: sess,
	}

	in, err := m.reqToInFunc(sh)
	if err != nil {
		m.fail(failure[IN]{shared: sh, in: in, err: err})
		return
	}

	out, err := m.targetFunc(r.Context(), in)
	if err != nil {
		m.fail(failure[IN]{shared: sh, in: in, err: err})
		return
	}

	err = m.successFunc(result[IN, OUT]{shared: sh, in: in, out: out})
	if err != nil {
		m.srv.handleError(w, r, err)
	}
}

func (m *mapper[IN, OUT]) fail(f failure[IN]) {
	err := m.failFunc(f)
	if err != nil {
		m.srv.handleError(f.w, f.r, err)
	}
}

// redirect saves the session if needed and redirects to url.
func (sh shared) redirect(url string) error {
	if sh.sess.NeedsSave() {
		err := sh.s.deps.SessionStore.Save(sh.r, sh.w, sh.sess)
		if err != nil {
			return err
		}
	}

	http.Redirect(sh.w, sh.r, url, http.StatusFound)
	return nil
}

// flashRedirect adds a flash message and redirects to url.
func (sh shared) flashRedirect(level, msg, url string) error {
	sh.sess.AddFlash(level, msg)
	return sh.redirect(url)
}

// view renders the named view.
func (sh shared) view(name string, data any) error {
	return sh.s.writeView(sh.w, sh.r, page{name: name, data: data})
}

// formView re-renders the form the request was submitted from when the
// failure was caused by invalid input. Other errors are returned as is.
func (f failure[IN]) formView(name string, data any) error {
	var invalid errorz.InvalidInput
	if !errors.As(f.err, &invalid) {
		return f.err
	}

	return f.s.writeView(f.w, f.r, page{
		status: http.StatusBadRequest,
		name:   name,
		data:   data,
		form:   f.r.PostForm,
		errors: invalid.Fields(),
	})
}
