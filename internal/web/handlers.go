package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/schema"

	"github.com/efish/efish/internal/errorz"
)

var errRequired = errors.New("is required")

// newHandler creates a HTTP Handler that:
// 1. Maps the request to a value of input type IN.
// 2. Calls the target func with that value.
// 3. Renders the output of type OUT, by default as the view called name.
//
// Errors are written using the server error handler.
func newHandler[IN, OUT any](srv *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		srv: srv,
		reqToInFunc: func(sh shared) (IN, error) {
			return defaultReqToIn[IN](sh)
		},
		targetFunc: targetFunc,
		successFunc: func(r result[IN, OUT]) error {
			return fmt.Errorf("no response defined for %s %s", r.r.Method, r.r.URL.Path)
		},
		failFunc: func(f failure[IN]) error {
			return f.err
		},
	}
}

// newInputHandler creates a HTTP Handler like newHandler, for targets
// that only return an error.
func newInputHandler[IN any](srv *Server, targetFunc func(context.Context, IN) error) *mapper[IN, struct{}] {
	return newHandler(srv, func(ctx context.Context, in IN) (struct{}, error) {
		return struct{}{}, targetFunc(ctx, in)
	})
}

// withUser adapts a target that acts on behalf of the logged in user.
func withUser[IN, OUT any](fn func(context.Context, uuid.UUID, IN) (OUT, error)) func(context.Context, IN) (OUT, error) {
	return func(ctx context.Context, in IN) (OUT, error) {
		userID, ok := userIDFromCtx(ctx)
		if !ok {
			var out OUT
			return out, errors.New("no user in request context")
		}

		return fn(ctx, userID, in)
	}
}

// noInput is a request mapper for targets without input.
func noInput(shared) (struct{}, error) {
	return struct{}{}, nil
}

// defaultReqToIn decodes the form of the request into IN.
func defaultReqToIn[IN any](sh shared) (IN, error) {
	var in IN
	err := sh.r.ParseForm()
	if err != nil {
		return in, err
	}

	// Remove the CSRF token from the form, it won't need to be mapped
	// to any target types and the decoder will fail on it.
	sh.r.Form.Del(csrfTokenField)

	err = sh.s.decoder.Decode(&in, sh.r.Form)
	return in, decodeError(err)
}

// decodeError maps decoding errors to errorz.InvalidInput, keyed by the
// form field.
func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if !errors.As(err, &multiErr) {
		return err
	}

	var invalidInput errorz.InvalidInput
	for key, e := range multiErr {
		var convErr schema.ConversionError
		var emptyErr schema.EmptyFieldError
		switch {
		case errors.As(e, &convErr) && convErr.Err != nil:
			e = convErr.Err
		case errors.As(e, &emptyErr):
			e = errRequired
		}

		invalidInput = append(invalidInput, errorz.Keyed{
			Key: key,
			Err: e,
		})
	}

	return invalidInput
}
