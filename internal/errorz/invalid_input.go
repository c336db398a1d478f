package errorz

import (
	"errors"
	"strings"
)

// Keyed ties an error to a form field, Key is the schema name of the field.
type Keyed struct {
	Key string
	Err error
}

func (k Keyed) Error() string {
	return k.Key + ": " + k.Err.Error()
}

func (k Keyed) Unwrap() error {
	return k.Err
}

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:\n")
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}

// Fields returns the first error message for every field, so that forms
// can show it next to the offending input. Errors without a field are
// listed under the empty key.
func (e InvalidInput) Fields() map[string]string {
	out := make(map[string]string, len(e))
	for _, err := range e {
		key, msg := "", err.Error()

		var k Keyed
		if errors.As(err, &k) {
			key, msg = k.Key, k.Err.Error()
		}

		if _, ok := out[key]; !ok {
			out[key] = msg
		}
	}
	return out
}
