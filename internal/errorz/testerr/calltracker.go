// Package testerr helps simulating failing dependencies in tests.
package testerr

import "errors"

// Err is the error returned by failing calltrackers in tests.
var Err = errors.New("test error")

// Calltracker counts the calls made to a dependency and decides which
// of them fail. The zero value never fails.
type Calltracker struct {
	CallIndex         int
	ShouldFail        bool
	Err               error
	FailAllAfterIndex bool
	FailAtIndex       int
}

// NewFailingDeps returns two trackers for every call index below
// expectCalls: one where only that call fails and one where that call
// and every call after it fail.
func NewFailingDeps(err error, expectCalls int) []Calltracker {
	trackers := make([]Calltracker, 0, expectCalls*2)
	for i := 0; i < expectCalls; i++ {
		for _, after := range []bool{true, false} {
			trackers = append(trackers, Calltracker{
				CallIndex:         -1,
				ShouldFail:        true,
				Err:               err,
				FailAllAfterIndex: after,
				FailAtIndex:       i,
			})
		}
	}

	return trackers
}

// next records a call and returns the error it should fail with, if any.
func (ct *Calltracker) next() error {
	if !ct.ShouldFail {
		return nil
	}

	ct.CallIndex++

	switch {
	case ct.CallIndex == ct.FailAtIndex:
		return ct.Err
	case ct.FailAllAfterIndex && ct.CallIndex > ct.FailAtIndex:
		return ct.Err
	default:
		return nil
	}
}

// MaybeFailErrFunc calls f unless the tracker decides this call fails.
func MaybeFailErrFunc(ct *Calltracker, f func() error) error {
	if err := ct.next(); err != nil {
		return err
	}
	return f()
}

// MaybeFail calls f unless the tracker decides this call fails.
func MaybeFail[T any](ct *Calltracker, f func() (T, error)) (T, error) {
	if err := ct.next(); err != nil {
		var zero T
		return zero, err
	}
	return f()
}
