package service

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches every failure to obtain a usable reply from a
// collaborator: transport errors, timeouts, non-2xx statuses and malformed
// bodies.
var ErrUnavailable = errors.New("collaborator unavailable")

// ErrMalformed matches replies that could not be decoded or failed schema
// validation. It also matches ErrUnavailable.
var ErrMalformed = fmt.Errorf("%w: malformed response", ErrUnavailable)

// UnavailableError describes a failed call.
type UnavailableError struct {
	Op     string
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

type malformedError struct {
	op  string
	err error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrMalformed, e.err)
}

func (e *malformedError) Unwrap() []error { return []error{ErrMalformed, e.err} }
