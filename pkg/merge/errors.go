package merge

import (
	"errors"

	"github.com/grafana/profdiff/pkg/profile"
)

var (
	// ErrMalformedInput is returned when a source table holds a reference
	// outside the table it refers to.
	ErrMalformedInput = errors.New("malformed input")
	// ErrMissingTable is returned when a thread lacks a table required by
	// the merge.
	ErrMissingTable = profile.ErrMissingTable
	// ErrUnsupportedPayload is returned when a marker payload cannot be
	// rewritten safely.
	ErrUnsupportedPayload = errors.New("unsupported marker payload")
	ErrInvalidArgument    = errors.New("invalid argument")
	// ErrIncompatibleProfiles is returned when the samples of the compared
	// threads cannot be combined.
	ErrIncompatibleProfiles = errors.New("incompatible profiles")
)

// malformedError matches both ErrMalformedInput and the underlying cause.
type malformedError struct{ err error }

func (e *malformedError) Error() string { return ErrMalformedInput.Error() + ": " + e.err.Error() }

func (e *malformedError) Is(target error) bool { return target == ErrMalformedInput }

func (e *malformedError) Unwrap() error { return e.err }

func malformed(err error) error {
	if err == nil || errors.Is(err, ErrMalformedInput) {
		return err
	}
	return &malformedError{err: err}
}
