package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the closed error taxonomy of the orchestration
// core. These can be checked with errors.Is(); the API layer maps each kind
// to exactly one HTTP status.
var (
	// ErrValidation marks client-fixable split parameter errors. The
	// wrapped message is surfaced verbatim.
	ErrValidation = errors.New("validation error")

	// ErrNotFound covers unknown jobs and missing source/output objects.
	ErrNotFound = errors.New("not found")

	// ErrQueueUnavailable marks transient queue infrastructure failures.
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrStoreUnavailable marks transient record/blob store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}

func notFoundError(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func queueError(err error) error {
	return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func errInvalidStatus(s Status) error {
	return fmt.Errorf("unknown status %q", s)
}

func errInvalidProgress(p int) error {
	return fmt.Errorf("progress %d out of range 0-100", p)
}
