package app

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a path is absent from disk or from the index.
var ErrNotFound = errors.New("path not found")

// ErrPoolBusy is returned by WorkerPool.Submit when the pool is saturated and
// configured to fail fast instead of queueing.
var ErrPoolBusy = errors.New("worker pool busy")

// ErrEditMismatch is returned by EditFile when an edit's OldText does not
// occur in the file content. No edit is applied.
var ErrEditMismatch = errors.New("text to replace not found in file")

// QuerySecurityError rejects a raw query before execution. Security
// validation fails closed: no side effect occurs.
type QuerySecurityError struct {
	Reason string
}

func (e *QuerySecurityError) Error() string {
	return fmt.Sprintf("query rejected: %s", e.Reason)
}
