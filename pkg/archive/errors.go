package archive

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("archive not found")
	ErrConnectionAborted = errors.New("connection aborted")
	ErrCancelled         = errors.New("download cancelled")
	ErrSpawn             = errors.New("failed to start compressor")
)

// NotFoundMessage is the body sent to clients for unknown archives.
const NotFoundMessage = "Archive does not exist or was deleted"

type NotFoundError struct {
	ID      string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive %q: %s", e.ID, e.Message)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ProcessExitError reports a compressor that exited with a failure code on its own.
type ProcessExitError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ProcessExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("compressor exited with code %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("compressor exited with code %d", e.Code)
}

func (e *ProcessExitError) Unwrap() error {
	return e.Err
}

// IsAbort reports whether err ended a transfer early on the client side.
func IsAbort(err error) bool {
	return errors.Is(err, ErrConnectionAborted) || errors.Is(err, ErrCancelled)
}
