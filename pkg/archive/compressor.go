package archive

import (
	"context"
	"io"
)

// Process is a running compression job producing a zip stream.
//
// Wait must be called exactly once and returns the job's exit status. Kill
// may be called at any time, including while Wait is blocked, and makes both
// pending reads and Wait return promptly.
type Process interface {
	io.Reader
	Kill() error
	Wait() error
}

// Compressor starts a Process that archives dir recursively.
type Compressor interface {
	Start(ctx context.Context, dir string) (Process, error)
	Name() string
}
