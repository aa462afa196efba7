package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type State int

const (
	StateSpawned State = iota
	StateStreaming
	StateExhausted
	StateAborted
	StateReaped
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateStreaming:
		return "streaming"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// Supervisor owns one compression Process for the lifetime of a session.
// Nothing else may signal or wait on the process.
type Supervisor struct {
	proc        Process
	reapTimeout time.Duration
	logger      zerolog.Logger

	mu     sync.Mutex
	state  State
	cause  error
	killed bool

	stopWatch func() bool
	once      sync.Once
	exitErr   error
}

// NewSupervisor takes ownership of proc. When ctx ends before the output is
// exhausted the session is aborted and the process killed, which unblocks any
// pending Read.
func NewSupervisor(ctx context.Context, proc Process, reapTimeout time.Duration, logger zerolog.Logger) *Supervisor {
	s := &Supervisor{
		proc:        proc,
		reapTimeout: reapTimeout,
		logger:      logger,
		state:       StateSpawned,
	}
	s.stopWatch = context.AfterFunc(ctx, func() {
		s.Abort(ErrCancelled)
	})
	return s
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Read pulls the next bytes of compressed output.
func (s *Supervisor) Read(p []byte) (int, error) {
	s.mu.Lock()
	switch s.state {
	case StateSpawned:
		s.state = StateStreaming
	case StateAborted:
		cause := s.cause
		s.mu.Unlock()
		return 0, cause
	case StateExhausted, StateReaped:
		s.mu.Unlock()
		return 0, io.EOF
	}
	s.mu.Unlock()

	n, err := s.proc.Read(p)
	if err == nil {
		return n, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAborted {
		// A killed process closes its output; that is not a normal end.
		return n, s.cause
	}
	if errors.Is(err, io.EOF) {
		s.state = StateExhausted
	}
	return n, err
}

// Abort marks the session as aborted and kills the process. It has no effect
// once the output has been exhausted or the process reaped.
func (s *Supervisor) Abort(cause error) {
	s.mu.Lock()
	if s.state != StateSpawned && s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	if cause == nil {
		cause = ErrCancelled
	}
	s.state = StateAborted
	s.cause = cause
	s.mu.Unlock()

	s.kill()
}

func (s *Supervisor) kill() {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
	if err := s.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug().Err(err).Msg("Failed to kill compressor")
	}
}

// Finalize reaps the process exactly once and returns its exit error.
// After normal completion the process gets reapTimeout to exit on its own
// before being killed; in every other state it is killed right away.
// A non-zero exit caused by our own kill is not reported.
func (s *Supervisor) Finalize() error {
	s.once.Do(func() {
		s.stopWatch()

		state := s.State()
		if state != StateExhausted {
			s.kill()
		}

		done := make(chan error, 1)
		go func() {
			done <- s.proc.Wait()
		}()

		var err error
		if state == StateExhausted {
			timer := time.NewTimer(s.reapTimeout)
			select {
			case err = <-done:
			case <-timer.C:
				s.logger.Warn().Dur("timeout", s.reapTimeout).Msg("Compressor did not exit after finishing output, killing it")
				s.kill()
				err = <-done
			}
			timer.Stop()
		} else {
			err = <-done
		}

		s.mu.Lock()
		s.state = StateReaped
		killed := s.killed
		s.mu.Unlock()

		if err != nil && !killed {
			s.exitErr = err
		}
	})
	return s.exitErr
}
