package archive

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session ties one HTTP response to one compression process.
type Session struct {
	ID        string
	Request   *ArchiveRequest
	StartedAt time.Time

	sup    *Supervisor
	out    *ResponseStream
	relay  *Relay
	logger zerolog.Logger

	bytes  atomic.Int64
	chunks atomic.Int64
}

type SessionInfo struct {
	ID        string    `json:"id"`
	ArchiveID string    `json:"archive_id"`
	State     string    `json:"state"`
	Bytes     int64     `json:"bytes"`
	Chunks    int64     `json:"chunks"`
	StartedAt time.Time `json:"started_at"`
}

func newSession(ctx context.Context, req *ArchiveRequest, proc Process, out *ResponseStream, throttle, reapTimeout time.Duration, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	l := logger.With().Str("session", id).Str("archive", req.ID).Logger()
	s := &Session{
		ID:        id,
		Request:   req,
		StartedAt: time.Now(),
		sup:       NewSupervisor(ctx, proc, reapTimeout, l),
		out:       out,
		logger:    l,
	}
	s.relay = &Relay{
		ChunkSize: ChunkSize,
		Throttle:  throttle,
		Logger:    l,
		OnChunk: func(n int) {
			s.bytes.Add(int64(n))
			s.chunks.Add(1)
		},
	}
	return s
}

// Run streams the archive and reaps the process before returning, on every path.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		exitErr := s.sup.Finalize()
		if exitErr != nil {
			s.logger.Warn().Err(exitErr).Msg("Compressor exited with an error")
		}
		if err == nil {
			err = exitErr
		}
		s.logger.Debug().
			Int64("bytes", s.bytes.Load()).
			Int64("chunks", s.chunks.Load()).
			Dur("elapsed", time.Since(s.StartedAt).Round(time.Millisecond)).
			Msg("Session finished")
	}()

	if err := s.out.Prepare(); err != nil {
		s.sup.Abort(err)
		return err
	}

	if err := s.relay.Run(ctx, s.sup, s.out); err != nil {
		s.sup.Abort(err)
		switch {
		case errors.Is(err, ErrCancelled):
			s.logger.Debug().Msg("Download was interrupted")
		case errors.Is(err, ErrConnectionAborted):
			s.logger.Debug().Err(err).Msg("Connection was reset")
		default:
			s.logger.Error().Err(err).Msg("Failed to relay archive")
		}
		return err
	}
	return nil
}

func (s *Session) State() State {
	return s.sup.State()
}

func (s *Session) Bytes() int64 {
	return s.bytes.Load()
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		ArchiveID: s.Request.ID,
		State:     s.State().String(),
		Bytes:     s.bytes.Load(),
		Chunks:    s.chunks.Load(),
		StartedAt: s.StartedAt,
	}
}
