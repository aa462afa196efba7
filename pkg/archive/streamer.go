package archive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/config"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/semaphore"
)

// Streamer serves archives for one configuration. It holds no per-request state.
type Streamer struct {
	baseDir     string
	compressor  Compressor
	throttle    time.Duration
	reapTimeout time.Duration

	slots   *semaphore.Weighted // nil when unlimited
	spawnRL ratelimit.Limiter   // nil when unlimited

	registry *Registry
	logger   zerolog.Logger
}

func NewStreamer(cfg *config.Config, compressor Compressor, registry *Registry, logger zerolog.Logger) (*Streamer, error) {
	baseDir, err := cfg.BaseDir()
	if err != nil {
		return nil, fmt.Errorf("invalid photos path: %w", err)
	}
	s := &Streamer{
		baseDir:     baseDir,
		compressor:  compressor,
		throttle:    cfg.Throttle(),
		reapTimeout: cfg.GetReapTimeout(),
		registry:    registry,
		logger:      logger,
	}
	if cfg.MaxConcurrent > 0 {
		s.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.SpawnRate != "" {
		rate, err := config.ParseRateLimit(cfg.SpawnRate)
		if err != nil {
			return nil, err
		}
		s.spawnRL = ratelimit.New(rate.Count, ratelimit.Per(rate.Per))
	}
	return s, nil
}

// NewCompressor picks the compressor named by the configuration.
func NewCompressor(cfg *config.Config) Compressor {
	if cfg.Compressor == config.CompressorNative {
		return NewNativeCompressor()
	}
	return NewZipCompressor(cfg.ZipBinary)
}

func (s *Streamer) Registry() *Registry {
	return s.registry
}

func (s *Streamer) BaseDir() string {
	return s.baseDir
}

// Stream writes the archive for id to w. ErrNotFound, ErrSpawn and a
// cancellation while waiting for a free slot are returned before anything was
// written; every other error is returned after the response was committed.
func (s *Streamer) Stream(ctx context.Context, w http.ResponseWriter, id string) (err error) {
	req, err := Resolve(s.baseDir, id)
	if err != nil {
		return err
	}

	if s.slots != nil {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: waiting for a free slot: %v", ErrCancelled, err)
		}
		defer s.slots.Release(1)
	}
	if err := s.waitSpawnToken(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	proc, err := s.compressor.Start(ctx, req.Dir)
	if err != nil {
		return err
	}

	sess := newSession(ctx, req, proc, NewResponseStream(w), s.throttle, s.reapTimeout, s.logger)
	s.registry.add(sess)
	sess.logger.Debug().Str("dir", req.Dir).Str("compressor", s.compressor.Name()).Msg("Streaming archive")

	defer func() {
		s.registry.remove(sess, err)
	}()
	return sess.Run(ctx)
}

// waitSpawnToken blocks until the spawn rate allows another process or ctx
// ends. The limiter has no context support; an abandoned Take finishes within
// one period and its token is spent.
func (s *Streamer) waitSpawnToken(ctx context.Context) error {
	if s.spawnRL == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.spawnRL.Take()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for spawn rate: %v", ErrCancelled, ctx.Err())
	}
}
