package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ChunkSize is the amount of compressed output relayed per write.
const ChunkSize = 100 * 1024

type ChunkWriter interface {
	WriteChunk(p []byte) error
}

// Relay copies compressed output to the client chunk by chunk.
type Relay struct {
	ChunkSize int
	Throttle  time.Duration
	Logger    zerolog.Logger

	// OnChunk is called after every chunk that reached the client.
	OnChunk func(n int)
}

// Run forwards src to dst until src is exhausted. Every chunk except the last
// is exactly ChunkSize bytes. A nil return means normal completion.
func (r *Relay) Run(ctx context.Context, src io.Reader, dst ChunkWriter) error {
	size := r.ChunkSize
	if size <= 0 {
		size = ChunkSize
	}
	buf := make([]byte, size)

	for sent := 0; ; sent++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		n, err := io.ReadFull(src, buf)
		last := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			return err
		}
		if n == 0 {
			r.Logger.Debug().Msg("Finish sending archive chunks")
			return nil
		}

		// The pause sits between chunks, so it only happens once the next one exists.
		if sent > 0 && r.Throttle > 0 {
			r.Logger.Debug().Dur("sleep", r.Throttle).Msg("Throttling before next chunk")
			if err := sleep(ctx, r.Throttle); err != nil {
				return err
			}
		}

		r.Logger.Debug().Int("size", n).Msg("Sending archive chunk")
		if err := dst.WriteChunk(buf[:n]); err != nil {
			return err
		}
		if r.OnChunk != nil {
			r.OnChunk(n)
		}
		if last {
			r.Logger.Debug().Msg("Finish sending archive chunks")
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}
