package photozip

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/sirrobot01/photozip/internal/config"
	"github.com/sirrobot01/photozip/internal/logger"
	"github.com/sirrobot01/photozip/pkg/archive"
	"github.com/sirrobot01/photozip/pkg/server"
	"github.com/sirrobot01/photozip/pkg/version"
	"github.com/sirrobot01/photozip/pkg/web"
	"golang.org/x/sync/errgroup"
)

// Start runs the archive service until ctx is cancelled or a service fails.
func Start(ctx context.Context, cfg *config.Config) error {
	if err := logger.Setup(cfg.LogLevel, cfg.LogDir); err != nil {
		return err
	}
	_log := logger.Default()

	fmt.Printf(`
+-------------------------------------------------------+
|  photozip (%s)
+-------------------------------------------------------+
|  Log Level: %s
|  Photos:    %s
+-------------------------------------------------------+
`, version.GetInfo(), cfg.LogLevel, cfg.PhotosPath)

	if throttle := cfg.Throttle(); throttle > 0 {
		_log.Debug().Dur("sleep", throttle).Msg("Throttling archive chunks")
	}
	if _, err := os.Stat(cfg.PhotosPath); err != nil {
		_log.Warn().Err(err).Str("path", cfg.PhotosPath).Msg("Photos path is not accessible")
	}

	registry := archive.NewRegistry(logger.New("archive"))
	streamer, err := archive.NewStreamer(cfg, archive.NewCompressor(cfg), registry, logger.New("archive"))
	if err != nil {
		return err
	}

	handlers := map[string]http.Handler{
		"/": web.New(cfg).Routes(),
	}
	srv := server.New(cfg, streamer, handlers)

	g, gCtx := errgroup.WithContext(ctx)
	safeGo := func(f func() error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					_log.Error().
						Interface("panic", r).
						Str("stack", string(stack)).
						Msg("Recovered from panic in goroutine")
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return f()
		})
	}

	safeGo(func() error {
		return srv.Start(gCtx)
	})

	if cfg.StatsInterval != "" {
		safeGo(func() error {
			if err := registry.StartReporter(gCtx, cfg.StatsInterval); err != nil {
				_log.Error().Err(err).Str("interval", cfg.StatsInterval).Msg("Stats job failed")
			}
			return nil
		})
	}

	err = g.Wait()
	_log.Debug().Msg("Services stopped")
	return err
}
