package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/config"
	"github.com/sirrobot01/photozip/internal/logger"
	"github.com/sirrobot01/photozip/pkg/archive"
)

type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	streamer *archive.Streamer
	logger   zerolog.Logger
}

// New builds the HTTP router. handlers are mounted under the URL base next to
// the archive, log and debug routes.
func New(cfg *config.Config, streamer *archive.Streamer, handlers map[string]http.Handler) *Server {
	l := logger.New("http")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(l))

	s := &Server{
		cfg:      cfg,
		streamer: streamer,
		logger:   l,
	}

	r.Route(cfg.URLBase, func(r chi.Router) {
		for pattern, handler := range handlers {
			r.Mount(pattern, handler)
		}

		r.Get("/archive/{archive_hash}/", ArchiveHandler(streamer, l))

		//logs
		r.Get("/logs", s.getLogs)

		//debugs
		r.Route("/debug", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Get("/sessions", s.handleSessions)
			r.Get("/sessions/{session_id}", s.handleSession)
		})
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.BindAddress, s.cfg.Port)
	s.logger.Info().Msgf("Starting server on %s%s", addr, s.cfg.URLBase)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			// Shutdown cancels in-flight downloads through their request context.
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msgf("Error starting server")
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	s.logger.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	logFile := logger.GetLogPath()
	if logFile == "" {
		http.Error(w, "File logging is disabled", http.StatusNotFound)
		return
	}

	// Open and read the file
	file, err := os.Open(logFile)
	if err != nil {
		http.Error(w, "Error reading log file", http.StatusInternalServerError)
		return
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			s.logger.Error().Err(err).Msg("Error closing log file")
		}
	}(file)

	// Set headers
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=application.log")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	// Stream the file
	if _, err = io.Copy(w, file); err != nil {
		s.logger.Error().Err(err).Msg("Error streaming log file")
	}
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("Request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
