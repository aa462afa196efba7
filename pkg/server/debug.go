package server

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/sirrobot01/photozip/internal/request"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := map[string]any{
		// Memory stats
		"heap_alloc_mb":  fmt.Sprintf("%.2fMB", float64(memStats.HeapAlloc)/1024/1024),
		"total_alloc_mb": fmt.Sprintf("%.2fMB", float64(memStats.TotalAlloc)/1024/1024),
		"memory_used":    fmt.Sprintf("%.2fMB", float64(memStats.Sys)/1024/1024),

		// GC stats
		"gc_cycles": memStats.NumGC,
		// Goroutine stats
		"goroutines": runtime.NumGoroutine(),

		// System info
		"num_cpu": runtime.NumCPU(),

		// OS info
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"go_version": runtime.Version(),

		"archives":    s.streamer.Registry().Stats(),
		"throttle":    s.cfg.Throttle().String(),
		"photos_path": s.streamer.BaseDir(),
	}

	request.JSONResponse(w, stats, http.StatusOK)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	request.JSONResponse(w, s.streamer.Registry().Sessions(), http.StatusOK)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.streamer.Registry().Get(chi.URLParam(r, "session_id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	request.JSONResponse(w, sess.Info(), http.StatusOK)
}
