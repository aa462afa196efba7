package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/config"
	"github.com/sirrobot01/photozip/internal/testutil"
)

// countingCompressor records how often a process was started.
type countingCompressor struct {
	Compressor
	starts atomic.Int32
}

func (c *countingCompressor) Start(ctx context.Context, dir string) (Process, error) {
	c.starts.Add(1)
	return c.Compressor.Start(ctx, dir)
}

type endlessCompressor struct {
	procs chan *testutil.EndlessProcess
}

func (c *endlessCompressor) Name() string { return "endless" }

func (c *endlessCompressor) Start(context.Context, string) (Process, error) {
	p := testutil.NewEndlessProcess()
	if c.procs != nil {
		c.procs <- p
	}
	return p, nil
}

type failingCompressor struct{}

func (failingCompressor) Name() string { return "failing" }

func (failingCompressor) Start(context.Context, string) (Process, error) {
	return nil, ErrSpawn
}

// discardWriter is a ResponseWriter that drops the body.
type discardWriter struct {
	header http.Header
	bytes  atomic.Int64
}

func newDiscardWriter() *discardWriter {
	return &discardWriter{header: make(http.Header)}
}

func (w *discardWriter) Header() http.Header { return w.header }
func (w *discardWriter) WriteHeader(int)     {}
func (w *discardWriter) Flush()              {}

func (w *discardWriter) Write(p []byte) (int, error) {
	w.bytes.Add(int64(len(p)))
	return len(p), nil
}

// failingWriter accepts n body writes and then reports a broken connection.
type failingWriter struct {
	*httptest.ResponseRecorder
	left int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.left <= 0 {
		return 0, errors.New("write: broken pipe")
	}
	w.left--
	return w.ResponseRecorder.Write(p)
}

func newTestStreamer(t *testing.T, cfg *config.Config, c Compressor) *Streamer {
	t.Helper()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}
	s, err := NewStreamer(cfg, c, NewRegistry(zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	return s
}

func TestStreamerStream(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"abc123/a.jpg": "jpeg data"})
	cfg := &config.Config{PhotosPath: base, Compressor: config.CompressorNative}
	s := newTestStreamer(t, cfg, NewNativeCompressor())

	rec := httptest.NewRecorder()
	if err := s.Stream(context.Background(), rec, "abc123"); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=photo_archive.zip" {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}
	files := testutil.ReadZip(t, rec.Body.Bytes())
	if len(files) != 1 || files["a.jpg"] != "jpeg data" {
		t.Errorf("Unexpected archive content %v", files)
	}

	stats := s.Registry().Stats()
	if stats.Active != 0 || stats.Served != 1 || stats.BytesServed != int64(rec.Body.Len()) {
		t.Errorf("Unexpected registry stats %+v", stats)
	}
}

func TestStreamerNotFoundSpawnsNothing(t *testing.T) {
	cfg := &config.Config{PhotosPath: t.TempDir(), Compressor: config.CompressorNative}
	c := &countingCompressor{Compressor: NewNativeCompressor()}
	s := newTestStreamer(t, cfg, c)

	rec := httptest.NewRecorder()
	err := s.Stream(context.Background(), rec, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if c.starts.Load() != 0 {
		t.Errorf("Expected no compressor start, got %d", c.starts.Load())
	}
	if rec.Body.Len() != 0 {
		t.Errorf("Expected nothing written, got %d bytes", rec.Body.Len())
	}
}

func TestStreamerSpawnFailure(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"album/a.jpg": "a"})
	s := newTestStreamer(t, &config.Config{PhotosPath: base, Compressor: config.CompressorExec}, failingCompressor{})

	rec := httptest.NewRecorder()
	err := s.Stream(context.Background(), rec, "album")
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("Expected ErrSpawn, got %v", err)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("Expected no headers before a successful spawn")
	}
	if s.Registry().Len() != 0 {
		t.Error("Expected no registered session")
	}
}

func TestStreamerConnectionAbort(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"album/a.jpg": "a"})
	c := &endlessCompressor{procs: make(chan *testutil.EndlessProcess, 1)}
	s := newTestStreamer(t, &config.Config{PhotosPath: base, Compressor: config.CompressorExec}, c)

	w := &failingWriter{ResponseRecorder: httptest.NewRecorder(), left: 3}
	err := s.Stream(context.Background(), w, "album")
	if !errors.Is(err, ErrConnectionAborted) {
		t.Fatalf("Expected ErrConnectionAborted, got %v", err)
	}

	proc := <-c.procs
	if !proc.Killed() {
		t.Error("Expected process to be killed after a broken connection")
	}
	if proc.Waits.Load() != 1 {
		t.Errorf("Expected process to be reaped once, got %d waits", proc.Waits.Load())
	}
	if w.Body.Len() != 3*ChunkSize {
		t.Errorf("Expected 3 chunks before the failure, got %d bytes", w.Body.Len())
	}
	if stats := s.Registry().Stats(); stats.Active != 0 || stats.Aborted != 1 {
		t.Errorf("Unexpected registry stats %+v", stats)
	}
}

func TestStreamerContextCancel(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"album/a.jpg": "a"})
	c := &endlessCompressor{procs: make(chan *testutil.EndlessProcess, 1)}
	s := newTestStreamer(t, &config.Config{PhotosPath: base, Compressor: config.CompressorExec, Sleep: "10ms"}, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Stream(ctx, newDiscardWriter(), "album")
	}()

	proc := <-c.procs
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not return after cancellation")
	}
	if !proc.Killed() || proc.Waits.Load() != 1 {
		t.Errorf("Expected killed and reaped process, killed=%v waits=%d", proc.Killed(), proc.Waits.Load())
	}
	if s.Registry().Len() != 0 {
		t.Error("Expected session to be removed from the registry")
	}
}

func TestStreamerMaxConcurrentWaitsForSlot(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"album/a.jpg": "a"})
	c := &endlessCompressor{procs: make(chan *testutil.EndlessProcess, 2)}
	s := newTestStreamer(t, &config.Config{PhotosPath: base, Compressor: config.CompressorExec, MaxConcurrent: 1}, c)

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	go func() { _ = s.Stream(ctx1, newDiscardWriter(), "album") }()
	<-c.procs

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	err := s.Stream(ctx2, newDiscardWriter(), "album")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected second session to time out waiting for a slot, got %v", err)
	}
	select {
	case <-c.procs:
		t.Fatal("Second compressor started while the only slot was taken")
	default:
	}
}

func TestStreamerSpawnRateHonorsContext(t *testing.T) {
	base := t.TempDir()
	testutil.MakeTree(t, base, map[string]string{"album/a.jpg": "a"})
	c := &countingCompressor{Compressor: NewNativeCompressor()}
	s := newTestStreamer(t, &config.Config{PhotosPath: base, Compressor: config.CompressorNative, SpawnRate: "1/minute"}, c)

	if err := s.Stream(context.Background(), newDiscardWriter(), "album"); err != nil {
		t.Fatalf("First stream failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Stream(ctx, newDiscardWriter(), "album")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled while rate limited, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Cancelled request waited %s for the rate limiter", elapsed)
	}
	if c.starts.Load() != 1 {
		t.Errorf("Expected one compressor start, got %d", c.starts.Load())
	}
}

func TestResponseStreamPrepare(t *testing.T) {
	rec := httptest.NewRecorder()
	out := NewResponseStream(rec)
	if err := out.Prepare(); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if !rec.Flushed {
		t.Error("Expected headers to be flushed")
	}
	if rec.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("Unexpected Content-Type %q", rec.Header().Get("Content-Type"))
	}

	w := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	if err := NewResponseStream(w).WriteChunk([]byte("x")); !errors.Is(err, ErrConnectionAborted) {
		t.Errorf("Expected ErrConnectionAborted, got %v", err)
	}
}
