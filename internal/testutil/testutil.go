package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// MakeTree creates files (relative path -> content) under root.
func MakeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

// ReadTree returns the regular files under root keyed by slash separated path.
func ReadTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to read tree %s: %v", root, err)
	}
	return files
}

// ReadZip decodes a zip archive and returns its file entries. Directory
// entries are skipped.
func ReadZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open zip (%d bytes): %v", len(data), err)
	}
	files := make(map[string]string)
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open zip entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("Failed to read zip entry %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}
	return files
}

// RequireBinary skips the test when name is not on PATH.
func RequireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

// EndlessProcess produces output until it is killed.
type EndlessProcess struct {
	killed  chan struct{}
	once    sync.Once
	Kills   atomic.Int32
	Waits   atomic.Int32
	WaitErr error
}

func NewEndlessProcess() *EndlessProcess {
	return &EndlessProcess{killed: make(chan struct{})}
}

func (p *EndlessProcess) Read(b []byte) (int, error) {
	select {
	case <-p.killed:
		return 0, io.EOF
	default:
	}
	for i := range b {
		b[i] = 'x'
	}
	return len(b), nil
}

func (p *EndlessProcess) Kill() error {
	p.Kills.Add(1)
	p.once.Do(func() { close(p.killed) })
	return nil
}

// Wait blocks until Kill, like a process that never exits on its own.
func (p *EndlessProcess) Wait() error {
	p.Waits.Add(1)
	<-p.killed
	return p.WaitErr
}

func (p *EndlessProcess) Killed() bool {
	select {
	case <-p.killed:
		return true
	default:
		return false
	}
}

// Done is closed once the process was killed.
func (p *EndlessProcess) Done() <-chan struct{} {
	return p.killed
}

// BlockingProcess blocks every Read until it is killed, like a compressor
// stuck on a slow disk.
type BlockingProcess struct {
	*EndlessProcess
}

func NewBlockingProcess() *BlockingProcess {
	return &BlockingProcess{EndlessProcess: NewEndlessProcess()}
}

func (p *BlockingProcess) Read(b []byte) (int, error) {
	<-p.killed
	return 0, io.EOF
}
