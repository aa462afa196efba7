package archive

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	stderrTailSize = 4 * 1024
	pipeWaitDelay  = 2 * time.Second
)

// ZipArgs archives the working directory recursively onto standard output.
var ZipArgs = []string{"-r", "-", "."}

// ExecCompressor runs an external binary inside the archived directory and
// streams its standard output. The zero value runs "zip -r - .".
type ExecCompressor struct {
	Path string
	Args []string
}

// NewZipCompressor returns an ExecCompressor for the zip binary at path.
func NewZipCompressor(path string) *ExecCompressor {
	return &ExecCompressor{Path: path, Args: ZipArgs}
}

func (c *ExecCompressor) Name() string {
	return c.path()
}

func (c *ExecCompressor) path() string {
	if c.Path == "" {
		return "zip"
	}
	return c.Path
}

func (c *ExecCompressor) args() []string {
	if c.Path == "" && c.Args == nil {
		return ZipArgs
	}
	return c.Args
}

func (c *ExecCompressor) Start(_ context.Context, dir string) (Process, error) {
	cmd := exec.Command(c.path(), c.args()...)
	cmd.Dir = dir
	// Bound how long Wait may block on output pipes after the process is gone.
	cmd.WaitDelay = pipeWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawn, c.path(), err)
	}
	return &ExecProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// ExecProcess is a Process backed by an operating system process.
type ExecProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
}

func (p *ExecProcess) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *ExecProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *ExecProcess) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	// Our own kills are filtered by the Supervisor, which knows it sent them.
	if code, ok := ExitCode(err); ok && code != 0 {
		return &ProcessExitError{Code: code, Stderr: p.stderr.String(), Err: err}
	}
	return err
}

func (p *ExecProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Exited reports whether the exit status has been collected.
func (p *ExecProcess) Exited() bool {
	return p.cmd.ProcessState != nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
