package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var errKilled = errors.New("compressor killed")

// NativeCompressor builds the zip in-process. Entries mirror "zip -r - .":
// paths relative to the directory, directories with a trailing slash.
type NativeCompressor struct {
	Method uint16
}

func NewNativeCompressor() *NativeCompressor {
	return &NativeCompressor{Method: zip.Deflate}
}

func (c *NativeCompressor) Name() string {
	return "native"
}

func (c *NativeCompressor) Start(ctx context.Context, dir string) (Process, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSpawn, dir)
	}

	pr, pw := io.Pipe()
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &nativeProcess{
		pr:     pr,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		p.err = writeZip(jobCtx, pw, dir, c.Method)
		_ = pw.CloseWithError(p.err)
	}()
	return p, nil
}

type nativeProcess struct {
	pr       *io.PipeReader
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	killOnce sync.Once
}

func (p *nativeProcess) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

func (p *nativeProcess) Kill() error {
	p.killOnce.Do(func() {
		p.cancel()
		_ = p.pr.CloseWithError(errKilled)
	})
	return nil
}

func (p *nativeProcess) Wait() error {
	<-p.done
	p.cancel()
	return p.err
}

func writeZip(ctx context.Context, w io.Writer, dir string, method uint16) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return errKilled
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(zw, path, filepath.ToSlash(rel), d, method)
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, path, name string, d fs.DirEntry, method uint16) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name

	if d.IsDir() {
		header.Name += "/"
		header.Method = zip.Store
		_, err := zw.CreateHeader(header)
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	header.Method = method
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(entry, f)
	return err
}
