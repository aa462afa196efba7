package archive

import (
	"errors"
	"fmt"
	"net/http"
)

// ArchiveFileName is the file name offered to the browser.
const ArchiveFileName = "photo_archive.zip"

// ResponseStream writes an archive to an HTTP client without buffering it.
type ResponseStream struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	prepared bool
}

func NewResponseStream(w http.ResponseWriter) *ResponseStream {
	return &ResponseStream{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Prepare sends the status line and the attachment headers.
func (s *ResponseStream) Prepare() error {
	if s.prepared {
		return nil
	}
	h := s.w.Header()
	h.Set("Content-Disposition", "attachment; filename="+ArchiveFileName)
	h.Set("Content-Type", "application/zip")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	s.w.WriteHeader(http.StatusOK)
	s.prepared = true
	return s.flush()
}

// WriteChunk sends p to the client immediately.
func (s *ResponseStream) WriteChunk(p []byte) error {
	if !s.prepared {
		if err := s.Prepare(); err != nil {
			return err
		}
	}
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionAborted, err)
	}
	return s.flush()
}

func (s *ResponseStream) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("%w: %v", ErrConnectionAborted, err)
	}
	return nil
}
