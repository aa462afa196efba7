package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/utils"
	"github.com/sirrobot01/photozip/pkg/archive"
)

// ArchiveHandler returns the download handler for GET /archive/{archive_hash}/.
func ArchiveHandler(streamer *archive.Streamer, l zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := utils.PathUnescape(chi.URLParam(r, "archive_hash"))

		err := streamer.Stream(r.Context(), w, id)
		switch {
		case err == nil:
		case errors.Is(err, archive.ErrNotFound):
			http.Error(w, archive.NotFoundMessage, http.StatusNotFound)
		case errors.Is(err, archive.ErrSpawn):
			l.Error().Err(err).Str("archive", id).Msg("Failed to start compressor")
			http.Error(w, "Failed to create archive", http.StatusInternalServerError)
		case archive.IsAbort(err):
			// Headers may already be out; the client is gone either way.
			l.Debug().Err(err).Str("archive", id).Msg("Archive download aborted")
		default:
			// Bytes already sent stand as they are.
			l.Warn().Err(err).Str("archive", id).Msg("Archive download finished with an error")
		}
	}
}
