package web

import (
	"net/http"

	"github.com/sirrobot01/photozip/internal/request"
	"github.com/sirrobot01/photozip/pkg/version"
)

func (wb *Web) IndexHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"URLBase": wb.cfg.URLBase,
		"Title":   "Photo archive",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := wb.templates.ExecuteTemplate(w, "index", data); err != nil {
		wb.logger.Error().Err(err).Msg("Failed to render index page")
	}
}

func (wb *Web) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	request.JSONResponse(w, version.GetInfo(), http.StatusOK)
}
