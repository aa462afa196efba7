package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (wb *Web) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", wb.IndexHandler)
	r.Get("/version", wb.handleGetVersion)
	return r
}
