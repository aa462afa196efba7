package web

import (
	"embed"
	"html/template"

	"github.com/rs/zerolog"
	"github.com/sirrobot01/photozip/internal/config"
	"github.com/sirrobot01/photozip/internal/logger"
)

//go:embed templates/*
var content embed.FS

type Web struct {
	cfg       *config.Config
	logger    zerolog.Logger
	templates *template.Template
}

func New(cfg *config.Config) *Web {
	templates := template.Must(template.ParseFS(
		content,
		"templates/index.html",
	))
	return &Web{
		cfg:       cfg,
		logger:    logger.New("ui"),
		templates: templates,
	}
}
