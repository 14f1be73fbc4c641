// Package main provides the mangaforge API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/cmd/mangaforge-server/handlers"
	"github.com/mangaforge/mangaforge/internal/editor"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/operation"
	"github.com/mangaforge/mangaforge/internal/project"
	"github.com/mangaforge/mangaforge/internal/store"
)

// RouterDeps bundles the composed application for the router.
type RouterDeps struct {
	Store      *store.Store
	Projects   *project.Service
	Pipeline   *store.Pipeline
	Ops        *operation.Controller
	Session    *editor.Session
	Params     store.PipelineParams
	Morphology inference.MorphologyOptions
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger zerolog.Logger, deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// Pipeline runs and project saves can be slow; the timeout covers
	// request handling, not queued background work.
	r.Use(chimiddleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"mangaforge"}`))
	})

	documentsHandler := handlers.NewDocumentsHandler(logger, deps.Store, deps.Projects, deps.Session)
	editorHandler := handlers.NewEditorHandler(logger, deps.Store, deps.Session, deps.Morphology)
	commandsHandler := handlers.NewCommandsHandler(logger, deps.Store, deps.Pipeline, deps.Ops, deps.Params)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentsHandler.List)
			r.Post("/", documentsHandler.Open)
			r.Get("/{index}", documentsHandler.Get)
			r.Put("/{index}/blocks", documentsHandler.ReplaceBlocks)
			r.Post("/current", documentsHandler.SetCurrent)
		})

		r.Post("/project/save", documentsHandler.SaveProject)
		r.Post("/export", documentsHandler.Export)

		r.Route("/editor", func(r chi.Router) {
			r.Get("/", editorHandler.State)
			r.Post("/fit", editorHandler.Fit)
			r.Post("/scale", editorHandler.SetScale)
			r.Post("/resolve", editorHandler.Resolve)
			r.Post("/context-menu", editorHandler.ContextMenu)
			r.Post("/delete-selected", editorHandler.DeleteSelected)
			r.Post("/stroke", editorHandler.Stroke)
		})

		r.Route("/commands", func(r chi.Router) {
			r.Post("/detect", commandsHandler.Detect)
			r.Post("/ocr", commandsHandler.OCR)
			r.Post("/inpaint", commandsHandler.Inpaint)
			r.Post("/translate", commandsHandler.Translate)
		})

		r.Route("/process", func(r chi.Router) {
			r.Post("/current", commandsHandler.ProcessCurrent)
			r.Post("/all", commandsHandler.ProcessAll)
			r.Post("/cancel", commandsHandler.Cancel)
		})

		r.Get("/operation", commandsHandler.Operation)
	})

	return r
}
