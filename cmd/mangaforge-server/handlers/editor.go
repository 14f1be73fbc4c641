package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/editor"
	"github.com/mangaforge/mangaforge/internal/geometry"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/store"
	"github.com/mangaforge/mangaforge/internal/viewport"
)

// EditorHandler exposes the canvas interaction surface: zoom, pointer
// resolution, context-menu hit testing, and brush strokes.
type EditorHandler struct {
	logger     zerolog.Logger
	store      *store.Store
	session    *editor.Session
	morphology inference.MorphologyOptions
}

// NewEditorHandler creates an editor handler.
func NewEditorHandler(logger zerolog.Logger, st *store.Store, session *editor.Session, morphology inference.MorphologyOptions) *EditorHandler {
	return &EditorHandler{logger: logger, store: st, session: session, morphology: morphology}
}

// PointDTO is a float pair on the wire.
type PointDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State returns the current viewport state.
func (h *EditorHandler) State(w http.ResponseWriter, r *http.Request) {
	v := h.session.Viewport()
	writeJSON(w, http.StatusOK, map[string]any{
		"scale":   v.Scale(),
		"autoFit": v.AutoFit(),
		"page":    v.Page(),
	})
}

// Fit computes the integer zoom that fits the current page into the given
// viewport and applies it.
func (h *EditorHandler) Fit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	doc, ok := h.store.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no document loaded", "")
		return
	}

	scale := h.session.Viewport().FitToViewport(
		geometry.Size{Width: req.Width, Height: req.Height},
		geometry.Size{Width: float64(doc.Width), Height: float64(doc.Height)},
	)
	writeJSON(w, http.StatusOK, map[string]int{"scale": scale})
}

// SetScale applies a manual zoom percent, clamped to the valid range.
func (h *EditorHandler) SetScale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scale int `json:"scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	applied := h.session.Viewport().SetScale(req.Scale)
	writeJSON(w, http.StatusOK, map[string]int{"scale": applied})
}

// Resolve maps a pointer position to document pixel coordinates.
func (h *EditorHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pointer PointDTO `json:"pointer"`
		Origin  PointDTO `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	point, ok := viewport.PointerToDocument(
		geometry.Point{X: req.Pointer.X, Y: req.Pointer.Y},
		geometry.Point{X: req.Origin.X, Y: req.Origin.Y},
		h.session.Viewport().Scale(),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"resolved": ok,
		"x":        point.X,
		"y":        point.Y,
	})
}

// ContextMenu resolves a right-click into a block selection.
func (h *EditorHandler) ContextMenu(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pointer PointDTO `json:"pointer"`
		Origin  PointDTO `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, index := h.session.OnContextMenu(
		geometry.Point{X: req.Pointer.X, Y: req.Pointer.Y},
		geometry.Point{X: req.Origin.X, Y: req.Origin.Y},
	)

	resp := map[string]any{"blockIndex": index}
	switch outcome {
	case editor.ContextMenuSelected:
		resp["outcome"] = "selected"
	case editor.ContextMenuSuppressed:
		resp["outcome"] = "suppressed"
	default:
		resp["outcome"] = "no-document"
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteSelected removes the block remembered by the last context menu.
func (h *EditorHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	removed := h.session.DeleteSelected()
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// Stroke accumulates one full brush stroke and, when requested, enqueues a
// partial inpaint of the covered region.
func (h *EditorHandler) Stroke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points  []PointDTO `json:"points"`
		Radius  float64    `json:"radius"`
		Inpaint bool       `json:"inpaint,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Points) == 0 {
		writeError(w, http.StatusBadRequest, "points is required", "")
		return
	}
	if req.Radius <= 0 {
		writeError(w, http.StatusBadRequest, "radius must be positive", "")
		return
	}

	h.session.BeginStroke()
	for _, p := range req.Points {
		h.session.ExtendStroke(geometry.Point{X: p.X, Y: p.Y}, req.Radius)
	}
	region, ok := h.session.EndStroke()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"covered": false})
		return
	}

	resp := map[string]any{
		"covered": true,
		"region":  region,
	}
	if req.Inpaint {
		// Queued work outlives the request, so it must not inherit the
		// request context.
		h.store.Inpaint(context.Background(), &region, h.morphology)
		resp["queued"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}
