package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/geometry"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/operation"
	"github.com/mangaforge/mangaforge/internal/store"
)

// CommandsHandler exposes the per-stage commands, the full pipeline runs,
// and the operation surface.
type CommandsHandler struct {
	logger   zerolog.Logger
	store    *store.Store
	pipeline *store.Pipeline
	ops      *operation.Controller
	params   store.PipelineParams
}

// NewCommandsHandler creates a commands handler.
func NewCommandsHandler(logger zerolog.Logger, st *store.Store, pipeline *store.Pipeline, ops *operation.Controller, params store.PipelineParams) *CommandsHandler {
	return &CommandsHandler{logger: logger, store: st, pipeline: pipeline, ops: ops, params: params}
}

// Detect enqueues text detection on the current page.
func (h *CommandsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
		NMSThreshold        *float64 `json:"nmsThreshold,omitempty"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	opts := h.params.Detect
	if req.ConfidenceThreshold != nil {
		opts.ConfidenceThreshold = *req.ConfidenceThreshold
	}
	if req.NMSThreshold != nil {
		opts.NMSThreshold = *req.NMSThreshold
	}

	h.drain("detect", h.store.Detect(context.Background(), opts))
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// OCR enqueues text recognition for blocks still missing text.
func (h *CommandsHandler) OCR(w http.ResponseWriter, r *http.Request) {
	h.drain("ocr", h.store.OCR(context.Background()))
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// Inpaint enqueues inpainting, whole-page or over an explicit region.
func (h *CommandsHandler) Inpaint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Region *geometry.Region `json:"region,omitempty"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	h.drain("inpaint", h.store.Inpaint(context.Background(), req.Region, h.params.Morphology))
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// Translate enqueues translation for recognized blocks.
func (h *CommandsHandler) Translate(w http.ResponseWriter, r *http.Request) {
	h.drain("translate", h.store.Translate(context.Background()))
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// ProcessCurrent starts the full pipeline over the current page.
func (h *CommandsHandler) ProcessCurrent(w http.ResponseWriter, r *http.Request) {
	h.startPipeline(w, func(ctx context.Context) error {
		return h.pipeline.ProcessCurrentPage(ctx, h.params)
	})
}

// ProcessAll starts the full pipeline over every page.
func (h *CommandsHandler) ProcessAll(w http.ResponseWriter, r *http.Request) {
	h.startPipeline(w, func(ctx context.Context) error {
		return h.pipeline.ProcessAllPages(ctx, h.params)
	})
}

// Cancel requests cancellation of the active operation.
func (h *CommandsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accepted := h.ops.Cancel()
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

// Operation returns a snapshot of the active operation, or 204 when idle.
func (h *CommandsHandler) Operation(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.ops.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// startPipeline launches a pipeline run in the background. Busy state is
// reported synchronously; stage failures surface through logs and the
// operation snapshot.
func (h *CommandsHandler) startPipeline(w http.ResponseWriter, run func(context.Context) error) {
	if _, active := h.ops.Snapshot(); active {
		writeError(w, http.StatusConflict, "an operation is already running", "")
		return
	}

	go func() {
		if err := run(context.Background()); err != nil {
			if errors.Is(err, operation.ErrOperationActive) {
				return
			}
			h.logger.Error().Err(err).Msg("Pipeline run failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

// drain logs the eventual result of an enqueued command without blocking
// the request.
func (h *CommandsHandler) drain(name string, result <-chan error) {
	go func() {
		if err := <-result; err != nil {
			h.logger.Error().Err(err).Str("command", name).Msg("Command failed")
		}
	}()
}

// decodeOptional parses an optional JSON body; an empty body is fine.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
