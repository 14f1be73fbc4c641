package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/editor"
	"github.com/mangaforge/mangaforge/internal/project"
	"github.com/mangaforge/mangaforge/internal/store"
)

// DocumentsHandler handles document set and project file requests.
type DocumentsHandler struct {
	logger   zerolog.Logger
	store    *store.Store
	projects *project.Service
	session  *editor.Session
}

// NewDocumentsHandler creates a documents handler.
func NewDocumentsHandler(logger zerolog.Logger, st *store.Store, projects *project.Service, session *editor.Session) *DocumentsHandler {
	return &DocumentsHandler{logger: logger, store: st, projects: projects, session: session}
}

// DocumentDTO is the wire shape of a page summary.
type DocumentDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Blocks       int    `json:"blocks"`
	HasMask      bool   `json:"hasMask"`
	HasInpainted bool   `json:"hasInpainted"`
	HasRendered  bool   `json:"hasRendered"`
}

// DocumentDetailDTO is a page summary plus its text blocks.
type DocumentDetailDTO struct {
	DocumentDTO
	TextBlocks []domain.TextBlock `json:"textBlocks"`
}

// OpenRequestDTO asks the server to load files or a directory.
type OpenRequestDTO struct {
	Paths     []string `json:"paths,omitempty"`
	Directory string   `json:"directory,omitempty"`
}

// List returns a summary of every loaded page.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs := h.store.Documents()
	out := make([]DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentDTO(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": out,
		"current":   h.store.CurrentIndex(),
	})
}

// Open loads the given paths or directory, replacing the document set.
func (h *DocumentsHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var err error
	switch {
	case req.Directory != "":
		err = h.projects.OpenDirectory(r.Context(), req.Directory)
	case len(req.Paths) > 0:
		err = h.projects.OpenPaths(r.Context(), req.Paths)
	default:
		writeError(w, http.StatusBadRequest, "paths or directory is required", "")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.session.BlocksChanged()
	writeJSON(w, http.StatusOK, map[string]int{"pages": h.store.Count()})
}

// Get returns one page with its blocks.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index", err.Error())
		return
	}

	doc, ok := h.store.Document(index)
	if !ok {
		writeError(w, http.StatusNotFound, "page not found", "")
		return
	}

	writeJSON(w, http.StatusOK, DocumentDetailDTO{
		DocumentDTO: toDocumentDTO(doc),
		TextBlocks:  doc.Blocks,
	})
}

// SetCurrent switches the current page.
func (h *DocumentsHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if !h.store.SetCurrent(req.Index) {
		writeError(w, http.StatusNotFound, "page not found", "")
		return
	}
	h.session.BlocksChanged()
	writeJSON(w, http.StatusOK, map[string]int{"current": req.Index})
}

// ReplaceBlocks overwrites a page's text blocks, for manual edits.
func (h *DocumentsHandler) ReplaceBlocks(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index", err.Error())
		return
	}

	var req struct {
		TextBlocks []domain.TextBlock `json:"textBlocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if !h.store.ReplaceBlocks(index, req.TextBlocks) {
		writeError(w, http.StatusNotFound, "page not found", "")
		return
	}
	// A remembered selection indexes the old block sequence.
	h.session.BlocksChanged()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SaveProject writes the document set to a project file.
func (h *DocumentsHandler) SaveProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required", "")
		return
	}

	if err := h.projects.SaveProject(r.Context(), req.Path); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path})
}

// Export writes translated pages into a directory.
func (h *DocumentsHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
		Format    string `json:"format,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Directory == "" {
		writeError(w, http.StatusBadRequest, "directory is required", "")
		return
	}

	written, err := h.projects.Export(r.Context(), req.Directory, req.Format)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exported": written})
}

func toDocumentDTO(doc *domain.Document) DocumentDTO {
	return DocumentDTO{
		ID:           doc.ID.String(),
		Name:         doc.Name,
		Width:        doc.Width,
		Height:       doc.Height,
		Blocks:       len(doc.Blocks),
		HasMask:      doc.Mask != nil,
		HasInpainted: doc.Inpainted != nil,
		HasRendered:  doc.Rendered != nil,
	}
}
