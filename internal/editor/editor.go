// Package editor implements the interactive canvas logic that sits between
// pointer events and the document store: block hit-testing with
// context-menu selection, and brush stroke accumulation into the minimal
// region needed for partial re-processing.
package editor

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/geometry"
	"github.com/mangaforge/mangaforge/internal/viewport"
)

// HitTest returns the index of the first block whose rectangle contains p,
// scanning in storage order. Storage order is the selection order; there is
// no topmost or smallest-area tie-break for overlapping blocks.
func HitTest(p geometry.Point, blocks []domain.TextBlock) (int, bool) {
	for i, b := range blocks {
		if b.Rect().Contains(p) {
			return i, true
		}
	}
	return -1, false
}

// BlockSource is the slice of the document store the editor needs: the
// current page's blocks and removal by index.
type BlockSource interface {
	Current() (*domain.Document, bool)
	CurrentBlocks() []domain.TextBlock
	RemoveBlock(blockIndex int) bool
}

// ContextMenuOutcome describes how a right-click was resolved.
type ContextMenuOutcome int

const (
	// ContextMenuNoDocument means no document is loaded; nothing happens.
	ContextMenuNoDocument ContextMenuOutcome = iota
	// ContextMenuSuppressed means the pointer resolved to no document
	// coordinate or hit no block; the native menu is suppressed and the
	// selection cleared.
	ContextMenuSuppressed
	// ContextMenuSelected means a block was hit and remembered for a
	// subsequent delete action.
	ContextMenuSelected
)

// Session holds the per-editor interaction state: the viewport transform,
// the remembered context-menu selection, and the active brush stroke.
type Session struct {
	mu       sync.Mutex
	source   BlockSource
	view     *viewport.Viewport
	selected int
	stroke   geometry.Bounds
	logger   zerolog.Logger
}

// NewSession creates an editor session over a block source.
func NewSession(source BlockSource, view *viewport.Viewport, logger zerolog.Logger) *Session {
	return &Session{
		source:   source,
		view:     view,
		selected: -1,
		logger:   logger,
	}
}

// Viewport returns the session's viewport transform.
func (s *Session) Viewport() *viewport.Viewport { return s.view }

// Selected returns the remembered block index from the last context menu.
func (s *Session) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < 0 {
		return -1, false
	}
	return s.selected, true
}

// OnContextMenu resolves a right-click at a pointer position. The pointer
// is mapped through the viewport transform; a miss or an unresolvable
// position suppresses the native menu and clears the selection, a hit
// remembers the block index for DeleteSelected. Returns the outcome and,
// for a hit, the block index.
func (s *Session) OnContextMenu(pointer, containerOrigin geometry.Point) (ContextMenuOutcome, int) {
	if _, ok := s.source.Current(); !ok {
		return ContextMenuNoDocument, -1
	}

	docPoint, ok := viewport.PointerToDocument(pointer, containerOrigin, s.view.Scale())
	if !ok {
		s.clearSelection()
		return ContextMenuSuppressed, -1
	}

	index, hit := HitTest(docPoint, s.source.CurrentBlocks())
	s.mu.Lock()
	defer s.mu.Unlock()
	if !hit {
		s.selected = -1
		return ContextMenuSuppressed, -1
	}
	s.selected = index
	return ContextMenuSelected, index
}

// DeleteSelected removes the remembered block from the current page and
// clears the remembered index. No-op when nothing is remembered.
func (s *Session) DeleteSelected() bool {
	s.mu.Lock()
	index := s.selected
	s.selected = -1
	s.mu.Unlock()
	if index < 0 {
		return false
	}
	removed := s.source.RemoveBlock(index)
	if removed {
		s.logger.Debug().Int("block", index).Msg("Deleted selected block")
	}
	return removed
}

// BlocksChanged invalidates the remembered selection after the block
// sequence was mutated elsewhere. An in-flight index must be cleared, not
// silently reused against the renumbered sequence.
func (s *Session) BlocksChanged() {
	s.clearSelection()
}

// BeginStroke starts a fresh brush stroke accumulator.
func (s *Session) BeginStroke() {
	s.mu.Lock()
	s.stroke = geometry.Bounds{}
	s.mu.Unlock()
}

// ExtendStroke grows the active stroke so the brush disc around the
// document-space point is covered.
func (s *Session) ExtendStroke(p geometry.Point, radius float64) {
	s.mu.Lock()
	s.stroke.Expand(p, radius)
	s.mu.Unlock()
}

// EndStroke finishes the stroke and returns the minimal pixel region of the
// current page covering it, ready to hand to partial inpainting. The second
// return value is false when no point was accumulated or no document is
// loaded.
func (s *Session) EndStroke() (geometry.Region, bool) {
	doc, ok := s.source.Current()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || s.stroke.Empty() {
		s.stroke = geometry.Bounds{}
		return geometry.Region{}, false
	}
	region, ok := s.stroke.Region(doc.Width, doc.Height)
	s.stroke = geometry.Bounds{}
	return region, ok
}

func (s *Session) clearSelection() {
	s.mu.Lock()
	s.selected = -1
	s.mu.Unlock()
}
