// Package store holds the ordered page set and its derived artifacts, and
// exposes the four user-facing pipeline commands. Every command follows the
// same shape: snapshot the page, call the adapter without holding the lock,
// write the result back. Commands for one page are issued through that
// page's serial queue so overlapping invocations cannot race.
package store

import (
	"context"
	"image"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/geometry"
	"github.com/mangaforge/mangaforge/internal/imaging"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/taskqueue"
)

// Store owns the document sequence and the current page index. All state
// is guarded by one RWMutex; images are treated as immutable snapshots and
// replaced wholesale.
type Store struct {
	mu      sync.RWMutex
	docs    []*domain.Document
	current int

	// queue is bound to the current page's surface; switching pages
	// resets it so edits of the new surface start a fresh chain.
	queue *taskqueue.Queue

	adapters inference.Adapters
	logger   zerolog.Logger
}

// New creates an empty store.
func New(adapters inference.Adapters, logger zerolog.Logger) *Store {
	return &Store{
		current:  -1,
		queue:    taskqueue.New(),
		adapters: adapters,
		logger:   logger,
	}
}

// Queue returns the serial queue bound to the current page surface.
func (s *Store) Queue() *taskqueue.Queue { return s.queue }

// SetDocuments replaces the working set. The current page becomes the
// first document, or none when the set is empty, and the page queue is
// rebound.
func (s *Store) SetDocuments(docs []*domain.Document) {
	s.mu.Lock()
	s.docs = docs
	if len(docs) == 0 {
		s.current = -1
	} else {
		s.current = 0
	}
	s.mu.Unlock()
	s.queue.Reset()
}

// Documents returns snapshots of every document.
func (s *Store) Documents() []*domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// Count returns the number of documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Document returns a snapshot of the document at index.
func (s *Store) Document(index int) (*domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.docs) {
		return nil, false
	}
	return s.docs[index].Clone(), true
}

// CurrentIndex returns the current page index, or -1 when no document is
// loaded.
func (s *Store) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Current returns a snapshot of the current page.
func (s *Store) Current() (*domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.docs) {
		return nil, false
	}
	return s.docs[s.current].Clone(), true
}

// SetCurrent switches the current page and rebinds the page queue.
// Out-of-range indices are ignored.
func (s *Store) SetCurrent(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.docs) {
		s.mu.Unlock()
		return false
	}
	changed := index != s.current
	s.current = index
	s.mu.Unlock()
	if changed {
		s.queue.Reset()
	}
	return true
}

// CurrentBlocks returns a copy of the current page's block sequence.
func (s *Store) CurrentBlocks() []domain.TextBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.docs) {
		return nil
	}
	doc := s.docs[s.current]
	blocks := make([]domain.TextBlock, len(doc.Blocks))
	copy(blocks, doc.Blocks)
	return blocks
}

// ReplaceBlocks overwrites the block sequence of the document at index,
// clamping every block to the page extent.
func (s *Store) ReplaceBlocks(index int, blocks []domain.TextBlock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.docs) {
		return false
	}
	doc := s.docs[index]
	doc.Blocks = blocks
	doc.ClampBlocks()
	return true
}

// RemoveBlock removes one block from the current page. Callers holding an
// index into the block sequence must treat it as invalidated afterwards.
func (s *Store) RemoveBlock(blockIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || s.current >= len(s.docs) {
		return false
	}
	doc := s.docs[s.current]
	if blockIndex < 0 || blockIndex >= len(doc.Blocks) {
		return false
	}
	doc.Blocks = append(doc.Blocks[:blockIndex], doc.Blocks[blockIndex+1:]...)
	return true
}

// UpdateMask paints a patch into the current page's segmentation mask.
// With a region the patch must match the region's size and is composited at
// its offset; without one the patch replaces the whole mask and must match
// the page size. A page that never ran detection starts from a blank mask.
func (s *Store) UpdateMask(patch image.Image, region *geometry.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || s.current >= len(s.docs) {
		return nil
	}
	doc := s.docs[s.current]
	bounds := patch.Bounds()

	if region == nil {
		if bounds.Dx() != doc.Width || bounds.Dy() != doc.Height {
			return domain.ValidationError("mask size does not match the page", nil)
		}
		doc.Mask = imaging.ToRGBA(patch)
		return nil
	}

	if bounds.Dx() != region.Width || bounds.Dy() != region.Height {
		return domain.ValidationError("mask patch size does not match the region", nil)
	}
	clamped, ok := geometry.ClampRegion(*region, doc.Width, doc.Height)
	if !ok {
		return nil
	}
	base := doc.Mask
	if base == nil {
		base = imaging.BlankMask(doc.Width, doc.Height)
	}
	doc.Mask = imaging.ApplyPatch(base, patch, clamped)
	return nil
}

// Detect enqueues region detection for the current page. A no-op handle is
// returned when no document is loaded.
func (s *Store) Detect(ctx context.Context, opts inference.DetectOptions) <-chan error {
	index := s.CurrentIndex()
	if index < 0 {
		return settled(nil)
	}
	return s.queue.Push(ctx, func(ctx context.Context) error {
		return s.runDetect(ctx, index, opts, nil)
	})
}

// OCR enqueues text recognition for every block of the current page that
// lacks recognized text.
func (s *Store) OCR(ctx context.Context) <-chan error {
	index := s.CurrentIndex()
	if index < 0 {
		return settled(nil)
	}
	return s.queue.Push(ctx, func(ctx context.Context) error {
		return s.runOCR(ctx, index, nil)
	})
}

// Inpaint enqueues inpainting for the current page: the whole page when
// region is nil, otherwise just the given region with the result stitched
// back into the page.
func (s *Store) Inpaint(ctx context.Context, region *geometry.Region, opts inference.MorphologyOptions) <-chan error {
	index := s.CurrentIndex()
	if index < 0 {
		return settled(nil)
	}
	return s.queue.Push(ctx, func(ctx context.Context) error {
		return s.runInpaint(ctx, index, region, opts, nil)
	})
}

// Translate enqueues translation for every block of the current page that
// has recognized text but no translation yet.
func (s *Store) Translate(ctx context.Context) <-chan error {
	index := s.CurrentIndex()
	if index < 0 {
		return settled(nil)
	}
	return s.queue.Push(ctx, func(ctx context.Context) error {
		return s.runTranslate(ctx, index, nil)
	})
}

// runDetect replaces the page's block sequence and segmentation mask with
// fresh detection output. Blocks are ordered by vertical center, the
// natural reading order for vertically flowing pages.
func (s *Store) runDetect(ctx context.Context, index int, opts inference.DetectOptions, discard func() bool) error {
	snapshot, ok := s.Document(index)
	if !ok {
		return nil
	}

	result, err := s.adapters.Detector.Detect(ctx, snapshot.Image, opts)
	if err != nil {
		return err
	}
	if discard != nil && discard() {
		return nil
	}

	sort.SliceStable(result.Blocks, func(i, j int) bool {
		a, b := result.Blocks[i], result.Blocks[j]
		return a.Y+a.Height/2 < b.Y+b.Height/2
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.docs) {
		return nil
	}
	doc := s.docs[index]
	doc.Blocks = result.Blocks
	doc.ClampBlocks()
	doc.Mask = result.SegmentationMask
	s.logger.Info().Int("page", index).Int("blocks", len(doc.Blocks)).Msg("Detection completed")
	return nil
}

// runOCR recognizes text for blocks that have none yet, cropping the page
// image to each block's rectangle.
func (s *Store) runOCR(ctx context.Context, index int, discard func() bool) error {
	snapshot, ok := s.Document(index)
	if !ok {
		return nil
	}

	updated := false
	for i := range snapshot.Blocks {
		block := &snapshot.Blocks[i]
		if block.Text != "" {
			continue
		}
		crop, ok := imaging.CropRect(snapshot.Image, block.Rect(), snapshot.Width, snapshot.Height)
		if !ok {
			continue
		}
		text, err := s.adapters.Recognizer.Recognize(ctx, crop)
		if err != nil {
			return err
		}
		block.Text = text
		updated = true
	}
	if !updated || (discard != nil && discard()) {
		return nil
	}

	s.writeBackBlocks(index, snapshot.Blocks)
	s.logger.Info().Int("page", index).Msg("OCR completed")
	return nil
}

// runInpaint fills the masked pixels of the page. Partial runs crop the
// page and mask to the region, inpaint the crop, and stitch only the
// masked pixels back over the current inpainted buffer.
func (s *Store) runInpaint(ctx context.Context, index int, region *geometry.Region, opts inference.MorphologyOptions, discard func() bool) error {
	snapshot, ok := s.Document(index)
	if !ok {
		return nil
	}
	if snapshot.Mask == nil {
		return domain.NotFoundError("segmentation mask not found; run detection or paint a mask first", nil)
	}

	if region == nil {
		filled, err := s.adapters.Inpainter.Inpaint(ctx, snapshot.Image, snapshot.Mask, opts)
		if err != nil {
			return err
		}
		if discard != nil && discard() {
			return nil
		}
		s.writeBackInpainted(index, filled)
		s.logger.Info().Int("page", index).Msg("Inpainting completed")
		return nil
	}

	clamped, ok := geometry.ClampRegion(*region, snapshot.Width, snapshot.Height)
	if !ok {
		return nil
	}
	// Nothing to fill when the region touches no text block.
	if !overlapsAnyBlock(clamped.Rect(), snapshot.Blocks) &&
		!imaging.MaskedPixelInRegion(snapshot.Mask, clamped) {
		return nil
	}

	imageCrop := imaging.Crop(snapshot.Image, clamped)
	maskCrop := imaging.Crop(snapshot.Mask, clamped)

	filledCrop, err := s.adapters.Inpainter.Inpaint(ctx, imageCrop, maskCrop, opts)
	if err != nil {
		return err
	}
	if discard != nil && discard() {
		return nil
	}

	base := snapshot.Inpainted
	if base == nil {
		base = snapshot.Image
	}
	stitched := imaging.StitchMasked(base, filledCrop, imageCrop, maskCrop, clamped)
	s.writeBackInpainted(index, stitched)
	s.logger.Info().
		Int("page", index).
		Int("x", clamped.X).Int("y", clamped.Y).
		Int("width", clamped.Width).Int("height", clamped.Height).
		Msg("Partial inpainting completed")
	return nil
}

// runTranslate fills translations for blocks with recognized text that
// have none yet.
func (s *Store) runTranslate(ctx context.Context, index int, discard func() bool) error {
	snapshot, ok := s.Document(index)
	if !ok {
		return nil
	}

	updated := false
	for i := range snapshot.Blocks {
		block := &snapshot.Blocks[i]
		if block.Text == "" || block.Translation != "" {
			continue
		}
		translation, err := s.adapters.Translator.Translate(ctx, block.Text)
		if err != nil {
			return err
		}
		block.Translation = translation
		updated = true
	}
	if !updated || (discard != nil && discard()) {
		return nil
	}

	s.writeBackBlocks(index, snapshot.Blocks)
	s.logger.Info().Int("page", index).Msg("Translation completed")
	return nil
}

func (s *Store) writeBackBlocks(index int, blocks []domain.TextBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.docs) {
		return
	}
	s.docs[index].Blocks = blocks
}

func (s *Store) writeBackInpainted(index int, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.docs) {
		return
	}
	s.docs[index].Inpainted = img
}

func overlapsAnyBlock(rect geometry.Rect, blocks []domain.TextBlock) bool {
	for _, b := range blocks {
		if rect.Overlaps(b.Rect()) {
			return true
		}
	}
	return false
}

func settled(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
