// Package domain defines the core data model of the translation studio:
// documents, detected text blocks, and the artifacts each pipeline stage
// derives for a page.
package domain

import (
	"image"

	"github.com/google/uuid"

	"github.com/mangaforge/mangaforge/internal/geometry"
)

// TextStyle describes how a translated block is typeset.
type TextStyle struct {
	FontFamilies []string `json:"fontFamilies,omitempty"`
	FontSize     float64  `json:"fontSize,omitempty"`
	Color        [4]uint8 `json:"color"`
}

// TextBlock is a detected text region on a page. Detection fills the
// geometry and confidence; OCR and translation populate the text fields
// later. Blocks are index-addressed and their order is the selection order.
type TextBlock struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`

	Text        string     `json:"text,omitempty"`
	Translation string     `json:"translation,omitempty"`
	Style       *TextStyle `json:"style,omitempty"`

	// Overlay holds the rendered typeset text for this block, if any.
	Overlay image.Image `json:"-"`
}

// Rect returns the block's bounding box.
func (b TextBlock) Rect() geometry.Rect {
	return geometry.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// Document is one page of the working set: its immutable source image plus
// the artifacts derived by the pipeline. Width and height never change once
// set; the optional buffers are only non-nil after the corresponding stage
// has run on this page.
type Document struct {
	ID     uuid.UUID `json:"id"`
	Path   string    `json:"path"`
	Name   string    `json:"name"`
	Width  int       `json:"width"`
	Height int       `json:"height"`

	Image image.Image `json:"-"`

	Blocks []TextBlock `json:"blocks"`

	Mask      image.Image `json:"-"` // segmentation mask from detection or brush edits
	Inpainted image.Image `json:"-"`
	Rendered  image.Image `json:"-"`
}

// NewDocument builds a Document around a decoded source image.
func NewDocument(path, name string, img image.Image) *Document {
	bounds := img.Bounds()
	return &Document{
		ID:     uuid.New(),
		Path:   path,
		Name:   name,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Image:  img,
	}
}

// Clone returns a copy of the document with its own block slice. Image
// buffers are shared: they are treated as immutable snapshots and replaced
// wholesale, never mutated in place.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Blocks = make([]TextBlock, len(d.Blocks))
	copy(cp.Blocks, d.Blocks)
	return &cp
}

// ClampBlocks clamps every block's bounding box to the document extent.
// Blocks that fall entirely outside the page are dropped.
func (d *Document) ClampBlocks() {
	kept := d.Blocks[:0]
	w, h := float64(d.Width), float64(d.Height)
	for _, b := range d.Blocks {
		if b.X >= w || b.Y >= h || b.X+b.Width <= 0 || b.Y+b.Height <= 0 {
			continue
		}
		if b.X < 0 {
			b.Width += b.X
			b.X = 0
		}
		if b.Y < 0 {
			b.Height += b.Y
			b.Y = 0
		}
		if b.X+b.Width > w {
			b.Width = w - b.X
		}
		if b.Y+b.Height > h {
			b.Height = h - b.Y
		}
		if b.Width <= 0 || b.Height <= 0 {
			continue
		}
		kept = append(kept, b)
	}
	d.Blocks = kept
}
