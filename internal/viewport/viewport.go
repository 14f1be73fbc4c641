// Package viewport maintains the transform between pointer/screen space and
// document pixel space: zoom level, auto-fit, and the current page index.
package viewport

import (
	"math"
	"sync"

	"github.com/mangaforge/mangaforge/internal/geometry"
)

// Scale bounds, in percent.
const (
	MinScale     = 10
	MaxScale     = 100
	DefaultScale = 100
)

// Viewport holds the editor-wide zoom and page state. It is scoped to the
// whole editor, not to a single document.
type Viewport struct {
	mu      sync.Mutex
	scale   int // percent, in [MinScale, MaxScale]
	autoFit bool
	page    int
}

// New creates a viewport at 100% with auto-fit disabled.
func New() *Viewport {
	return &Viewport{scale: DefaultScale}
}

// Scale returns the current zoom percentage.
func (v *Viewport) Scale() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scale
}

// AutoFit reports whether auto-fit is enabled.
func (v *Viewport) AutoFit() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoFit
}

// Page returns the current page index.
func (v *Viewport) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// SetPage sets the current page index. Negative values are ignored.
func (v *Viewport) SetPage(index int) {
	if index < 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = index
}

// SetScale sets an explicit zoom percentage, clamped to [MinScale, MaxScale],
// and disables auto-fit.
func (v *Viewport) SetScale(percent int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scale = clampScale(percent)
	v.autoFit = false
	return v.scale
}

// ResetScale returns the zoom to 100% and disables auto-fit.
func (v *Viewport) ResetScale() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scale = DefaultScale
	v.autoFit = false
}

// FitToViewport computes the largest scale at which the document fits
// entirely in the viewport, preserving aspect ratio. The scale is continuous
// (rounded to the nearest whole percent) and clamped to [MinScale, MaxScale].
// Enables auto-fit as a side effect. When either extent is zero or negative
// the scale is left unchanged.
func (v *Viewport) FitToViewport(viewportSize, documentSize geometry.Size) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if viewportSize.Width <= 0 || viewportSize.Height <= 0 ||
		documentSize.Width <= 0 || documentSize.Height <= 0 {
		return v.scale
	}
	ratio := math.Min(
		viewportSize.Width/documentSize.Width,
		viewportSize.Height/documentSize.Height,
	)
	v.scale = clampScale(int(math.Round(ratio * 100)))
	v.autoFit = true
	return v.scale
}

// PointerToDocument maps a pointer position to document pixel space given
// the canvas container origin and a zoom percentage. The second return value
// is false when the backing surface is absent (zero scale) or the result is
// not a finite number.
func PointerToDocument(pointer, containerOrigin geometry.Point, scale int) (geometry.Point, bool) {
	if scale <= 0 {
		return geometry.Point{}, false
	}
	factor := float64(scale) / 100
	p := geometry.Point{
		X: (pointer.X - containerOrigin.X) / factor,
		Y: (pointer.Y - containerOrigin.Y) / factor,
	}
	if !isFinite(p.X) || !isFinite(p.Y) {
		return geometry.Point{}, false
	}
	return p, true
}

// DocumentToPointer is the inverse of PointerToDocument at the same scale
// and origin.
func DocumentToPointer(doc, containerOrigin geometry.Point, scale int) geometry.Point {
	factor := float64(scale) / 100
	return geometry.Point{
		X: doc.X*factor + containerOrigin.X,
		Y: doc.Y*factor + containerOrigin.Y,
	}
}

func clampScale(percent int) int {
	if percent < MinScale {
		return MinScale
	}
	if percent > MaxScale {
		return MaxScale
	}
	return percent
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
