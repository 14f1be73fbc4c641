// Package geometry provides the document-space primitives shared by the
// canvas engine: points, rectangles, the brush-stroke accumulator, and the
// clamped pixel regions handed to partial re-processing.
package geometry

import "math"

// Point is a position in document pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in document pixel space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside the rectangle. Points on the
// left/top edge are inside, points on the right/bottom edge are not.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Overlaps reports whether the two rectangles share any area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Region is an integer-aligned pixel rectangle clamped to a document's
// extent. Width and height are always at least 1 for a valid region.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to a float rectangle.
func (r Region) Rect() Rect {
	return Rect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

// ClampRegion clamps r to a docWidth x docHeight document. The second
// return value is false when the document has no extent or nothing of the
// region survives clamping.
func ClampRegion(r Region, docWidth, docHeight int) (Region, bool) {
	if docWidth <= 0 || docHeight <= 0 {
		return Region{}, false
	}
	x0 := min(r.X, docWidth-1)
	y0 := min(r.Y, docHeight-1)
	x0 = max(x0, 0)
	y0 = max(y0, 0)
	x1 := min(r.X+r.Width, docWidth)
	y1 := min(r.Y+r.Height, docHeight)
	if x1 <= x0 || y1 <= y0 {
		return Region{}, false
	}
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

// Bounds accumulates brush stroke points into a minimal axis-aligned
// bounding box. The zero value is empty; the first Expand establishes the
// box.
type Bounds struct {
	minX, minY float64
	maxX, maxY float64
	set        bool
}

// Empty reports whether no point has been accumulated yet.
func (b *Bounds) Empty() bool { return !b.set }

// Expand grows the accumulator so the disc of radius around p is covered.
func (b *Bounds) Expand(p Point, radius float64) {
	if radius < 0 {
		radius = 0
	}
	if !b.set {
		b.minX, b.maxX = p.X-radius, p.X+radius
		b.minY, b.maxY = p.Y-radius, p.Y+radius
		b.set = true
		return
	}
	b.minX = math.Min(b.minX, p.X-radius)
	b.minY = math.Min(b.minY, p.Y-radius)
	b.maxX = math.Max(b.maxX, p.X+radius)
	b.maxY = math.Max(b.maxY, p.Y+radius)
}

// Region converts the accumulated bounds to a pixel region inside a
// docWidth x docHeight document: the min corner is floored, the max corner
// is ceiled, both are clamped to the document, and the result always has
// width and height of at least 1. The second return value is false when the
// accumulator is empty or the document has no extent.
func (b *Bounds) Region(docWidth, docHeight int) (Region, bool) {
	if !b.set || docWidth <= 0 || docHeight <= 0 {
		return Region{}, false
	}
	x0 := int(math.Floor(b.minX))
	y0 := int(math.Floor(b.minY))
	x1 := int(math.Ceil(b.maxX))
	y1 := int(math.Ceil(b.maxY))

	x0 = clampInt(x0, 0, docWidth-1)
	y0 = clampInt(y0, 0, docHeight-1)
	x1 = clampInt(x1, 0, docWidth)
	y1 = clampInt(y1, 0, docHeight)

	width := max(x1-x0, 1)
	height := max(y1-y0, 1)
	if x0+width > docWidth {
		x0 = docWidth - width
	}
	if y0+height > docHeight {
		y0 = docHeight - height
	}
	return Region{X: x0, Y: y0, Width: width, Height: height}, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
