// Package inference defines the typed call contracts to the external
// detection, OCR, inpainting, and translation services, plus the HTTP
// clients implementing them. The models themselves are opaque: every
// adapter is request/response only.
package inference

import (
	"context"
	"fmt"
	"image"

	"github.com/mangaforge/mangaforge/internal/domain"
)

// DetectOptions control region detection.
type DetectOptions struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	NMSThreshold        float64 `json:"nmsThreshold"`
}

// DetectResult is the outcome of running detection on a page image.
type DetectResult struct {
	Blocks           []domain.TextBlock
	SegmentationMask image.Image
}

// MorphologyOptions tune the mask preparation for inpainting.
type MorphologyOptions struct {
	DilateKernelSize int `json:"dilateKernelSize"`
	ErodeDistance    int `json:"erodeDistance"`
}

// Detector finds text regions on a page image.
type Detector interface {
	Detect(ctx context.Context, img image.Image, opts DetectOptions) (DetectResult, error)
}

// Recognizer extracts text from a cropped block image.
type Recognizer interface {
	Recognize(ctx context.Context, crop image.Image) (string, error)
}

// Inpainter fills the masked pixels of an image.
type Inpainter interface {
	Inpaint(ctx context.Context, img, mask image.Image, opts MorphologyOptions) (image.Image, error)
}

// Translator translates recognized source text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Adapters bundles the four pipeline adapters for the composition root.
type Adapters struct {
	Detector   Detector
	Recognizer Recognizer
	Inpainter  Inpainter
	Translator Translator
}

// StatusError is an adapter failure carrying the HTTP status code and
// response body so the caller can display or log it. The core never retries
// on it; retry policy belongs to the adapter or its caller.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Gate is a bounded concurrency gate of size one wrapping calls into a
// shared inference session. It protects a stateful execution context from
// concurrent use, not merely for throughput: only one model invocation
// executes at a time no matter how many pages request inference.
type Gate struct {
	sem chan struct{}
}

// NewGate creates a gate admitting one caller at a time.
func NewGate() *Gate {
	return &Gate{sem: make(chan struct{}, 1)}
}

// Do runs fn while holding the gate. Waiting is aborted when ctx is done;
// once fn has started it runs to completion.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.sem }()
	return fn()
}

// clampUnit clamps a threshold to [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
