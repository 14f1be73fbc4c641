package store

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/geometry"
	"github.com/mangaforge/mangaforge/internal/imaging"
	"github.com/mangaforge/mangaforge/internal/inference"
	"github.com/mangaforge/mangaforge/internal/observability"
)

// fakeAdapters is a scriptable inference bundle for store tests.
type fakeAdapters struct {
	detectResult inference.DetectResult
	detectErr    error
	detectCalls  atomic.Int32

	recognizeText string
	recognizeErr  error
	ocrCalls      atomic.Int32

	inpaintFill  color.RGBA
	inpaintErr   error
	inpaintCalls atomic.Int32

	translateErr   error
	translateCalls atomic.Int32
}

func (f *fakeAdapters) Detect(ctx context.Context, img image.Image, opts inference.DetectOptions) (inference.DetectResult, error) {
	f.detectCalls.Add(1)
	return f.detectResult, f.detectErr
}

func (f *fakeAdapters) Recognize(ctx context.Context, crop image.Image) (string, error) {
	f.ocrCalls.Add(1)
	return f.recognizeText, f.recognizeErr
}

func (f *fakeAdapters) Inpaint(ctx context.Context, img, mask image.Image, opts inference.MorphologyOptions) (image.Image, error) {
	f.inpaintCalls.Add(1)
	if f.inpaintErr != nil {
		return nil, f.inpaintErr
	}
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			out.SetRGBA(x, y, f.inpaintFill)
		}
	}
	return out, nil
}

func (f *fakeAdapters) Translate(ctx context.Context, text string) (string, error) {
	f.translateCalls.Add(1)
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return "[en] " + text, nil
}

func newTestStore(f *fakeAdapters) *Store {
	return New(inference.Adapters{
		Detector:   f,
		Recognizer: f,
		Inpainter:  f,
		Translator: f,
	}, observability.NopLogger())
}

func testPage(w, h int) *domain.Document {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return domain.NewDocument("page.png", "page", img)
}

// solidMask builds a w x h mask with one marked rectangle.
func solidMask(w, h int, marked geometry.Region) *image.RGBA {
	mask := imaging.BlankMask(w, h)
	for y := marked.Y; y < marked.Y+marked.Height; y++ {
		for x := marked.X; x < marked.X+marked.Width; x++ {
			mask.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return mask
}

func TestCommandsNoOpWithoutDocument(t *testing.T) {
	f := &fakeAdapters{}
	s := newTestStore(f)
	ctx := context.Background()

	require.NoError(t, <-s.Detect(ctx, inference.DetectOptions{}))
	require.NoError(t, <-s.OCR(ctx))
	require.NoError(t, <-s.Inpaint(ctx, nil, inference.MorphologyOptions{}))
	require.NoError(t, <-s.Translate(ctx))

	assert.Zero(t, f.detectCalls.Load())
	assert.Zero(t, f.ocrCalls.Load())
	assert.Zero(t, f.inpaintCalls.Load())
	assert.Zero(t, f.translateCalls.Load())
}

func TestDetectSortsAndClampsBlocks(t *testing.T) {
	f := &fakeAdapters{
		detectResult: inference.DetectResult{
			Blocks: []domain.TextBlock{
				{X: 10, Y: 150, Width: 20, Height: 20},   // center 160
				{X: 10, Y: 10, Width: 20, Height: 20},    // center 20
				{X: 190, Y: 50, Width: 40, Height: 20},   // overhangs the right edge
				{X: 500, Y: 500, Width: 20, Height: 20},  // fully outside, dropped
			},
			SegmentationMask: imaging.BlankMask(200, 200),
		},
	}
	s := newTestStore(f)
	s.SetDocuments([]*domain.Document{testPage(200, 200)})

	require.NoError(t, <-s.Detect(context.Background(), inference.DetectOptions{}))

	doc, ok := s.Current()
	require.True(t, ok)
	require.Len(t, doc.Blocks, 3)

	// Sorted by vertical center.
	assert.Equal(t, 20.0, doc.Blocks[0].Y)
	assert.Equal(t, 50.0, doc.Blocks[1].Y)
	assert.Equal(t, 150.0, doc.Blocks[2].Y)

	// The overhanging block was clamped to the page.
	assert.Equal(t, 10.0, doc.Blocks[1].Width)

	assert.NotNil(t, doc.Mask)
}

func TestDetectError(t *testing.T) {
	f := &fakeAdapters{detectErr: errors.New("sidecar down")}
	s := newTestStore(f)
	s.SetDocuments([]*domain.Document{testPage(100, 100)})

	err := <-s.Detect(context.Background(), inference.DetectOptions{})
	assert.ErrorContains(t, err, "sidecar down")

	doc, _ := s.Current()
	assert.Empty(t, doc.Blocks, "failed detection must not change the page")
}

func TestOCRFillsOnlyEmptyBlocks(t *testing.T) {
	f := &fakeAdapters{recognizeText: "こんにちは"}
	s := newTestStore(f)

	page := testPage(100, 100)
	page.Blocks = []domain.TextBlock{
		{X: 10, Y: 10, Width: 20, Height: 20},
		{X: 10, Y: 50, Width: 20, Height: 20, Text: "already"},
	}
	s.SetDocuments([]*domain.Document{page})

	require.NoError(t, <-s.OCR(context.Background()))

	doc, _ := s.Current()
	assert.Equal(t, "こんにちは", doc.Blocks[0].Text)
	assert.Equal(t, "already", doc.Blocks[1].Text)
	assert.Equal(t, int32(1), f.ocrCalls.Load())
}

func TestTranslateSkipsUnrecognizedAndDone(t *testing.T) {
	f := &fakeAdapters{}
	s := newTestStore(f)

	page := testPage(100, 100)
	page.Blocks = []domain.TextBlock{
		{X: 0, Y: 0, Width: 10, Height: 10, Text: "hello"},
		{X: 0, Y: 20, Width: 10, Height: 10},
		{X: 0, Y: 40, Width: 10, Height: 10, Text: "done", Translation: "fertig"},
	}
	s.SetDocuments([]*domain.Document{page})

	require.NoError(t, <-s.Translate(context.Background()))

	doc, _ := s.Current()
	assert.Equal(t, "[en] hello", doc.Blocks[0].Translation)
	assert.Empty(t, doc.Blocks[1].Translation)
	assert.Equal(t, "fertig", doc.Blocks[2].Translation)
	assert.Equal(t, int32(1), f.translateCalls.Load())
}

func TestInpaintRequiresMask(t *testing.T) {
	f := &fakeAdapters{}
	s := newTestStore(f)
	s.SetDocuments([]*domain.Document{testPage(100, 100)})

	err := <-s.Inpaint(context.Background(), nil, inference.MorphologyOptions{})
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrorTypeNotFound, derr.Type)
	assert.Zero(t, f.inpaintCalls.Load())
}

func TestInpaintWholePage(t *testing.T) {
	f := &fakeAdapters{inpaintFill: color.RGBA{R: 1, G: 2, B: 3, A: 255}}
	s := newTestStore(f)

	page := testPage(100, 100)
	page.Mask = solidMask(100, 100, geometry.Region{X: 10, Y: 10, Width: 5, Height: 5})
	s.SetDocuments([]*domain.Document{page})

	require.NoError(t, <-s.Inpaint(context.Background(), nil, inference.MorphologyOptions{}))

	doc, _ := s.Current()
	require.NotNil(t, doc.Inpainted)
	assert.Equal(t, 100, doc.Inpainted.Bounds().Dx())
}

func TestInpaintPartialStitchesMaskedPixelsOnly(t *testing.T) {
	f := &fakeAdapters{inpaintFill: color.RGBA{R: 200, G: 0, B: 0, A: 255}}
	s := newTestStore(f)

	page := testPage(100, 100)
	// Masked pixels only in a 4x4 square at (20, 20).
	page.Mask = solidMask(100, 100, geometry.Region{X: 20, Y: 20, Width: 4, Height: 4})
	s.SetDocuments([]*domain.Document{page})

	region := geometry.Region{X: 16, Y: 16, Width: 16, Height: 16}
	require.NoError(t, <-s.Inpaint(context.Background(), &region, inference.MorphologyOptions{}))

	doc, _ := s.Current()
	require.NotNil(t, doc.Inpainted)
	rgba := doc.Inpainted.(*image.RGBA)

	// Inside the masked square the fill shows through.
	assert.Equal(t, uint8(200), rgba.RGBAAt(21, 21).R)
	// Unmasked pixels inside the region keep the original page content.
	assert.Equal(t, uint8(0), rgba.RGBAAt(17, 17).R)
	// Pixels outside the region are untouched.
	assert.Equal(t, uint8(0), rgba.RGBAAt(50, 50).R)
}

func TestInpaintPartialSkipsUntouchedRegion(t *testing.T) {
	f := &fakeAdapters{inpaintFill: color.RGBA{R: 200, A: 255}}
	s := newTestStore(f)

	page := testPage(100, 100)
	page.Mask = imaging.BlankMask(100, 100)
	s.SetDocuments([]*domain.Document{page})

	// No block and no masked pixel in the region: nothing to fill.
	region := geometry.Region{X: 60, Y: 60, Width: 10, Height: 10}
	require.NoError(t, <-s.Inpaint(context.Background(), &region, inference.MorphologyOptions{}))

	assert.Zero(t, f.inpaintCalls.Load())
	doc, _ := s.Current()
	assert.Nil(t, doc.Inpainted)
}

func TestInpaintPartialRegionOutsidePage(t *testing.T) {
	f := &fakeAdapters{}
	s := newTestStore(f)

	page := testPage(100, 100)
	page.Mask = imaging.BlankMask(100, 100)
	s.SetDocuments([]*domain.Document{page})

	region := geometry.Region{X: 500, Y: 500, Width: 10, Height: 10}
	require.NoError(t, <-s.Inpaint(context.Background(), &region, inference.MorphologyOptions{}))
	assert.Zero(t, f.inpaintCalls.Load())
}

func TestUpdateMaskWholePage(t *testing.T) {
	s := newTestStore(&fakeAdapters{})
	s.SetDocuments([]*domain.Document{testPage(50, 50)})

	require.NoError(t, s.UpdateMask(imaging.BlankMask(50, 50), nil))
	doc, _ := s.Current()
	assert.NotNil(t, doc.Mask)

	err := s.UpdateMask(imaging.BlankMask(10, 10), nil)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrorTypeValidation, derr.Type)
}

func TestUpdateMaskRegionPatch(t *testing.T) {
	s := newTestStore(&fakeAdapters{})
	s.SetDocuments([]*domain.Document{testPage(50, 50)})

	patch := solidMask(10, 10, geometry.Region{X: 0, Y: 0, Width: 10, Height: 10})
	region := geometry.Region{X: 5, Y: 5, Width: 10, Height: 10}
	require.NoError(t, s.UpdateMask(patch, &region))

	doc, _ := s.Current()
	require.NotNil(t, doc.Mask)
	rgba := doc.Mask.(*image.RGBA)
	assert.Equal(t, uint8(255), rgba.RGBAAt(7, 7).R)
	assert.Equal(t, uint8(0), rgba.RGBAAt(30, 30).R)
}

func TestUpdateMaskRegionSizeMismatch(t *testing.T) {
	s := newTestStore(&fakeAdapters{})
	s.SetDocuments([]*domain.Document{testPage(50, 50)})

	region := geometry.Region{X: 0, Y: 0, Width: 10, Height: 10}
	err := s.UpdateMask(imaging.BlankMask(5, 5), &region)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrorTypeValidation, derr.Type)
}

func TestSetCurrentAndRemoveBlock(t *testing.T) {
	s := newTestStore(&fakeAdapters{})

	pageA := testPage(100, 100)
	pageA.Blocks = []domain.TextBlock{{X: 0, Y: 0, Width: 10, Height: 10}}
	pageB := testPage(100, 100)
	s.SetDocuments([]*domain.Document{pageA, pageB})

	assert.Equal(t, 0, s.CurrentIndex())
	assert.False(t, s.SetCurrent(5))
	assert.True(t, s.SetCurrent(1))
	assert.Equal(t, 1, s.CurrentIndex())

	assert.False(t, s.RemoveBlock(0), "page B has no blocks")
	require.True(t, s.SetCurrent(0))
	assert.True(t, s.RemoveBlock(0))
	assert.False(t, s.RemoveBlock(0))
}

func TestDocumentsReturnsSnapshots(t *testing.T) {
	s := newTestStore(&fakeAdapters{})
	page := testPage(100, 100)
	page.Blocks = []domain.TextBlock{{X: 0, Y: 0, Width: 10, Height: 10}}
	s.SetDocuments([]*domain.Document{page})

	snapshot, ok := s.Current()
	require.True(t, ok)
	snapshot.Blocks[0].Text = "mutated"

	doc, _ := s.Current()
	assert.Empty(t, doc.Blocks[0].Text, "snapshot mutation must not reach the store")
}

func TestCommandsSerializeOnQueue(t *testing.T) {
	f := &fakeAdapters{recognizeText: "text"}
	s := newTestStore(f)

	page := testPage(100, 100)
	for i := 0; i < 5; i++ {
		page.Blocks = append(page.Blocks, domain.TextBlock{
			X: 0, Y: float64(i * 15), Width: 10, Height: 10,
		})
	}
	s.SetDocuments([]*domain.Document{page})

	ctx := context.Background()
	h1 := s.OCR(ctx)
	h2 := s.Translate(ctx)

	require.NoError(t, <-h1)
	require.NoError(t, <-h2)

	doc, _ := s.Current()
	for i, b := range doc.Blocks {
		assert.Equal(t, "text", b.Text, fmt.Sprintf("block %d", i))
		assert.Equal(t, "[en] text", b.Translation, fmt.Sprintf("block %d", i))
	}
}
