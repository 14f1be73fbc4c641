package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangaforge/mangaforge/internal/geometry"
)

func TestNewDefaults(t *testing.T) {
	v := New()
	assert.Equal(t, DefaultScale, v.Scale())
	assert.False(t, v.AutoFit())
	assert.Equal(t, 0, v.Page())
}

func TestSetScaleClamps(t *testing.T) {
	v := New()

	assert.Equal(t, 50, v.SetScale(50))
	assert.Equal(t, MinScale, v.SetScale(3))
	assert.Equal(t, MaxScale, v.SetScale(400))
}

func TestSetScaleDisablesAutoFit(t *testing.T) {
	v := New()
	v.FitToViewport(geometry.Size{Width: 500, Height: 700}, geometry.Size{Width: 1000, Height: 1400})
	require.True(t, v.AutoFit())

	v.SetScale(75)
	assert.False(t, v.AutoFit())
}

func TestFitToViewport(t *testing.T) {
	tests := []struct {
		name     string
		viewport geometry.Size
		document geometry.Size
		want     int
	}{
		{
			name:     "half size viewport",
			viewport: geometry.Size{Width: 500, Height: 700},
			document: geometry.Size{Width: 1000, Height: 1400},
			want:     50,
		},
		{
			name:     "width constrained",
			viewport: geometry.Size{Width: 300, Height: 2000},
			document: geometry.Size{Width: 1000, Height: 1400},
			want:     30,
		},
		{
			name:     "larger viewport clamps to max",
			viewport: geometry.Size{Width: 3000, Height: 3000},
			document: geometry.Size{Width: 1000, Height: 1400},
			want:     MaxScale,
		},
		{
			name:     "tiny viewport clamps to min",
			viewport: geometry.Size{Width: 20, Height: 20},
			document: geometry.Size{Width: 1000, Height: 1400},
			want:     MinScale,
		},
		{
			name:     "non-integer ratio rounds",
			viewport: geometry.Size{Width: 333, Height: 2000},
			document: geometry.Size{Width: 1000, Height: 1400},
			want:     33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			got := v.FitToViewport(tt.viewport, tt.document)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, v.Scale())
			assert.True(t, v.AutoFit())
		})
	}
}

func TestFitToViewportZeroExtent(t *testing.T) {
	v := New()
	v.SetScale(40)

	got := v.FitToViewport(geometry.Size{Width: 0, Height: 700}, geometry.Size{Width: 1000, Height: 1400})
	assert.Equal(t, 40, got, "zero extent leaves scale unchanged")
	assert.False(t, v.AutoFit())

	got = v.FitToViewport(geometry.Size{Width: 500, Height: 700}, geometry.Size{})
	assert.Equal(t, 40, got)
}

func TestPointerToDocument(t *testing.T) {
	origin := geometry.Point{X: 20, Y: 30}

	p, ok := PointerToDocument(geometry.Point{X: 120, Y: 130}, origin, 50)
	require.True(t, ok)
	assert.InDelta(t, 200, p.X, 1e-9)
	assert.InDelta(t, 200, p.Y, 1e-9)
}

func TestPointerToDocumentNoSurface(t *testing.T) {
	_, ok := PointerToDocument(geometry.Point{X: 10, Y: 10}, geometry.Point{}, 0)
	assert.False(t, ok)

	_, ok = PointerToDocument(geometry.Point{X: 10, Y: 10}, geometry.Point{}, -5)
	assert.False(t, ok)
}

func TestPointerDocumentRoundTrip(t *testing.T) {
	origin := geometry.Point{X: 13, Y: 41}
	doc := geometry.Point{X: 312.5, Y: 87.25}

	for _, scale := range []int{MinScale, 50, MaxScale} {
		pointer := DocumentToPointer(doc, origin, scale)
		back, ok := PointerToDocument(pointer, origin, scale)
		require.True(t, ok)
		assert.InDelta(t, doc.X, back.X, 1e-9)
		assert.InDelta(t, doc.Y, back.Y, 1e-9)
	}
}

func TestSetPage(t *testing.T) {
	v := New()
	v.SetPage(3)
	assert.Equal(t, 3, v.Page())

	v.SetPage(-1)
	assert.Equal(t, 3, v.Page(), "negative index ignored")
}
