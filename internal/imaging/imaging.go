// Package imaging provides the pixel-level helpers the pipeline commands
// rely on: decoding source pages, cropping block rectangles, compositing
// mask patches, and stitching inpainted crops back into a page.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/geometry"
)

// Decode decodes an image from bytes. PNG, JPEG, BMP, and WebP are
// supported.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeError("decode image", err)
	}
	return img, nil
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.IOError("encode png", err)
	}
	return buf.Bytes(), nil
}

// Encode encodes an image using the format implied by a file extension.
// Unknown extensions fall back to JPEG, matching the export behavior for
// scanned pages.
func Encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, domain.IOError("encode png", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
			return nil, domain.IOError("encode jpeg", err)
		}
	}
	return buf.Bytes(), nil
}

// ToRGBA returns img as an *image.RGBA, copying only when necessary.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// Crop copies the given region out of img. The region is assumed to be
// clamped to the image already.
func Crop(img image.Image, region geometry.Region) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, region.Width, region.Height))
	src := img.Bounds().Min.Add(image.Pt(region.X, region.Y))
	draw.Draw(out, out.Bounds(), img, src, draw.Src)
	return out
}

// CropRect crops a float rectangle after clamping it to the image.
func CropRect(img image.Image, rect geometry.Rect, docWidth, docHeight int) (*image.RGBA, bool) {
	region, ok := geometry.ClampRegion(geometry.Region{
		X:      int(rect.X),
		Y:      int(rect.Y),
		Width:  int(rect.Width + 0.5),
		Height: int(rect.Height + 0.5),
	}, docWidth, docHeight)
	if !ok {
		return nil, false
	}
	return Crop(img, region), true
}

// BlankMask returns an all-black opaque mask of the given size.
func BlankMask(width, height int) *image.RGBA {
	mask := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(mask, mask.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	return mask
}

// ApplyPatch copies patch over base at the region's offset and returns the
// result; base is not mutated. The patch must match the region's size.
func ApplyPatch(base image.Image, patch image.Image, region geometry.Region) *image.RGBA {
	out := copyRGBA(base)
	dst := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	draw.Draw(out, dst, patch, patch.Bounds().Min, draw.Src)
	return out
}

// StitchMasked writes the inpainted crop back into base over the given
// region, taking patch pixels where the mask crop is non-black and keeping
// the original pixels elsewhere. Returns a new image; base is not mutated.
func StitchMasked(base image.Image, patch, original, maskCrop image.Image, region geometry.Region) *image.RGBA {
	out := copyRGBA(base)
	patchRGBA := ToRGBA(patch)
	originalRGBA := ToRGBA(original)
	maskRGBA := ToRGBA(maskCrop)

	for y := 0; y < region.Height; y++ {
		for x := 0; x < region.Width; x++ {
			var src *image.RGBA
			if isMasked(maskRGBA, x, y) {
				src = patchRGBA
			} else {
				src = originalRGBA
			}
			out.SetRGBA(region.X+x, region.Y+y, src.RGBAAt(x, y))
		}
	}
	return out
}

// MaskedPixelInRegion reports whether any pixel of the mask inside the
// region is non-black, i.e. whether there is anything to inpaint there.
func MaskedPixelInRegion(mask image.Image, region geometry.Region) bool {
	rgba := ToRGBA(mask)
	for y := 0; y < region.Height; y++ {
		for x := 0; x < region.Width; x++ {
			if isMasked(rgba, region.X+x, region.Y+y) {
				return true
			}
		}
	}
	return false
}

func isMasked(mask *image.RGBA, x, y int) bool {
	c := mask.RGBAAt(x, y)
	return c.R > 0 || c.G > 0 || c.B > 0
}

// copyRGBA always returns a fresh RGBA copy of img.
func copyRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
