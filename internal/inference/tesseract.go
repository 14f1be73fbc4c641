package inference

import (
	"context"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/imaging"
)

// TesseractRecognizer runs OCR locally through Tesseract, for setups
// without a model sidecar. One recognizer wraps one Tesseract client, so
// calls are serialized through the session gate.
type TesseractRecognizer struct {
	languages []string
	gate      *Gate
}

// NewTesseractRecognizer creates a local OCR adapter. languages defaults to
// Japanese plus English when empty.
func NewTesseractRecognizer(languages []string) *TesseractRecognizer {
	if len(languages) == 0 {
		languages = []string{"jpn", "eng"}
	}
	return &TesseractRecognizer{
		languages: languages,
		gate:      NewGate(),
	}
}

// Recognize extracts the text of a cropped block image.
func (r *TesseractRecognizer) Recognize(ctx context.Context, crop image.Image) (string, error) {
	var text string
	err := r.gate.Do(ctx, func() error {
		encoded, err := imaging.EncodePNG(crop)
		if err != nil {
			return err
		}

		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(r.languages...); err != nil {
			return domain.AdapterError("set tesseract languages", err)
		}
		if err := client.SetImageFromBytes(encoded); err != nil {
			return domain.AdapterError("set tesseract image", err)
		}

		out, err := client.Text()
		if err != nil {
			return domain.AdapterError("tesseract ocr", err)
		}
		text = strings.TrimSpace(out)
		return nil
	})
	return text, err
}
