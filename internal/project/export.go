package project

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/imaging"
)

// ExportImage returns the encoded bytes of a page's translated output and
// the extension they were encoded with. The rendered buffer wins; the
// inpainted buffer is the fallback for pages where text was cleaned but
// not yet re-typeset. A page with neither is an error.
func ExportImage(doc *domain.Document, ext string) ([]byte, string, error) {
	var img image.Image
	switch {
	case doc.Rendered != nil:
		img = doc.Rendered
	case doc.Inpainted != nil:
		img = doc.Inpainted
	default:
		return nil, "", domain.NotFoundError(fmt.Sprintf("page %q has no translated output", doc.Name), nil)
	}

	ext = normalizeExportExt(ext, doc.Path)
	data, err := imaging.Encode(img, ext)
	if err != nil {
		return nil, "", err
	}
	return data, ext, nil
}

// ExportName returns the output file name for a page, `<name>_translated.<ext>`.
func ExportName(doc *domain.Document, ext string) string {
	ext = normalizeExportExt(ext, doc.Path)
	return fmt.Sprintf("%s_translated%s", doc.Name, ext)
}

// ExportTo writes a page's translated output into dir and returns the
// written path.
func ExportTo(dir string, doc *domain.Document, ext string) (string, error) {
	data, ext, err := ExportImage(doc, ext)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ExportName(doc, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.IOError("write exported page", err)
	}
	return path, nil
}

// normalizeExportExt picks the output extension: an explicit one wins, then
// the source file's own extension, then png. PDF pages export as png.
func normalizeExportExt(ext, sourcePath string) string {
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(sourcePath))
	}
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	switch ext {
	case ".png", ".jpg", ".jpeg":
		return ext
	default:
		return ".png"
	}
}
