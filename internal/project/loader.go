// Package project handles getting documents in and out of mangaforge:
// loading pages from image files and PDFs, saving and opening project
// archives, and exporting translated pages.
package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/imaging"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
}

// Loader reads image and PDF files into documents.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a document loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadPaths loads every given path into documents, in a stable order:
// paths are sorted by base name, PDFs expand into one document per page.
// Unreadable files are skipped with a warning rather than failing the
// whole load; an error is returned only when nothing could be loaded.
func (l *Loader) LoadPaths(ctx context.Context, paths []string) ([]*domain.Document, error) {
	if len(paths) == 0 {
		return nil, domain.ValidationError("no files given", nil)
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	var docs []*domain.Document
	for _, path := range sorted {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		loaded, err := l.loadPath(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable file")
			continue
		}
		docs = append(docs, loaded...)
	}

	if len(docs) == 0 {
		return nil, domain.IOError("no loadable documents among given files", nil)
	}
	return docs, nil
}

// LoadDirectory loads every supported file directly inside dir.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]*domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.IOError("read directory", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if imageExtensions[ext] || ext == ".pdf" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return l.LoadPaths(ctx, paths)
}

func (l *Loader) loadPath(path string) ([]*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return l.loadPDF(path)
	case imageExtensions[ext]:
		doc, err := l.loadImage(path)
		if err != nil {
			return nil, err
		}
		return []*domain.Document{doc}, nil
	default:
		return nil, domain.ValidationError(fmt.Sprintf("unsupported file type %q", ext), nil)
	}
}

func (l *Loader) loadImage(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError("read image file", err)
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return domain.NewDocument(path, name, img), nil
}

// loadPDF renders each page of a PDF into its own document.
func (l *Loader) loadPDF(path string) ([]*domain.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.IOError("open pdf", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ValidationError("pdf has no pages", nil)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	docs := make([]*domain.Document, 0, pageCount)
	for page := 0; page < pageCount; page++ {
		img, err := doc.Image(page)
		if err != nil {
			return nil, domain.DecodeError(fmt.Sprintf("render pdf page %d", page+1), err)
		}
		name := fmt.Sprintf("%s_p%03d", base, page+1)
		docs = append(docs, domain.NewDocument(path, name, img))
	}

	l.logger.Info().Str("path", path).Int("pages", pageCount).Msg("Loaded PDF")
	return docs, nil
}
