package project

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/mangaforge/mangaforge/internal/domain"
	"github.com/mangaforge/mangaforge/internal/imaging"
)

// Magic identifies a mangaforge project file. The payload after the header
// is a gzip-compressed JSON archive with PNG-encoded image buffers.
var Magic = []byte("mgf!")

const formatVersion = 1

// Extension is the canonical project file extension.
const Extension = ".mgf"

type archive struct {
	Version   int               `json:"version"`
	Documents []archiveDocument `json:"documents"`
}

type archiveDocument struct {
	ID        uuid.UUID          `json:"id"`
	Path      string             `json:"path"`
	Name      string             `json:"name"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Blocks    []domain.TextBlock `json:"blocks"`
	Image     []byte             `json:"image"`
	Mask      []byte             `json:"mask,omitempty"`
	Inpainted []byte             `json:"inpainted,omitempty"`
	Rendered  []byte             `json:"rendered,omitempty"`
}

// IsProjectFile reports whether the bytes start with the project magic.
func IsProjectFile(data []byte) bool {
	return len(data) >= len(Magic) && bytes.Equal(data[:len(Magic)], Magic)
}

// Marshal serializes documents into the project file format.
func Marshal(docs []*domain.Document) ([]byte, error) {
	arch := archive{Version: formatVersion, Documents: make([]archiveDocument, 0, len(docs))}
	for _, doc := range docs {
		entry := archiveDocument{
			ID:     doc.ID,
			Path:   doc.Path,
			Name:   doc.Name,
			Width:  doc.Width,
			Height: doc.Height,
			Blocks: doc.Blocks,
		}

		var err error
		if entry.Image, err = imaging.EncodePNG(doc.Image); err != nil {
			return nil, fmt.Errorf("encode page %q: %w", doc.Name, err)
		}
		if doc.Mask != nil {
			if entry.Mask, err = imaging.EncodePNG(doc.Mask); err != nil {
				return nil, fmt.Errorf("encode mask of %q: %w", doc.Name, err)
			}
		}
		if doc.Inpainted != nil {
			if entry.Inpainted, err = imaging.EncodePNG(doc.Inpainted); err != nil {
				return nil, fmt.Errorf("encode inpainted of %q: %w", doc.Name, err)
			}
		}
		if doc.Rendered != nil {
			if entry.Rendered, err = imaging.EncodePNG(doc.Rendered); err != nil {
				return nil, fmt.Errorf("encode rendered of %q: %w", doc.Name, err)
			}
		}
		arch.Documents = append(arch.Documents, entry)
	}

	payload, err := json.Marshal(arch)
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(Magic)
	buf.WriteByte(formatVersion)

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress project: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress project: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a project file back into documents.
func Unmarshal(data []byte) ([]*domain.Document, error) {
	if !IsProjectFile(data) {
		return nil, domain.DecodeError("not a project file", nil)
	}
	if len(data) < len(Magic)+1 {
		return nil, domain.DecodeError("truncated project file", nil)
	}
	version := data[len(Magic)]
	if version != formatVersion {
		return nil, domain.DecodeError(fmt.Sprintf("unsupported project version %d", version), nil)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data[len(Magic)+1:]))
	if err != nil {
		return nil, domain.DecodeError("decompress project", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, domain.DecodeError("decompress project", err)
	}

	var arch archive
	if err := json.Unmarshal(payload, &arch); err != nil {
		return nil, domain.DecodeError("parse project", err)
	}

	docs := make([]*domain.Document, 0, len(arch.Documents))
	for _, entry := range arch.Documents {
		img, err := imaging.Decode(entry.Image)
		if err != nil {
			return nil, domain.DecodeError(fmt.Sprintf("decode page %q", entry.Name), err)
		}
		doc := &domain.Document{
			ID:     entry.ID,
			Path:   entry.Path,
			Name:   entry.Name,
			Width:  entry.Width,
			Height: entry.Height,
			Image:  img,
			Blocks: entry.Blocks,
		}
		if doc.ID == uuid.Nil {
			doc.ID = uuid.New()
		}
		if doc.Width == 0 || doc.Height == 0 {
			bounds := img.Bounds()
			doc.Width, doc.Height = bounds.Dx(), bounds.Dy()
		}
		if len(entry.Mask) > 0 {
			if doc.Mask, err = imaging.Decode(entry.Mask); err != nil {
				return nil, domain.DecodeError(fmt.Sprintf("decode mask of %q", entry.Name), err)
			}
		}
		if len(entry.Inpainted) > 0 {
			if doc.Inpainted, err = imaging.Decode(entry.Inpainted); err != nil {
				return nil, domain.DecodeError(fmt.Sprintf("decode inpainted of %q", entry.Name), err)
			}
		}
		if len(entry.Rendered) > 0 {
			if doc.Rendered, err = imaging.Decode(entry.Rendered); err != nil {
				return nil, domain.DecodeError(fmt.Sprintf("decode rendered of %q", entry.Name), err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Save writes documents to a project file at path.
func Save(path string, docs []*domain.Document) error {
	data, err := Marshal(docs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.IOError("write project file", err)
	}
	return nil
}

// Open reads a project file from path.
func Open(path string) ([]*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError("read project file", err)
	}
	return Unmarshal(data)
}
