package schema

import (
	"context"
	"errors"
	"io"
)

// Metadata keys set by document loaders.
const (
	MetadataSource    = "source"
	MetadataFileName  = "file_name"
	MetadataSizeBytes = "size_bytes"
	MetadataMediaType = "media_type"
	MetadataExtractor = "extractor"
)

type Document struct {
	PageContent string
	Metadata    map[string]any
}

func (d Document) String() string {
	return d.PageContent
}

func NewDocument(content string, metadata map[string]any) Document {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return Document{
		PageContent: content,
		Metadata:    metadata,
	}
}

// MetadataString returns the metadata value for key when it is a string.
func (d Document) MetadataString(key string) string {
	if v, ok := d.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// TextExtractor turns the raw bytes of one document format into plain Unicode text.
type TextExtractor interface {
	Name() string
	MediaTypes() []string
	Extensions() []string
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// ErrExtractionFailed is wrapped by every TextExtractor failure.
var ErrExtractionFailed = errors.New("extraction failed")
