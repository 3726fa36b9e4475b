// Package parsers turns uploaded documents into plain text.
package parsers

import (
	"fmt"
	"log/slog"

	"github.com/sevigo/docsum/parsers/docx"
	"github.com/sevigo/docsum/parsers/markdown"
	"github.com/sevigo/docsum/parsers/pdf"
	"github.com/sevigo/docsum/parsers/text"
	"github.com/sevigo/docsum/schema"
)

// NewDefaultRegistry returns a registry with the PDF, Word, plain text and
// Markdown extractors.
func NewDefaultRegistry(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry(logger)

	factories := []func(*slog.Logger) schema.TextExtractor{
		pdf.New,
		docx.New,
		text.New,
		markdown.New,
	}
	for _, factory := range factories {
		extractor := factory(logger)
		if err := registry.Register(extractor); err != nil {
			return nil, fmt.Errorf("failed to register extractor %s: %w", extractor.Name(), err)
		}
	}

	logger.Debug("Extractors registered", "count", len(factories))
	return registry, nil
}
