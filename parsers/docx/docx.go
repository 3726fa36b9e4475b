// Package docx extracts paragraph text from Word (OOXML) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sevigo/docsum/schema"
)

const MediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const documentPart = "word/document.xml"

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 256 << 20

// Extractor reads the main document part of a .docx archive.
type Extractor struct {
	logger *slog.Logger
}

var _ schema.TextExtractor = (*Extractor)(nil)

// New creates a Word document extractor.
func New(logger *slog.Logger) schema.TextExtractor {
	return &Extractor{logger: logger.With("extractor", "docx")}
}

func (e *Extractor) Name() string {
	return "docx"
}

func (e *Extractor) MediaTypes() []string {
	return []string{MediaType}
}

func (e *Extractor) Extensions() []string {
	return []string{".docx"}
}

// Extract returns one line per paragraph. Tabs and line breaks inside a
// paragraph are kept.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read document: %w", schema.ErrExtractionFailed, err)
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a Word document: %w", schema.ErrExtractionFailed, err)
	}

	part, err := archive.Open(documentPart)
	if err != nil {
		return "", fmt.Errorf("%w: missing %s: %w", schema.ErrExtractionFailed, documentPart, err)
	}
	defer part.Close()

	paragraphs, err := parseParagraphs(ctx, io.LimitReader(part, maxDocumentXML))
	if err != nil {
		return "", fmt.Errorf("%w: %w", schema.ErrExtractionFailed, err)
	}

	e.logger.DebugContext(ctx, "Word extraction finished", "paragraphs", len(paragraphs))
	return strings.Join(paragraphs, "\n"), nil
}

// parseParagraphs walks the WordprocessingML token stream. Only text runs
// (w:t), tabs and breaks contribute to a paragraph (w:p).
func parseParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = true
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					paragraphs = append(paragraphs, current.String())
				}
				inPara = false
			}
		case xml.CharData:
			if inText && inPara {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
