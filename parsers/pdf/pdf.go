// Package pdf extracts page text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sevigo/docsum/schema"
)

const MediaType = "application/pdf"

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n[ \t]*\n`)
	extraNewlines   = regexp.MustCompile(`\n{3,}`)
)

// Extractor reads the text layer of a PDF, page by page.
type Extractor struct {
	logger *slog.Logger
}

var _ schema.TextExtractor = (*Extractor)(nil)

// New creates a PDF extractor.
func New(logger *slog.Logger) schema.TextExtractor {
	return &Extractor{logger: logger.With("extractor", "pdf")}
}

func (e *Extractor) Name() string {
	return "pdf"
}

func (e *Extractor) MediaTypes() []string {
	return []string{MediaType, "application/x-pdf"}
}

func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

// Extract returns the text of every page in order, one page per line block.
// Pages without a text layer are skipped.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (text string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read PDF: %w", schema.ErrExtractionFailed, err)
	}

	// The parser panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: malformed PDF: %v", schema.ErrExtractionFailed, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %w", schema.ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	e.logger.DebugContext(ctx, "PDF text extraction starting", "pages", numPages)

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			e.logger.DebugContext(ctx, "Skipping null page", "page", i)
			continue
		}
		if pageText := e.extractPageText(page); pageText != "" {
			pages = append(pages, pageText)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no text found in PDF", schema.ErrExtractionFailed)
	}

	e.logger.DebugContext(ctx, "PDF text extraction finished", "pages_with_text", len(pages))
	return strings.Join(pages, "\n"), nil
}

func (e *Extractor) extractPageText(page pdf.Page) string {
	if content, err := page.GetPlainText(nil); err == nil && strings.TrimSpace(content) != "" {
		return cleanText(content)
	}

	var b strings.Builder
	tokens := page.Content().Text
	for i, token := range tokens {
		b.WriteString(token.S)
		if i < len(tokens)-1 && !strings.HasSuffix(token.S, " ") && !strings.HasSuffix(token.S, "\n") {
			b.WriteString(" ")
		}
	}
	return cleanText(b.String())
}

func cleanText(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	text = strings.ReplaceAll(text, "ﬁ", "fi")
	text = strings.ReplaceAll(text, "ﬂ", "fl")
	return strings.TrimSpace(text)
}
