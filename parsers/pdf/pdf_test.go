package pdf_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/docsum/internal/testutil"
	"github.com/sevigo/docsum/parsers/pdf"
	"github.com/sevigo/docsum/schema"
)

// buildPDF writes a single-font PDF with one page per entry in pages.
func buildPDF(pages ...string) []byte {
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func newExtractor(t *testing.T) schema.TextExtractor {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return pdf.New(logger)
}

func TestExtractor_Metadata(t *testing.T) {
	e := newExtractor(t)
	assert.Equal(t, "pdf", e.Name())
	assert.Contains(t, e.MediaTypes(), pdf.MediaType)
	assert.Equal(t, []string{".pdf"}, e.Extensions())
}

func TestExtractor_Extract(t *testing.T) {
	e := newExtractor(t)

	text, err := e.Extract(context.Background(), bytes.NewReader(buildPDF(
		"Quarterly revenue grew by twelve percent.",
		"Operating costs stayed flat.",
	)))
	require.NoError(t, err)

	first := strings.Index(text, "Quarterly revenue grew by twelve percent.")
	second := strings.Index(text, "Operating costs stayed flat.")
	require.GreaterOrEqual(t, first, 0, text)
	require.Greater(t, second, first, "pages must stay in order")
}

func TestExtractor_Errors(t *testing.T) {
	e := newExtractor(t)

	t.Run("not a pdf", func(t *testing.T) {
		_, err := e.Extract(context.Background(), strings.NewReader("plain words, not a PDF"))
		assert.ErrorIs(t, err, schema.ErrExtractionFailed)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := e.Extract(context.Background(), bytes.NewReader(nil))
		assert.ErrorIs(t, err, schema.ErrExtractionFailed)
	})

	t.Run("no text layer", func(t *testing.T) {
		_, err := e.Extract(context.Background(), bytes.NewReader(buildPDF("")))
		assert.ErrorIs(t, err, schema.ErrExtractionFailed)
	})
}
