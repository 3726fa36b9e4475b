// Package text decodes plain text files of unknown encoding.
package text

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/sevigo/docsum/schema"
)

const MediaType = "text/plain"

// Encoding names reported by Decode.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16LE     = "utf-16le"
	EncodingUTF16BE     = "utf-16be"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Extractor decodes plain text into UTF-8.
type Extractor struct {
	logger *slog.Logger
}

var _ schema.TextExtractor = (*Extractor)(nil)

// New creates a plain text extractor.
func New(logger *slog.Logger) schema.TextExtractor {
	return &Extractor{logger: logger.With("extractor", "text")}
}

func (e *Extractor) Name() string {
	return "text"
}

func (e *Extractor) MediaTypes() []string {
	return []string{MediaType}
}

func (e *Extractor) Extensions() []string {
	return []string{".txt", ".text", ".log"}
}

func (e *Extractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read text: %w", schema.ErrExtractionFailed, err)
	}

	text, enc, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", schema.ErrExtractionFailed, err)
	}

	e.logger.DebugContext(ctx, "Decoded text", "encoding", enc, "bytes", len(data))
	return text, nil
}

// Decode converts data to a UTF-8 string and names the encoding it used.
// UTF-8 and BOM-marked UTF-16 are recognised first. Other input is read as
// Windows-1252 when it carries bytes in the C1 range (0x80-0x9F), which
// ISO-8859-1 reserves for control codes, and as ISO-8859-1 otherwise.
// Line endings are normalised to \n.
func Decode(data []byte) (string, string, error) {
	var (
		dec  *encoding.Decoder
		name string
	)
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
		name = EncodingUTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		name = EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		name = EncodingUTF16BE
	case utf8.Valid(data):
		name = EncodingUTF8
	case hasC1Bytes(data):
		dec = charmap.Windows1252.NewDecoder()
		name = EncodingWindows1252
	default:
		dec = charmap.ISO8859_1.NewDecoder()
		name = EncodingISO88591
	}

	if dec != nil {
		out, err := dec.Bytes(data)
		if err != nil {
			return "", name, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		data = out
	} else if !utf8.Valid(data) {
		return "", name, fmt.Errorf("invalid %s input", name)
	}

	return normalizeNewlines(string(data)), name, nil
}

func hasC1Bytes(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return true
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
