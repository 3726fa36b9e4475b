// Package markdown extracts readable text from Markdown documents.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/docsum/schema"
)

const MediaType = "text/markdown"

const frontMatterSeparator = "---"

// Extractor renders Markdown to plain text: one line per heading, paragraph,
// list item and table row, code blocks verbatim, markup and HTML dropped.
// The title and description of a YAML front matter block lead the output.
type Extractor struct {
	logger   *slog.Logger
	markdown goldmark.Markdown
}

var _ schema.TextExtractor = (*Extractor)(nil)

// New creates a Markdown extractor.
func New(logger *slog.Logger) schema.TextExtractor {
	return &Extractor{
		logger: logger.With("extractor", "markdown"),
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Strikethrough,
				extension.TaskList,
			),
		),
	}
}

func (e *Extractor) Name() string {
	return "markdown"
}

func (e *Extractor) MediaTypes() []string {
	return []string{MediaType, "text/x-markdown"}
}

func (e *Extractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (e *Extractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read markdown: %w", schema.ErrExtractionFailed, err)
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	var b strings.Builder
	fm, body := e.splitFrontMatter(ctx, data)
	for _, key := range []string{"title", "description"} {
		if v, ok := fm[key].(string); ok && strings.TrimSpace(v) != "" {
			b.WriteString(strings.TrimSpace(v))
			b.WriteByte('\n')
		}
	}

	doc := e.markdown.Parser().Parse(text.NewReader(body))
	if err := ast.Walk(doc, blockWriter(&b, body)); err != nil {
		return "", fmt.Errorf("%w: failed to walk markdown: %w", schema.ErrExtractionFailed, err)
	}

	return tidy(b.String()), nil
}

// splitFrontMatter separates a leading YAML block from the body. Invalid
// YAML leaves the document untouched.
func (e *Extractor) splitFrontMatter(ctx context.Context, data []byte) (map[string]any, []byte) {
	if !bytes.HasPrefix(data, []byte(frontMatterSeparator+"\n")) {
		return nil, data
	}
	rest := data[len(frontMatterSeparator)+1:]

	end := bytes.Index(rest, []byte("\n"+frontMatterSeparator))
	if end < 0 {
		return nil, data
	}
	after := rest[end+1+len(frontMatterSeparator):]
	if len(after) > 0 && after[0] != '\n' {
		return nil, data
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		e.logger.DebugContext(ctx, "Ignoring invalid front matter", "error", err)
		return nil, data
	}
	return fm, bytes.TrimPrefix(after, []byte("\n"))
}

func blockWriter(b *strings.Builder, source []byte) ast.Walker {
	return func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil

		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if entering {
				writeLines(b, n, source)
			}
			return ast.WalkSkipChildren, nil

		case extast.KindTableCell:
			if entering {
				if n.PreviousSibling() != nil {
					b.WriteByte('\t')
				}
				b.WriteString(strings.TrimSpace(inlineText(n, source)))
			}
			return ast.WalkSkipChildren, nil

		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock,
			extast.KindTableHeader, extast.KindTableRow:
			if !entering {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		if entering {
			writeInline(b, n, source)
		}
		return ast.WalkContinue, nil
	}
}

func writeInline(b *strings.Builder, n ast.Node, source []byte) {
	switch node := n.(type) {
	case *ast.Text:
		b.Write(node.Segment.Value(source))
		switch {
		case node.HardLineBreak():
			b.WriteByte('\n')
		case node.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(node.Value)
	case *ast.AutoLink:
		b.Write(node.Label(source))
	}
}

func writeLines(b *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	if lines.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			writeInline(&b, c, source)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// tidy trims trailing spaces and squeezes runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
