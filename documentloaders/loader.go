// Package documentloaders turns files, uploads and command output into
// schema.Document values ready for summarization.
package documentloaders

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sevigo/docsum/parsers"
	"github.com/sevigo/docsum/schema"
)

// Loader loads documents from a source.
type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// ExtractionRecorder observes extractor outcomes. metrics.Recorder implements it.
type ExtractionRecorder interface {
	RecordExtraction(extractor string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordExtraction(string, error) {}

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

type options struct {
	logger  *slog.Logger
	metrics ExtractionRecorder
}

// Option configures a loader.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		logger:  slog.Default(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records the outcome of every extraction.
func WithMetrics(m ExtractionRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// LoadReader extracts the text of an uploaded document. The extractor is
// chosen by mediaType, then by the extension of fileName, then by sniffing
// the first bytes of r. Errors wrap parsers.ErrUnsupportedType or
// parsers.ErrExtractionFailed.
func LoadReader(ctx context.Context, r io.Reader, fileName, mediaType string, registry *parsers.Registry, opts ...Option) (schema.Document, error) {
	o := applyOptions(opts...)
	return load(ctx, r, fileName, mediaType, fileName, registry, o)
}

func load(ctx context.Context, r io.Reader, fileName, mediaType, source string, registry *parsers.Registry, o options) (schema.Document, error) {
	logger := o.logger.With("component", "document_loader", "file_name", fileName)

	br := bufio.NewReaderSize(r, sniffLen)
	extractor, err := resolve(br, fileName, mediaType, registry)
	if err != nil {
		logger.WarnContext(ctx, "No extractor for document", "media_type", mediaType)
		return schema.Document{}, err
	}

	counter := &countingReader{r: br}
	content, err := extractor.Extract(ctx, counter)
	o.metrics.RecordExtraction(extractor.Name(), err)
	if err != nil {
		if !errors.Is(err, parsers.ErrExtractionFailed) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", parsers.ErrExtractionFailed, err)
		}
		logger.WarnContext(ctx, "Extraction failed", "extractor", extractor.Name(), "error", err)
		return schema.Document{}, err
	}

	logger.DebugContext(ctx, "Document extracted",
		"extractor", extractor.Name(),
		"bytes", counter.n,
		"chars", len(content))

	return schema.NewDocument(content, map[string]any{
		schema.MetadataSource:    source,
		schema.MetadataFileName:  fileName,
		schema.MetadataSizeBytes: counter.n,
		schema.MetadataMediaType: extractor.MediaTypes()[0],
		schema.MetadataExtractor: extractor.Name(),
	}), nil
}

func resolve(br *bufio.Reader, fileName, mediaType string, registry *parsers.Registry) (schema.TextExtractor, error) {
	extractor, err := registry.ForFile(fileName, mediaType)
	if err == nil {
		return extractor, nil
	}

	head, peekErr := br.Peek(sniffLen)
	if peekErr != nil && !errors.Is(peekErr, io.EOF) && !errors.Is(peekErr, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: failed to read document: %w", parsers.ErrExtractionFailed, peekErr)
	}
	if len(head) == 0 {
		return nil, err
	}
	if sniffed, sniffErr := registry.ForMediaType(http.DetectContentType(head)); sniffErr == nil {
		return sniffed, nil
	}
	return nil, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
