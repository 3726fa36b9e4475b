package documentloaders

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sevigo/docsum/parsers"
	"github.com/sevigo/docsum/schema"
)

// FileLoader loads one document from the local file system.
type FileLoader struct {
	path     string
	registry *parsers.Registry
	opts     options
}

var _ Loader = (*FileLoader)(nil)

// NewFileLoader creates a loader for the file at path.
func NewFileLoader(path string, registry *parsers.Registry, opts ...Option) *FileLoader {
	return &FileLoader{
		path:     path,
		registry: registry,
		opts:     applyOptions(opts...),
	}
}

// Load returns a single document holding the extracted text.
func (l *FileLoader) Load(ctx context.Context) ([]schema.Document, error) {
	doc, err := l.LoadDocument(ctx)
	if err != nil {
		return nil, err
	}
	return []schema.Document{doc}, nil
}

// LoadDocument is Load without the slice.
func (l *FileLoader) LoadDocument(ctx context.Context) (schema.Document, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return schema.Document{}, fmt.Errorf("failed to open %s: %w", l.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return schema.Document{}, fmt.Errorf("failed to stat %s: %w", l.path, err)
	}
	if info.IsDir() {
		return schema.Document{}, fmt.Errorf("%s is a directory", l.path)
	}

	return load(ctx, f, filepath.Base(l.path), "", l.path, l.registry, l.opts)
}
