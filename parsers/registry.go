package parsers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sevigo/docsum/schema"
)

var (
	// ErrUnsupportedType is returned when no extractor handles a media type or extension.
	ErrUnsupportedType = errors.New("parsers: unsupported document type")

	// ErrExtractionFailed is wrapped by every extractor failure.
	ErrExtractionFailed = schema.ErrExtractionFailed
)

// Registry resolves the TextExtractor for a document.
type Registry struct {
	byName      map[string]schema.TextExtractor
	byMediaType map[string]schema.TextExtractor
	byExtension map[string]schema.TextExtractor
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName:      make(map[string]schema.TextExtractor),
		byMediaType: make(map[string]schema.TextExtractor),
		byExtension: make(map[string]schema.TextExtractor),
		logger:      logger.With("component", "extractor_registry"),
	}
}

// Register adds an extractor under its name, media types and extensions.
func (r *Registry) Register(extractor schema.TextExtractor) error {
	if extractor == nil {
		return errors.New("cannot register nil extractor")
	}

	name := extractor.Name()
	if name == "" {
		return errors.New("extractor must have a non-empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("extractor with name %q already registered", name)
	}
	r.byName[name] = extractor

	for _, mt := range extractor.MediaTypes() {
		r.byMediaType[normalizeMediaType(mt)] = extractor
	}
	for _, ext := range extractor.Extensions() {
		if ext = normalizeExtension(ext); ext != "" {
			r.byExtension[ext] = extractor
		}
	}

	r.logger.Debug("Registered extractor", "extractor", name, "media_types", extractor.MediaTypes())
	return nil
}

// ForMediaType returns the extractor for a media type. Parameters such as charset are ignored.
func (r *Registry) ForMediaType(mediaType string) (schema.TextExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extractor, ok := r.byMediaType[normalizeMediaType(mediaType)]
	if !ok {
		return nil, fmt.Errorf("%w: media type %q", ErrUnsupportedType, mediaType)
	}
	return extractor, nil
}

// ForExtension returns the extractor for a file extension, with or without the leading dot.
func (r *Registry) ForExtension(ext string) (schema.TextExtractor, error) {
	ext = normalizeExtension(ext)
	if ext == "" {
		return nil, fmt.Errorf("%w: empty extension", ErrUnsupportedType)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	extractor, ok := r.byExtension[ext]
	if !ok {
		return nil, fmt.Errorf("%w: extension %s", ErrUnsupportedType, ext)
	}
	return extractor, nil
}

// ForFile resolves by declared media type first and falls back to the file
// name's extension. Generic binary types are treated as undeclared.
func (r *Registry) ForFile(fileName, mediaType string) (schema.TextExtractor, error) {
	if mt := normalizeMediaType(mediaType); mt != "" && mt != "application/octet-stream" {
		if extractor, err := r.ForMediaType(mt); err == nil {
			return extractor, nil
		}
	}
	if extractor, err := r.ForExtension(filepath.Ext(fileName)); err == nil {
		return extractor, nil
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, fileName, mediaType)
}

// MediaTypes lists every registered media type, sorted.
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byMediaType))
	for mt := range r.byMediaType {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// All returns the registered extractors sorted by name.
func (r *Registry) All() []schema.TextExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schema.TextExtractor, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func normalizeMediaType(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}
