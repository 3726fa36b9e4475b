package textsplitter

import (
	"context"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/sevigo/docsum/schema"
)

// WordBudget splits text on whitespace into chunks whose rendered length stays
// within a character budget. Words are never cut: a word longer than the
// budget becomes a chunk of its own.
type WordBudget struct {
	opts options
}

var _ TextSplitter = (*WordBudget)(nil)

// NewWordBudget creates a WordBudget splitter. The default budget is DefaultChunkSize.
func NewWordBudget(opts ...Option) *WordBudget {
	return &WordBudget{opts: applyOptions(opts...)}
}

// ChunkSize reports the configured budget.
func (s *WordBudget) ChunkSize() int {
	return s.opts.chunkSize
}

// SplitText splits a single text into ordered chunks. It never fails.
func (s *WordBudget) SplitText(_ context.Context, text string) ([]string, error) {
	return SplitWords(text, s.opts.chunkSize), nil
}

// SplitDocuments splits every document and copies its metadata onto each chunk.
func (s *WordBudget) SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error) {
	var out []schema.Document
	for _, doc := range docs {
		chunks, err := s.SplitText(ctx, doc.PageContent)
		if err != nil {
			return nil, err
		}
		for i, chunk := range chunks {
			metadata := make(map[string]any, len(doc.Metadata)+2)
			maps.Copy(metadata, doc.Metadata)
			metadata[MetadataChunkIndex] = i
			metadata[MetadataChunkCount] = len(chunks)
			out = append(out, schema.NewDocument(chunk, metadata))
		}
	}
	return out, nil
}

// SplitWords greedily packs the whitespace-delimited words of text into chunks.
// Each word costs its length in runes plus one separator; a chunk is closed as
// soon as the next word would push its cost past maxLength.
//
// Joining the result with single spaces yields the original word sequence.
func SplitWords(text string, maxLength int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks  []string
		current []string
		total   int
	)
	for _, word := range words {
		cost := utf8.RuneCountInString(word) + 1
		if total+cost > maxLength {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
			}
			current = []string{word}
			total = cost
			continue
		}
		current = append(current, word)
		total += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
