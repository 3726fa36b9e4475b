package textsplitter

import "errors"

// DefaultChunkSize matches the input capacity of BART-class summarization models.
const DefaultChunkSize = 1024

// Metadata keys added to split documents.
const (
	MetadataChunkIndex = "chunk_index"
	MetadataChunkCount = "chunk_count"
)

var ErrInvalidChunkSize = errors.New("textsplitter: invalid chunk size")
