package textsplitter

import "fmt"

// ValidateChunkSize reports whether size is usable as a chunk budget.
func ValidateChunkSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive: %d", ErrInvalidChunkSize, size)
	}
	return nil
}
