package textsplitter

import (
	"context"

	"github.com/sevigo/docsum/schema"
)

type TextSplitter interface {
	SplitText(ctx context.Context, text string) ([]string, error)
	SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error)
}
