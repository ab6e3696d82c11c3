// Package embedding turns canonical records into vector points.
//
// A TextEmbedder maps strings to vectors (Gemini, OpenAI). PointEmbedder
// selects the text of each record, embeds the whole batch in one call and
// assembles the points with their payload. A batch is all-or-nothing: any
// failure returns no points.
package embedding

import (
	"context"
	"errors"
)

var (
	ErrCountMismatch     = errors.New("embedder returned wrong number of vectors")
	ErrDimensionMismatch = errors.New("embedding has unexpected dimensions")
	ErrEmptyVector       = errors.New("embedder returned empty vector")
)

// TextEmbedder computes one vector per input text, in input order.
// Implementations must be safe for concurrent use.
type TextEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
