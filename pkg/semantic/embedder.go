package semantic

import (
	"context"
)

// Embedder converts text to a fixed-length embedding vector. It is the
// external collaborator boundary of this package: implementations wrap
// whatever model or API produces vectors.
type Embedder interface {
	// Embed converts one text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size. The zero-vector
	// fallback uses it to produce a vector of the expected shape.
	Dimensions() int
}

// EmbedderFunc adapts a function (plus a known dimensionality) to the
// Embedder interface.
type EmbedderFunc struct {
	Fn   func(ctx context.Context, text string) ([]float32, error)
	Dims int
}

// Embed calls the wrapped function.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.Fn(ctx, text)
}

// Dimensions returns the configured dimensionality.
func (f EmbedderFunc) Dimensions() int {
	return f.Dims
}
