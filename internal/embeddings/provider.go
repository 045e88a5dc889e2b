package embeddings

import (
	"context"
	"errors"
)

// Common errors for provider construction.
var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embeddable is anything that can render itself as a feature string for
// embedding. Issue records implement this by concatenating their salient
// fields (type, message, stage, file path).
type Embeddable interface {
	EmbeddingText() string
}

// Text is a plain-string Embeddable, mostly for tests and ad hoc queries.
type Text string

// EmbeddingText returns the string itself.
func (t Text) EmbeddingText() string { return string(t) }

// Provider generates embedding vectors from records.
//
// Embed and EmbedBatch never return an error: internal backend failures are
// logged and substituted with a zero vector of the provider's declared width
// so a degraded embedding backend cannot abort a fix-attempt workflow.
type Provider interface {
	// Embed produces a vector for one record.
	Embed(ctx context.Context, rec Embeddable) Vector

	// EmbedBatch produces one vector per record, in order. Empty input
	// yields empty output.
	EmbedBatch(ctx context.Context, recs []Embeddable) []Vector

	// Similarity computes cosine similarity between two vectors produced
	// by this provider. Cross-kind comparison is an error.
	Similarity(a, b Vector) (float64, error)

	// IsNeural reports whether the neural backend is active. Callers use
	// this to reason about precision expectations and the vector variant
	// Embed produces.
	IsNeural() bool

	// Dimension returns the declared width of produced vectors.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}
