//go:build !cgo

package embeddings

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// ErrNeuralUnavailable is returned when the neural backend is not available
// (the binary was built without CGO support).
var ErrNeuralUnavailable = errors.New("neural embeddings: not available (binary built without CGO support)")

// NeuralConfig holds configuration for the neural provider.
type NeuralConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// NeuralProvider is a stub for non-CGO builds. Detect falls back to the
// hashing provider when construction fails.
type NeuralProvider struct{}

// NewNeuralProvider returns an error when CGO is not available.
func NewNeuralProvider(_ NeuralConfig, _ *logging.Logger) (*NeuralProvider, error) {
	return nil, ErrNeuralUnavailable
}

// Embed returns a zero dense vector when CGO is not available.
func (p *NeuralProvider) Embed(_ context.Context, _ Embeddable) Vector {
	return ZeroDense(DenseDimension)
}

// EmbedBatch returns zero dense vectors when CGO is not available.
func (p *NeuralProvider) EmbedBatch(_ context.Context, recs []Embeddable) []Vector {
	vectors := make([]Vector, len(recs))
	for i := range vectors {
		vectors[i] = ZeroDense(DenseDimension)
	}
	return vectors
}

// Similarity computes cosine similarity between two dense vectors.
func (p *NeuralProvider) Similarity(a, b Vector) (float64, error) {
	return a.Cosine(b)
}

// IsNeural reports true for interface symmetry; the stub is never selected
// because construction always fails.
func (p *NeuralProvider) IsNeural() bool { return true }

// Dimension returns the declared width.
func (p *NeuralProvider) Dimension() int { return DenseDimension }

// Close is a no-op when CGO is not available.
func (p *NeuralProvider) Close() error { return nil }
