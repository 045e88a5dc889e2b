package embeddings

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// HashingProvider is the statistical fallback: a signed feature-hashing
// vectorizer over a fixed SparseWidth-bucket space.
//
// Every vector it produces shares the same term-index space, so sparse
// vectors from different calls (and different processes) are directly
// comparable by cosine similarity. This is deliberate: a per-document
// TF-IDF refit would assign term indices per call and make stored sparse
// vectors mutually incomparable.
type HashingProvider struct {
	width  uint32
	logger *logging.Logger
}

// NewHashingProvider creates the fallback provider.
func NewHashingProvider(logger *logging.Logger) *HashingProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HashingProvider{
		width:  SparseWidth,
		logger: logger.Named("embeddings.hashing"),
	}
}

// Embed hashes the record's tokens into the fixed feature space.
// A record with no tokens yields an empty (zero) sparse vector.
func (p *HashingProvider) Embed(ctx context.Context, rec Embeddable) Vector {
	start := time.Now()
	v := p.vectorize(rec.EmbeddingText())
	embedDuration.WithLabelValues("hashing").Observe(time.Since(start).Seconds())
	embedRequests.WithLabelValues("hashing", "ok").Inc()
	return v
}

// EmbedBatch vectorizes each record independently. Empty input returns
// empty output.
func (p *HashingProvider) EmbedBatch(ctx context.Context, recs []Embeddable) []Vector {
	vectors := make([]Vector, len(recs))
	for i, rec := range recs {
		vectors[i] = p.Embed(ctx, rec)
	}
	return vectors
}

// Similarity computes cosine similarity between two sparse vectors.
func (p *HashingProvider) Similarity(a, b Vector) (float64, error) {
	return a.Cosine(b)
}

// IsNeural reports false: this provider produces sparse vectors.
func (p *HashingProvider) IsNeural() bool { return false }

// Dimension returns the fixed feature-space width.
func (p *HashingProvider) Dimension() int { return int(p.width) }

// Close is a no-op: the provider holds no resources.
func (p *HashingProvider) Close() error { return nil }

// vectorize accumulates signed term frequencies into hash buckets.
// The hash sign spreads colliding terms across +/- so collisions tend to
// cancel instead of compounding.
func (p *HashingProvider) vectorize(text string) Vector {
	buckets := make(map[uint32]float32)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		idx := sum % p.width
		if sum&0x80000000 != 0 {
			buckets[idx]--
		} else {
			buckets[idx]++
		}
	}

	indices := make([]uint32, 0, len(buckets))
	for idx, val := range buckets {
		if val != 0 {
			indices = append(indices, idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = buckets[idx]
	}

	v, err := NewSparse(indices, values, p.width)
	if err != nil {
		// Unreachable: indices are produced modulo width.
		return Vector{kind: KindSparse, width: p.width}
	}
	return v
}

// tokenize lowercases and splits on any non-alphanumeric rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
