package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingProvider_StableAcrossCalls(t *testing.T) {
	// Two separately produced vectors must share one term-index space:
	// the same text embedded twice is identical, so cross-call cosine
	// comparison is well defined.
	p := NewHashingProvider(nil)
	ctx := context.Background()

	a := p.Embed(ctx, Text("unused variable x in handler.go"))
	b := p.Embed(ctx, Text("unused variable x in handler.go"))

	sim, err := p.Similarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 0.0001)
}

func TestHashingProvider_DistinctTextsDiffer(t *testing.T) {
	p := NewHashingProvider(nil)
	ctx := context.Background()

	a := p.Embed(ctx, Text("type_error cannot assign string to int field"))
	b := p.Embed(ctx, Text("formatting line exceeds maximum length"))

	sim, err := p.Similarity(a, b)
	require.NoError(t, err)
	assert.Less(t, sim, 0.9, "unrelated texts should not look nearly identical")
}

func TestHashingProvider_SharedTermsOverlap(t *testing.T) {
	p := NewHashingProvider(nil)
	ctx := context.Background()

	a := p.Embed(ctx, Text("test_failure assertion failed in TestStore"))
	b := p.Embed(ctx, Text("test_failure assertion failed in TestConfig"))
	c := p.Embed(ctx, Text("security hardcoded credential detected"))

	simAB, err := p.Similarity(a, b)
	require.NoError(t, err)
	simAC, err := p.Similarity(a, c)
	require.NoError(t, err)

	assert.Greater(t, simAB, simAC,
		"texts sharing most terms should be more similar than unrelated texts")
}

func TestHashingProvider_EmptyTextIsZeroVector(t *testing.T) {
	p := NewHashingProvider(nil)

	v := p.Embed(context.Background(), Text(""))
	assert.Equal(t, KindSparse, v.Kind())
	assert.True(t, v.IsZero())
}

func TestHashingProvider_ProducesSparseWithinWidth(t *testing.T) {
	p := NewHashingProvider(nil)

	v := p.Embed(context.Background(), Text("import_error missing module github.com/foo/bar"))
	assert.Equal(t, KindSparse, v.Kind())
	assert.Equal(t, SparseWidth, v.Dimension())
	assert.False(t, p.IsNeural())
	assert.Equal(t, SparseWidth, p.Dimension())
}

func TestHashingProvider_EmbedBatch(t *testing.T) {
	p := NewHashingProvider(nil)
	ctx := context.Background()

	assert.Empty(t, p.EmbedBatch(ctx, nil), "empty input returns empty output")

	vectors := p.EmbedBatch(ctx, []Embeddable{
		Text("dead_code unreachable branch"),
		Text("complexity cyclomatic complexity 25"),
	})
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.Equal(t, KindSparse, v.Kind())
	}

	// Batch output matches single-item output for the same record.
	single := p.Embed(ctx, Text("dead_code unreachable branch"))
	sim, err := p.Similarity(vectors[0], single)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 0.0001)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("Unused-variable: x_1 in handler.go!")
	assert.Equal(t, []string{"unused", "variable", "x", "1", "in", "handler", "go"}, tokens)
}
