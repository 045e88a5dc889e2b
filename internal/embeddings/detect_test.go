package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

func TestDetect_AlwaysReturnsAProvider(t *testing.T) {
	// Whether or not the neural backend is available in this environment,
	// Detect must hand back a working provider.
	p := Detect(NeuralConfig{CacheDir: t.TempDir()}, logging.NewTestLogger().Logger)
	require.NotNil(t, p)
	defer p.Close()

	v := p.Embed(context.Background(), Text("security sql injection in query builder"))

	// The produced vector variant must agree with the provider's claim.
	if p.IsNeural() {
		assert.Equal(t, KindDense, v.Kind())
		assert.Equal(t, DenseDimension, v.Dimension())
	} else {
		assert.Equal(t, KindSparse, v.Kind())
		assert.Equal(t, SparseWidth, v.Dimension())
	}
}

func TestDetect_UnsupportedModelFallsBack(t *testing.T) {
	logger := logging.NewTestLogger()

	p := Detect(NeuralConfig{Model: "no-such-model"}, logger.Logger)
	require.NotNil(t, p)
	defer p.Close()

	assert.False(t, p.IsNeural(), "unknown model must fall back to the hashing provider")
	logger.AssertLogged(t, zapcore.WarnLevel, "statistical fallback")
}

func TestDefault_ReturnsSameProvider(t *testing.T) {
	a := Default(nil)
	b := Default(logging.NewTestLogger().Logger)
	require.NotNil(t, a)
	assert.Same(t, a, b, "Default must detect exactly once per process")
}
