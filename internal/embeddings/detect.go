package embeddings

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// Detect performs one-shot capability detection: it attempts to construct
// the neural provider and, on any failure (no CGO, missing ONNX runtime,
// model load error), permanently falls back to the hashing provider.
//
// The returned provider is immutable for the process lifetime; callers
// inject it where needed rather than reaching for globals.
func Detect(cfg NeuralConfig, logger *logging.Logger) Provider {
	if logger == nil {
		logger = logging.NewNop()
	}

	neural, err := NewNeuralProvider(cfg, logger)
	if err != nil {
		logger.Warn(context.Background(), "neural embedding backend unavailable, using statistical fallback",
			zap.String("model", cfg.Model),
			zap.Error(err))
		return NewHashingProvider(logger)
	}

	logger.Info(context.Background(), "neural embedding backend active",
		zap.String("model", cfg.Model),
		zap.Int("dimension", neural.Dimension()))
	return neural
}

var (
	defaultOnce     sync.Once
	defaultProvider Provider
)

// Default returns the process-wide provider, running capability detection
// exactly once on first use. The first caller's logger wins; subsequent
// loggers are ignored.
//
// This is the self-healing seam for callers that were constructed without
// an injected provider.
func Default(logger *logging.Logger) Provider {
	defaultOnce.Do(func() {
		defaultProvider = Detect(NeuralConfig{}, logger)
	})
	return defaultProvider
}
