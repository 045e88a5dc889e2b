//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	fastembed "github.com/anush008/fastembed-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// NeuralConfig holds configuration for the neural provider.
type NeuralConfig struct {
	// Model is the embedding model to use.
	// Supported: BAAI/bge-small-en-v1.5 (default),
	// sentence-transformers/all-MiniLM-L6-v2.
	Model string

	// CacheDir is the directory to cache model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// neuralModelMapping maps friendly model names to fastembed constants.
// Only 384-dimension models: the attempt store's dense column is sized for
// the bge-small class.
var neuralModelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

// NeuralProvider generates dense embeddings using a local ONNX model.
type NeuralProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	logger    *logging.Logger
	mu        sync.RWMutex
}

// NewNeuralProvider creates the neural provider. Construction fails when the
// ONNX runtime or model files are unavailable; callers fall back to the
// hashing provider in that case (see Detect).
func NewNeuralProvider(cfg NeuralConfig, logger *logging.Logger) (*NeuralProvider, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "BAAI/bge-small-en-v1.5"
	}
	model, ok := neuralModelMapping[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q (supported: BAAI/bge-small-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, modelName)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	// No progress bars: this runs inside an orchestrator, not a terminal.
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing neural backend: %w", err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}

	return &NeuralProvider{
		model:     flagEmbed,
		modelName: modelName,
		logger:    logger.Named("embeddings.neural"),
	}, nil
}

// Embed generates a dense vector for one record. On internal failure it
// returns a zero vector of the declared width and logs the error.
func (p *NeuralProvider) Embed(ctx context.Context, rec Embeddable) Vector {
	start := time.Now()

	p.mu.RLock()
	embedding, err := p.model.QueryEmbed(rec.EmbeddingText())
	p.mu.RUnlock()

	embedDuration.WithLabelValues("neural").Observe(time.Since(start).Seconds())
	if err != nil {
		embedRequests.WithLabelValues("neural", "degraded").Inc()
		p.logger.Warn(ctx, "neural embedding failed, substituting zero vector",
			zap.String("model", p.modelName),
			zap.Error(err))
		return ZeroDense(DenseDimension)
	}

	embedRequests.WithLabelValues("neural", "ok").Inc()
	return NewDense(embedding)
}

// EmbedBatch generates dense vectors for multiple records with the same
// per-item degraded semantics as Embed. Empty input returns empty output.
func (p *NeuralProvider) EmbedBatch(ctx context.Context, recs []Embeddable) []Vector {
	if len(recs) == 0 {
		return []Vector{}
	}

	texts := make([]string, len(recs))
	for i, rec := range recs {
		texts[i] = rec.EmbeddingText()
	}

	start := time.Now()
	p.mu.RLock()
	batch, err := p.model.PassageEmbed(texts, 256)
	p.mu.RUnlock()
	embedDuration.WithLabelValues("neural").Observe(time.Since(start).Seconds())

	vectors := make([]Vector, len(recs))
	if err != nil || len(batch) != len(recs) {
		embedRequests.WithLabelValues("neural", "degraded").Inc()
		p.logger.Warn(ctx, "neural batch embedding failed, substituting zero vectors",
			zap.String("model", p.modelName),
			zap.Int("batch_size", len(recs)),
			zap.Error(err))
		for i := range vectors {
			vectors[i] = ZeroDense(DenseDimension)
		}
		return vectors
	}

	embedRequests.WithLabelValues("neural", "ok").Inc()
	for i, emb := range batch {
		vectors[i] = NewDense(emb)
	}
	return vectors
}

// Similarity computes cosine similarity between two dense vectors.
func (p *NeuralProvider) Similarity(a, b Vector) (float64, error) {
	return a.Cosine(b)
}

// IsNeural reports true: this provider produces dense vectors.
func (p *NeuralProvider) IsNeural() bool { return true }

// Dimension returns the model's output width.
func (p *NeuralProvider) Dimension() int { return DenseDimension }

// Close releases the ONNX model.
func (p *NeuralProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}
