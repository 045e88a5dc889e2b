package learning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixbank/internal/embeddings"
	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// Recommender tuning constants.
const (
	// MinSimilarityThreshold is the floor below which historical attempts
	// are not considered evidence.
	MinSimilarityThreshold = 0.3

	// MinSampleSize is the minimum number of successful similar attempts
	// required before recommending anything. Never guess from 0-1 points.
	MinSampleSize = 2

	// DefaultK is the default retrieval depth.
	DefaultK = 10

	// DefaultMinConfidence is the default confidence gate.
	DefaultMinConfidence = 0.4

	maxAlternatives = 3
)

// RecommendParams tunes a single Recommend call.
type RecommendParams struct {
	// K is the retrieval depth. Zero means DefaultK.
	K int

	// MinConfidence gates the result. Zero means DefaultMinConfidence.
	MinConfidence float64
}

// Recommender turns retrieved historical evidence into a strategy
// recommendation. It is a stateless request/response service: embed,
// retrieve, score, rank, gate, explain.
type Recommender struct {
	store    *AttemptStore
	provider embeddings.Provider
	logger   *logging.Logger
}

// NewRecommender creates a recommender over the given store. A nil provider
// triggers the one self-healing path in the system: the process-wide
// default provider is detected and used instead of failing.
func NewRecommender(store *AttemptStore, provider embeddings.Provider, logger *logging.Logger) *Recommender {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("recommender")
	if provider == nil {
		provider = embeddings.Default(logger)
	}
	return &Recommender{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// Provider exposes the active embedding provider so the orchestrator can
// embed once and reuse the vector for the post-attempt Record call.
func (r *Recommender) Provider() embeddings.Provider { return r.provider }

// Recommend runs with default parameters. See RecommendWith.
func (r *Recommender) Recommend(ctx context.Context, issue Issue) *StrategyRecommendation {
	return r.RecommendWith(ctx, issue, RecommendParams{})
}

// RecommendWith suggests the agent/strategy pair most likely to fix the
// issue, or nil when the evidence is insufficient or too weak. The two nil
// outcomes are not failures and are distinguished in logs: "insufficient
// evidence" (fewer than MinSampleSize successful similar attempts) versus
// "below confidence floor" (evidence exists but does not clear
// MinConfidence).
func (r *Recommender) RecommendWith(ctx context.Context, issue Issue, params RecommendParams) *StrategyRecommendation {
	k := params.K
	if k <= 0 {
		k = DefaultK
	}
	minConfidence := params.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	query := r.provider.Embed(ctx, issue)
	similar := r.store.FindSimilar(ctx, query, issue.Type, k, MinSimilarityThreshold)

	successes := make([]SimilarAttempt, 0, len(similar))
	for _, m := range similar {
		if m.Success {
			successes = append(successes, m)
		}
	}
	if len(successes) < MinSampleSize {
		recommendations.WithLabelValues("insufficient_evidence").Inc()
		r.logger.Debug(ctx, "no recommendation: insufficient evidence",
			zap.String("issue_type", string(issue.Type)),
			zap.Int("similar", len(similar)),
			zap.Int("successful", len(successes)),
			zap.Int("min_sample_size", MinSampleSize))
		return nil
	}

	// Accumulate evidence weight per strategy key. The steep logistic curve
	// centered at similarity 0.5 compresses weak matches toward 0 and
	// strong matches toward 1; historical confidence scales it further.
	byKey := make(map[string]*strategyEvidence)
	for _, m := range successes {
		e := byKey[m.StrategyKey()]
		if e == nil {
			e = &strategyEvidence{}
			byKey[m.StrategyKey()] = e
		}
		e.weight += sigmoid(5*(m.Similarity-0.5)) * (1 + m.Confidence)
		e.simSum += m.Similarity
		e.samples++
	}

	// Deterministic winner selection: highest accumulated weight, ties
	// broken by the lexically smallest key.
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	winner := keys[0]
	for _, key := range keys[1:] {
		if byKey[key].weight > byKey[winner].weight {
			winner = key
		}
	}
	won := byKey[winner]

	// Success rate is computed against every retrieved attempt for the
	// winning key, failures included, so the rate means something.
	var keyTotal, keySuccesses int
	for _, m := range similar {
		if m.StrategyKey() != winner {
			continue
		}
		keyTotal++
		if m.Success {
			keySuccesses++
		}
	}
	successRate := 0.0
	if keyTotal > 0 {
		successRate = float64(keySuccesses) / float64(keyTotal)
	}

	avgSimilarity := won.simSum / float64(won.samples)

	// Each attempt contributes at most sigmoid(+inf)*(1+1) = 2 weight, so
	// dividing by 2*samples maps the accumulated weight into [0,1].
	normalized := won.weight / (2 * float64(won.samples))
	sampleBoost := math.Min(0.1, 0.03*math.Log(float64(won.samples)))
	confidence := clamp01(0.6*normalized + 0.3*avgSimilarity + sampleBoost)

	if confidence < minConfidence {
		recommendations.WithLabelValues("low_confidence").Inc()
		r.logger.Debug(ctx, "no recommendation: below confidence floor",
			zap.String("issue_type", string(issue.Type)),
			zap.String("strategy_key", winner),
			zap.Float64("confidence", confidence),
			zap.Float64("min_confidence", minConfidence))
		return nil
	}

	alternatives := make([]AlternativeStrategy, 0, maxAlternatives)
	for _, key := range rankedKeys(keys, byKey, winner) {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, AlternativeStrategy{
			Key:   key,
			Score: byKey[key].weight,
		})
	}

	agent, strategy := splitStrategyKey(winner)
	rec := &StrategyRecommendation{
		ID:              uuid.New().String(),
		AgentStrategy:   winner,
		Confidence:      confidence,
		SimilarityScore: avgSimilarity,
		SuccessRate:     successRate,
		SampleCount:     won.samples,
		Alternatives:    alternatives,
		Reasoning: fmt.Sprintf(
			"%s with strategy %q succeeded in %d of %d similar %s attempts (%.0f%% success rate, avg similarity %.2f)",
			agent, strategy, keySuccesses, keyTotal, issue.Type,
			successRate*100, avgSimilarity),
	}

	recommendations.WithLabelValues("recommended").Inc()
	r.logger.Info(ctx, "strategy recommended",
		zap.String("issue_type", string(issue.Type)),
		zap.String("strategy_key", winner),
		zap.Float64("confidence", confidence),
		zap.Int("sample_count", won.samples))
	return rec
}

// TrackFeedback records whether a recommendation was accepted by a human or
// automation, persisting it alongside the attempt log.
func (r *Recommender) TrackFeedback(ctx context.Context, rec *StrategyRecommendation, accepted bool) {
	if rec == nil {
		return
	}
	r.logger.Info(ctx, "recommendation feedback",
		zap.String("strategy_key", rec.AgentStrategy),
		zap.Bool("accepted", accepted))
	if r.store != nil {
		r.store.RecordFeedback(ctx, rec, accepted)
	}
}

// strategyEvidence accumulates per-key scoring state during one Recommend.
type strategyEvidence struct {
	weight  float64
	simSum  float64
	samples int
}

// rankedKeys returns the non-winning keys ordered by accumulated weight
// descending, lexical on ties.
func rankedKeys(keys []string, byKey map[string]*strategyEvidence, winner string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != winner {
			out = append(out, key)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := byKey[out[i]].weight, byKey[out[j]].weight
		if wi != wj {
			return wi > wj
		}
		return out[i] < out[j]
	})
	return out
}

func splitStrategyKey(key string) (agent, strategy string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
