package learning

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fixbank/internal/embeddings"
	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

func newTestStore(t *testing.T) *AttemptStore {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "attempts.db"), logging.NewTestLogger().Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// unitDense returns a 4-dim dense unit vector pointing along axis.
func unitDense(axis int) embeddings.Vector {
	v := make([]float32, 4)
	v[axis] = 1
	return embeddings.NewDense(v)
}

// blend returns a normalized mix of two axes, giving a controllable cosine
// similarity against unitDense(a): cos = wa / sqrt(wa^2+wb^2).
func blend(a, b int, wa, wb float32) embeddings.Vector {
	v := make([]float32, 4)
	v[a] = wa
	v[b] = wb
	return embeddings.NewDense(v)
}

func testIssue(msg string) Issue {
	return Issue{
		Type:    IssueTypeError,
		Message: msg,
		Stage:   "typecheck",
	}
}

func TestRecordAndFindSimilar_IdenticalEmbeddingIsTopResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	vec := unitDense(0)
	id := store.Record(ctx, testIssue("cannot assign"), FixResult{Success: true, Confidence: 0.9},
		"RefactoringAgent", "extract_method", vec, "sess-1")
	require.NotEmpty(t, id)

	matches := store.FindSimilar(ctx, vec, IssueTypeError, 10, 0.3)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
	assert.Equal(t, "RefactoringAgent:extract_method", matches[0].StrategyKey())
	assert.True(t, matches[0].Success)
	assert.InDelta(t, 0.9, matches[0].Confidence, 0.0001)
	assert.Equal(t, "sess-1", matches[0].SessionID)
	assert.False(t, matches[0].Timestamp.IsZero())
}

func TestFindSimilar_RespectsSimilarityFloor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// cos with axis 0: 1.0, ~0.707, 0.0
	store.Record(ctx, testIssue("a"), FixResult{Success: true}, "A", "s", unitDense(0), "")
	store.Record(ctx, testIssue("b"), FixResult{Success: true}, "A", "s", blend(0, 1, 1, 1), "")
	store.Record(ctx, testIssue("c"), FixResult{Success: true}, "A", "s", unitDense(1), "")

	matches := store.FindSimilar(ctx, unitDense(0), IssueTypeError, 10, 0.5)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Similarity, 0.5)
	}
}

func TestFindSimilar_CapsAtKAndSortsDescending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Record(ctx, testIssue("a"), FixResult{Success: true}, "A", "s", unitDense(0), "")
	store.Record(ctx, testIssue("b"), FixResult{Success: true}, "A", "s", blend(0, 1, 3, 1), "")
	store.Record(ctx, testIssue("c"), FixResult{Success: true}, "A", "s", blend(0, 1, 2, 1), "")
	store.Record(ctx, testIssue("d"), FixResult{Success: true}, "A", "s", blend(0, 1, 1, 1), "")

	matches := store.FindSimilar(ctx, unitDense(0), IssueTypeError, 3, 0.0)
	require.Len(t, matches, 3)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity,
			"results must be non-increasing in similarity")
	}
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
}

func TestFindSimilar_FiltersByIssueType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Record(ctx, Issue{Type: IssueTypeError, Message: "a"}, FixResult{Success: true}, "A", "s", unitDense(0), "")
	store.Record(ctx, Issue{Type: IssueFormatting, Message: "b"}, FixResult{Success: true}, "A", "s", unitDense(0), "")

	matches := store.FindSimilar(ctx, unitDense(0), IssueTypeError, 10, 0.0)
	require.Len(t, matches, 1)
	assert.Equal(t, IssueTypeError, matches[0].IssueType)

	// Empty type disables the prefilter.
	matches = store.FindSimilar(ctx, unitDense(0), "", 10, 0.0)
	assert.Len(t, matches, 2)
}

func TestFindSimilar_SkipsOtherVariantRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sparse, err := embeddings.NewSparse([]uint32{1, 2}, []float32{1, 1}, embeddings.SparseWidth)
	require.NoError(t, err)

	store.Record(ctx, testIssue("dense row"), FixResult{Success: true}, "A", "s", unitDense(0), "")
	store.Record(ctx, testIssue("sparse row"), FixResult{Success: true}, "B", "s", sparse, "")

	// A dense query must never be compared against sparse-only rows.
	matches := store.FindSimilar(ctx, unitDense(0), IssueTypeError, 10, 0.0)
	require.Len(t, matches, 1)
	assert.Equal(t, "A", matches[0].AgentUsed)

	// And symmetrically for a sparse query.
	matches = store.FindSimilar(ctx, sparse, IssueTypeError, 10, 0.0)
	require.Len(t, matches, 1)
	assert.Equal(t, "B", matches[0].AgentUsed)
}

func TestRecord_RoundTripsSparseVariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sparse, err := embeddings.NewSparse([]uint32{3, 9, 40}, []float32{1, -2, 0.5}, embeddings.SparseWidth)
	require.NoError(t, err)

	id := store.Record(ctx, testIssue("sparse"), FixResult{Success: false, Confidence: 0.2}, "A", "s", sparse, "")
	require.NotEmpty(t, id)

	matches := store.FindSimilar(ctx, sparse, IssueTypeError, 10, 0.0)
	require.Len(t, matches, 1)
	assert.Equal(t, embeddings.KindSparse, matches[0].Embedding.Kind())
	assert.InDelta(t, 1.0, matches[0].Similarity, 0.0001)
}

func TestRecord_DropsAttemptWithoutEmbedding(t *testing.T) {
	store := newTestStore(t)

	id := store.Record(context.Background(), testIssue("no vector"), FixResult{}, "A", "s", embeddings.Vector{}, "")
	assert.Empty(t, id)

	matches := store.FindSimilar(context.Background(), unitDense(0), IssueTypeError, 10, 0.0)
	assert.Empty(t, matches)
}

func TestRecord_ClampsConfidence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Record(ctx, testIssue("hot"), FixResult{Success: true, Confidence: 1.7}, "A", "s", unitDense(0), "")

	matches := store.FindSimilar(ctx, unitDense(0), IssueTypeError, 10, 0.0)
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Confidence)
}

func TestRecommendFromStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	issue := testIssue("q")

	// No rows at all.
	_, _, ok := store.RecommendFromStore(ctx, issue, unitDense(0), 10)
	assert.False(t, ok)

	// Failures only: still no recommendation.
	store.Record(ctx, issue, FixResult{Success: false}, "A", "fail_only", unitDense(0), "")
	_, _, ok = store.RecommendFromStore(ctx, issue, unitDense(0), 10)
	assert.False(t, ok)

	// A success below the similarity floor is not evidence.
	store.Record(ctx, issue, FixResult{Success: true}, "C", "too_far", blend(0, 1, 1, 5), "")
	_, _, ok = store.RecommendFromStore(ctx, issue, unitDense(0), 10)
	assert.False(t, ok)

	// One sufficiently similar success flips it.
	store.Record(ctx, issue, FixResult{Success: true}, "B", "works", unitDense(0), "")
	key, confidence, ok := store.RecommendFromStore(ctx, issue, unitDense(0), 10)
	require.True(t, ok)
	assert.Equal(t, "B:works", key)
	assert.InDelta(t, 1.0, confidence, 0.0001)
}

func TestRebuildEffectiveness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Record(ctx, testIssue("a"), FixResult{Success: true}, "A", "s1", unitDense(0), "")
	store.Record(ctx, testIssue("b"), FixResult{Success: false}, "A", "s1", unitDense(0), "")
	store.Record(ctx, testIssue("c"), FixResult{Success: true}, "B", "s2", unitDense(1), "")

	require.NoError(t, store.RebuildEffectiveness(ctx))

	rows, err := store.Effectiveness(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byKey := make(map[string]StrategyEffectiveness, len(rows))
	for _, e := range rows {
		byKey[e.Key] = e
	}

	a := byKey["A:s1"]
	assert.Equal(t, 2, a.TotalAttempts)
	assert.Equal(t, 1, a.SuccessfulAttempts)
	assert.InDelta(t, 0.5, a.SuccessRate, 0.0001)
	assert.False(t, a.LastAttempted.IsZero())
	require.NotNil(t, a.LastSuccessful)

	b := byKey["B:s2"]
	assert.Equal(t, 1, b.TotalAttempts)
	assert.InDelta(t, 1.0, b.SuccessRate, 0.0001)

	// Rebuild is idempotent: running again yields the same rows.
	require.NoError(t, store.RebuildEffectiveness(ctx))
	again, err := store.Effectiveness(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(rows), len(again))
}

func TestStatistics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttempts)
	assert.Zero(t, stats.OverallSuccessRate)

	store.Record(ctx, testIssue("a"), FixResult{Success: true}, "A", "s1", unitDense(0), "")
	store.Record(ctx, testIssue("b"), FixResult{Success: true}, "A", "s1", unitDense(0), "")
	store.Record(ctx, testIssue("c"), FixResult{Success: false}, "B", "s2", unitDense(1), "")

	stats, err = store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAttempts)
	assert.Equal(t, 2, stats.SuccessfulAttempts)
	assert.InDelta(t, 2.0/3.0, stats.OverallSuccessRate, 0.0001)
	require.NotEmpty(t, stats.TopStrategies)
	assert.Equal(t, "A:s1", stats.TopStrategies[0].Key)
}

func TestRecordFeedback_Persists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &StrategyRecommendation{ID: "rec-1", AgentStrategy: "A:s"}
	store.RecordFeedback(ctx, rec, true)
	store.RecordFeedback(ctx, nil, true) // no-op, must not panic

	var count int
	var accepted int
	err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(accepted), 0) FROM recommendation_feedback WHERE strategy_key = ?`,
		"A:s").Scan(&count, &accepted)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, accepted)
}

func TestFallbackSchema_KeepsStoreFunctional(t *testing.T) {
	// The minimal built-in schema must be valid SQL that supports the
	// write path, so a missing bundled resource never blocks startup.
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "fallback.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(fallbackSchema)
	require.NoError(t, err)

	store := &AttemptStore{db: db, logger: logging.NewTestLogger().Logger}
	id := store.Record(context.Background(), testIssue("a"), FixResult{Success: true}, "A", "s", unitDense(0), "")
	assert.NotEmpty(t, id)

	matches := store.FindSimilar(context.Background(), unitDense(0), IssueTypeError, 10, 0.0)
	assert.Len(t, matches, 1)
}

func TestOpenStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "attempts.db")
	store, err := OpenStore(path, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, path, store.Path())
}

func TestOpenStore_EmptyPathFails(t *testing.T) {
	_, err := OpenStore("  ", nil)
	assert.ErrorIs(t, err, ErrEmptyStorePath)
}
