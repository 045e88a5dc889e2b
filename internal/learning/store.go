package learning

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/fixbank/internal/embeddings"
	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

// fallbackSchema is the minimal hard-coded schema used when the bundled
// schema resource cannot be read. It omits indexes and the feedback table
// but keeps the store functional.
const fallbackSchema = `
CREATE TABLE IF NOT EXISTS fix_attempts (
    id TEXT PRIMARY KEY,
    issue_type TEXT NOT NULL,
    issue_message TEXT NOT NULL,
    file_path TEXT,
    stage TEXT NOT NULL DEFAULT '',
    embedding_dense BLOB,
    embedding_sparse BLOB,
    agent_used TEXT NOT NULL,
    strategy TEXT NOT NULL,
    success INTEGER NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    session_id TEXT
);
CREATE TABLE IF NOT EXISTS strategy_effectiveness (
    strategy_key TEXT PRIMARY KEY,
    agent_used TEXT NOT NULL,
    strategy TEXT NOT NULL,
    total_attempts INTEGER NOT NULL DEFAULT 0,
    successful_attempts INTEGER NOT NULL DEFAULT 0,
    success_rate REAL NOT NULL DEFAULT 0,
    last_attempted DATETIME,
    last_successful DATETIME
);
CREATE TABLE IF NOT EXISTS recommendation_feedback (
    id TEXT PRIMARY KEY,
    recommendation_id TEXT NOT NULL,
    strategy_key TEXT NOT NULL,
    accepted INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);
`

// AttemptStore is the durable, queryable log of fix attempts, backed by one
// SQLite file.
//
// database/sql hands each calling goroutine its own pooled connection, and
// WAL mode lets SQLite serialize concurrent writers itself, so no
// application-level locking is layered on top.
type AttemptStore struct {
	db     *sql.DB
	path   string
	logger *logging.Logger
}

// OpenStore opens (or creates) the attempt store at path. The schema is
// created from the bundled schema.sql; if that resource cannot be read, a
// minimal built-in schema is used instead of failing to start.
func OpenStore(path string, logger *logging.Logger) (*AttemptStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("attemptstore")

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrEmptyStorePath
	}
	p := filepath.Clean(trimmed)
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := "file:" + url.PathEscape(p) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &AttemptStore{db: db, path: p, logger: logger}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *AttemptStore) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil || len(schema) == 0 {
		s.logger.Warn(context.Background(), "bundled schema resource missing, using built-in fallback schema",
			zap.Error(err))
		schema = []byte(fallbackSchema)
	}
	_, err = s.db.Exec(string(schema))
	return err
}

// Close releases the store's connections.
func (s *AttemptStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the store.
func (s *AttemptStore) Path() string { return s.path }

// Record appends one fix attempt and commits immediately, so the row is
// visible to subsequent reads. Any storage error is logged and swallowed: a
// storage outage must never abort the caller's fix-attempt workflow. The
// returned ID is empty when the write was dropped.
func (s *AttemptStore) Record(ctx context.Context, issue Issue, result FixResult, agentUsed, strategy string, embedding embeddings.Vector, sessionID string) string {
	id := uuid.New().String()

	confidence := result.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	var dense, sparse []byte
	switch embedding.Kind() {
	case embeddings.KindDense:
		dense = embedding.EncodeDense()
	case embeddings.KindSparse:
		sparse = embedding.EncodeSparse()
	default:
		s.logger.Warn(ctx, "dropping fix attempt with no embedding",
			zap.String("issue_type", string(issue.Type)),
			zap.String("strategy_key", StrategyKey(agentUsed, strategy)))
		attemptsRecorded.WithLabelValues("dropped").Inc()
		return ""
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fix_attempts (
			id, issue_type, issue_message, file_path, stage,
			embedding_dense, embedding_sparse,
			agent_used, strategy, success, confidence, created_at, session_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(issue.Type), issue.Message, nullString(issue.FilePath), issue.Stage,
		dense, sparse,
		agentUsed, strategy, boolToInt(result.Success), confidence,
		time.Now().UTC(), nullString(sessionID),
	)
	if err != nil {
		s.logger.Error(ctx, "failed to record fix attempt, continuing without persistence",
			zap.String("issue_type", string(issue.Type)),
			zap.String("strategy_key", StrategyKey(agentUsed, strategy)),
			zap.Error(err))
		attemptsRecorded.WithLabelValues("error").Inc()
		return ""
	}

	attemptsRecorded.WithLabelValues("ok").Inc()
	return id
}

// FindSimilar scans stored attempts and returns the k nearest by cosine
// similarity, sorted descending, skipping rows below minSimilarity and rows
// whose embedding variant differs from the query's.
//
// An empty issueType disables the type prefilter. Storage errors are logged
// and yield an empty result set. This is a linear scan with no secondary
// vector index, which is fine for moderate history sizes.
func (s *AttemptStore) FindSimilar(ctx context.Context, query embeddings.Vector, issueType IssueType, k int, minSimilarity float64) []SimilarAttempt {
	if k <= 0 {
		k = 10
	}
	start := time.Now()
	defer func() {
		similarScanDuration.Observe(time.Since(start).Seconds())
	}()

	q := `
		SELECT id, issue_type, issue_message, file_path, stage,
		       embedding_dense, embedding_sparse,
		       agent_used, strategy, success, confidence, created_at, session_id
		FROM fix_attempts`
	var args []any
	if issueType != "" {
		q += " WHERE issue_type = ?"
		args = append(args, string(issueType))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.Error(ctx, "similarity scan failed, returning no matches",
			zap.String("issue_type", string(issueType)),
			zap.Error(err))
		return []SimilarAttempt{}
	}
	defer rows.Close()

	matches := make([]SimilarAttempt, 0, k)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable attempt row", zap.Error(err))
			continue
		}
		// Rows of the other variant are not comparable to the query;
		// skip them rather than reporting a bogus similarity.
		if attempt.Embedding.Kind() != query.Kind() {
			continue
		}
		sim, err := query.Cosine(attempt.Embedding)
		if err != nil {
			s.logger.Warn(ctx, "skipping incomparable attempt row",
				zap.String("attempt_id", attempt.ID),
				zap.Error(err))
			continue
		}
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, SimilarAttempt{FixAttempt: attempt, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error(ctx, "similarity scan interrupted", zap.Error(err))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// RecommendFromStore is the minimal convenience path: it retrieves similar
// attempts, keeps only successes, and returns the strategy key with the
// highest accumulated similarity plus the average similarity of its
// supporters as a confidence. Returns ok=false when no successful matches
// exist. Callers that want reasoning and alternatives use the Recommender.
func (s *AttemptStore) RecommendFromStore(ctx context.Context, issue Issue, query embeddings.Vector, k int) (key string, confidence float64, ok bool) {
	similar := s.FindSimilar(ctx, query, issue.Type, k, MinSimilarityThreshold)

	type tally struct {
		total float64
		count int
	}
	tallies := make(map[string]*tally)
	for _, m := range similar {
		if !m.Success {
			continue
		}
		sk := m.StrategyKey()
		t := tallies[sk]
		if t == nil {
			t = &tally{}
			tallies[sk] = t
		}
		t.total += m.Similarity
		t.count++
	}
	if len(tallies) == 0 {
		return "", 0, false
	}

	// Lexically smallest key wins ties, so results are reproducible.
	keys := make([]string, 0, len(tallies))
	for sk := range tallies {
		keys = append(keys, sk)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, sk := range keys[1:] {
		if tallies[sk].total > tallies[best].total {
			best = sk
		}
	}

	t := tallies[best]
	return best, clamp01(t.total / float64(t.count)), true
}

// RebuildEffectiveness recomputes the strategy_effectiveness table wholesale
// from the attempt log. Idempotent; safe to call at any frequency.
func (s *AttemptStore) RebuildEffectiveness(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM strategy_effectiveness`); err != nil {
		return fmt.Errorf("clearing summary: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO strategy_effectiveness (
			strategy_key, agent_used, strategy,
			total_attempts, successful_attempts, success_rate,
			last_attempted, last_successful
		)
		SELECT agent_used || ':' || strategy,
		       agent_used,
		       strategy,
		       COUNT(*),
		       SUM(success),
		       CAST(SUM(success) AS REAL) / COUNT(*),
		       MAX(created_at),
		       MAX(CASE WHEN success = 1 THEN created_at END)
		FROM fix_attempts
		GROUP BY agent_used, strategy`)
	if err != nil {
		return fmt.Errorf("rebuilding summary: %w", err)
	}

	return tx.Commit()
}

// Effectiveness returns the current derived summary rows, most effective
// first.
func (s *AttemptStore) Effectiveness(ctx context.Context) ([]StrategyEffectiveness, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy_key, agent_used, strategy,
		       total_attempts, successful_attempts, success_rate,
		       last_attempted, last_successful
		FROM strategy_effectiveness
		ORDER BY success_rate DESC, total_attempts DESC, strategy_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying effectiveness: %w", err)
	}
	defer rows.Close()

	var out []StrategyEffectiveness
	for rows.Next() {
		var e StrategyEffectiveness
		var lastAttempted, lastSuccessful sql.NullTime
		if err := rows.Scan(&e.Key, &e.AgentUsed, &e.Strategy,
			&e.TotalAttempts, &e.SuccessfulAttempts, &e.SuccessRate,
			&lastAttempted, &lastSuccessful); err != nil {
			return nil, fmt.Errorf("scanning effectiveness row: %w", err)
		}
		if lastAttempted.Valid {
			e.LastAttempted = lastAttempted.Time
		}
		if lastSuccessful.Valid {
			t := lastSuccessful.Time
			e.LastSuccessful = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Statistics summarizes the attempt log: totals, overall success rate, and
// the five most effective strategies (computed live, not from the derived
// table, so it is always current).
func (s *AttemptStore) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0) FROM fix_attempts`,
	).Scan(&stats.TotalAttempts, &stats.SuccessfulAttempts)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting attempts: %w", err)
	}
	if stats.TotalAttempts > 0 {
		stats.OverallSuccessRate = float64(stats.SuccessfulAttempts) / float64(stats.TotalAttempts)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_used || ':' || strategy,
		       agent_used,
		       strategy,
		       COUNT(*),
		       SUM(success),
		       CAST(SUM(success) AS REAL) / COUNT(*),
		       MAX(created_at),
		       MAX(CASE WHEN success = 1 THEN created_at END)
		FROM fix_attempts
		GROUP BY agent_used, strategy
		ORDER BY SUM(success) DESC, COUNT(*) DESC, agent_used ASC, strategy ASC
		LIMIT 5`)
	if err != nil {
		return Statistics{}, fmt.Errorf("querying top strategies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e StrategyEffectiveness
		var lastAttempted, lastSuccessful sql.NullTime
		if err := rows.Scan(&e.Key, &e.AgentUsed, &e.Strategy,
			&e.TotalAttempts, &e.SuccessfulAttempts, &e.SuccessRate,
			&lastAttempted, &lastSuccessful); err != nil {
			return Statistics{}, fmt.Errorf("scanning strategy row: %w", err)
		}
		if lastAttempted.Valid {
			e.LastAttempted = lastAttempted.Time
		}
		if lastSuccessful.Valid {
			t := lastSuccessful.Time
			e.LastSuccessful = &t
		}
		stats.TopStrategies = append(stats.TopStrategies, e)
	}
	return stats, rows.Err()
}

// RecordFeedback persists whether a recommendation was accepted. Storage
// errors are logged and swallowed, matching Record.
func (s *AttemptStore) RecordFeedback(ctx context.Context, rec *StrategyRecommendation, accepted bool) {
	if rec == nil {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_feedback (id, recommendation_id, strategy_key, accepted, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), rec.ID, rec.AgentStrategy, boolToInt(accepted), time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error(ctx, "failed to record recommendation feedback",
			zap.String("strategy_key", rec.AgentStrategy),
			zap.Bool("accepted", accepted),
			zap.Error(err))
	}
}

// scanAttempt reconstructs a FixAttempt, including its embedding in the
// original variant, from the mutually exclusive dense/sparse columns.
func scanAttempt(rows *sql.Rows) (FixAttempt, error) {
	var a FixAttempt
	var issueType string
	var filePath, sessionID sql.NullString
	var dense, sparse []byte
	var success int
	var createdAt sql.NullTime

	if err := rows.Scan(&a.ID, &issueType, &a.IssueMessage, &filePath, &a.Stage,
		&dense, &sparse,
		&a.AgentUsed, &a.Strategy, &success, &a.Confidence, &createdAt, &sessionID); err != nil {
		return FixAttempt{}, err
	}

	a.IssueType = IssueType(issueType)
	a.FilePath = filePath.String
	a.SessionID = sessionID.String
	a.Success = success != 0
	if createdAt.Valid {
		a.Timestamp = createdAt.Time
	}

	switch {
	case len(dense) > 0 && len(sparse) == 0:
		v, err := embeddings.DecodeDense(dense)
		if err != nil {
			return FixAttempt{}, fmt.Errorf("attempt %s: %w", a.ID, err)
		}
		a.Embedding = v
	case len(sparse) > 0 && len(dense) == 0:
		v, err := embeddings.DecodeSparse(sparse)
		if err != nil {
			return FixAttempt{}, fmt.Errorf("attempt %s: %w", a.ID, err)
		}
		a.Embedding = v
	default:
		return FixAttempt{}, fmt.Errorf("attempt %s: %w: embedding columns are not mutually exclusive", a.ID, embeddings.ErrMalformedVector)
	}

	return a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
