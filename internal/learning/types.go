package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/fixbank/internal/embeddings"
)

// Common errors for learning operations.
var (
	ErrEmptyMessage      = errors.New("issue message cannot be empty")
	ErrEmptyAgent        = errors.New("agent name cannot be empty")
	ErrEmptyStrategy     = errors.New("strategy name cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
	ErrEmptyStorePath    = errors.New("attempt store path cannot be empty")
)

// IssueType classifies a quality finding by the class of tool that produced it.
type IssueType string

const (
	IssueFormatting    IssueType = "formatting"
	IssueTypeError     IssueType = "type_error"
	IssueSecurity      IssueType = "security"
	IssueTestFailure   IssueType = "test_failure"
	IssueComplexity    IssueType = "complexity"
	IssueDeadCode      IssueType = "dead_code"
	IssueDependency    IssueType = "dependency"
	IssueImportError   IssueType = "import_error"
	IssueDocumentation IssueType = "documentation"
	IssueUnknown       IssueType = "unknown"
)

// ParseIssueType maps a string tag onto a known issue type, defaulting to
// IssueUnknown for anything unrecognized.
func ParseIssueType(s string) IssueType {
	switch t := IssueType(strings.ToLower(strings.TrimSpace(s))); t {
	case IssueFormatting, IssueTypeError, IssueSecurity, IssueTestFailure,
		IssueComplexity, IssueDeadCode, IssueDependency, IssueImportError,
		IssueDocumentation:
		return t
	default:
		return IssueUnknown
	}
}

// Issue is a structured quality finding consumed from the orchestrator's
// tool-output parsers. Immutable once created.
type Issue struct {
	Type     IssueType `json:"type"`
	Message  string    `json:"message"`
	FilePath string    `json:"file_path,omitempty"`
	Line     int       `json:"line,omitempty"`
	Stage    string    `json:"stage,omitempty"`
}

// EmbeddingText renders the issue's salient fields as one feature string
// for the embedding provider.
func (i Issue) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(string(i.Type))
	b.WriteString(" ")
	b.WriteString(i.Message)
	if i.Stage != "" {
		b.WriteString(" stage:")
		b.WriteString(i.Stage)
	}
	if i.FilePath != "" {
		b.WriteString(" file:")
		b.WriteString(i.FilePath)
		if i.Line > 0 {
			fmt.Fprintf(&b, ":%d", i.Line)
		}
	}
	return b.String()
}

// FixResult is the outcome of one fix attempt, reported by the orchestrator.
type FixResult struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
}

// FixAttempt is one historical record of an agent/strategy tried against an
// issue. Append-only: rows are never mutated or deleted outside an explicit
// retention policy.
type FixAttempt struct {
	ID           string             `json:"id"`
	IssueType    IssueType          `json:"issue_type"`
	IssueMessage string             `json:"issue_message"`
	FilePath     string             `json:"file_path,omitempty"`
	Stage        string             `json:"stage,omitempty"`
	Embedding    embeddings.Vector  `json:"-"`
	AgentUsed    string             `json:"agent_used"`
	Strategy     string             `json:"strategy"`
	Success      bool               `json:"success"`
	Confidence   float64            `json:"confidence"`
	Timestamp    time.Time          `json:"timestamp"`
	SessionID    string             `json:"session_id,omitempty"`
}

// StrategyKey returns the "agent:strategy" pair identifying the approach.
func (a FixAttempt) StrategyKey() string {
	return StrategyKey(a.AgentUsed, a.Strategy)
}

// StrategyKey joins an agent and strategy into the canonical key form.
func StrategyKey(agent, strategy string) string {
	return agent + ":" + strategy
}

// SimilarAttempt pairs a retrieved attempt with its similarity to the query.
type SimilarAttempt struct {
	FixAttempt
	Similarity float64 `json:"similarity"`
}

// StrategyEffectiveness is the derived per-strategy summary, rebuilt
// wholesale from the attempt log. Safe to discard and recompute at any time.
type StrategyEffectiveness struct {
	Key                string     `json:"key"`
	AgentUsed          string     `json:"agent_used"`
	Strategy           string     `json:"strategy"`
	TotalAttempts      int        `json:"total_attempts"`
	SuccessfulAttempts int        `json:"successful_attempts"`
	SuccessRate        float64    `json:"success_rate"`
	LastAttempted      time.Time  `json:"last_attempted"`
	LastSuccessful     *time.Time `json:"last_successful,omitempty"`
}

// Statistics summarizes the whole attempt log.
type Statistics struct {
	TotalAttempts      int                     `json:"total_attempts"`
	SuccessfulAttempts int                     `json:"successful_attempts"`
	OverallSuccessRate float64                 `json:"overall_success_rate"`
	TopStrategies      []StrategyEffectiveness `json:"top_strategies"`
}

// AlternativeStrategy is a non-winning candidate kept for context.
type AlternativeStrategy struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// StrategyRecommendation is produced fresh per Recommend call, never
// persisted. Reasoning is user-facing explanation text, not machine-parsed.
type StrategyRecommendation struct {
	ID              string                `json:"id"`
	AgentStrategy   string                `json:"agent_strategy"`
	Confidence      float64               `json:"confidence"`
	SimilarityScore float64               `json:"similarity_score"`
	SuccessRate     float64               `json:"success_rate"`
	SampleCount     int                   `json:"sample_count"`
	Alternatives    []AlternativeStrategy `json:"alternatives,omitempty"`
	Reasoning       string                `json:"reasoning"`
}
