package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIssueType(t *testing.T) {
	tests := []struct {
		in   string
		want IssueType
	}{
		{"type_error", IssueTypeError},
		{"  Formatting ", IssueFormatting},
		{"SECURITY", IssueSecurity},
		{"test_failure", IssueTestFailure},
		{"documentation", IssueDocumentation},
		{"bogus", IssueUnknown},
		{"", IssueUnknown},
		{"unknown", IssueUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIssueType(tt.in), "input %q", tt.in)
	}
}

func TestIssue_EmbeddingText(t *testing.T) {
	full := Issue{
		Type:     IssueTypeError,
		Message:  "cannot assign string to int",
		FilePath: "internal/handler.go",
		Line:     42,
		Stage:    "typecheck",
	}
	assert.Equal(t,
		"type_error cannot assign string to int stage:typecheck file:internal/handler.go:42",
		full.EmbeddingText())

	minimal := Issue{Type: IssueFormatting, Message: "line too long"}
	assert.Equal(t, "formatting line too long", minimal.EmbeddingText())

	noLine := Issue{Type: IssueDeadCode, Message: "unused func", FilePath: "a.go"}
	assert.Equal(t, "dead_code unused func file:a.go", noLine.EmbeddingText())
}

func TestStrategyKey(t *testing.T) {
	assert.Equal(t, "RefactoringAgent:extract_method", StrategyKey("RefactoringAgent", "extract_method"))

	a := FixAttempt{AgentUsed: "A", Strategy: "s"}
	assert.Equal(t, "A:s", a.StrategyKey())

	agent, strategy := splitStrategyKey("A:s")
	assert.Equal(t, "A", agent)
	assert.Equal(t, "s", strategy)

	agent, strategy = splitStrategyKey("bare")
	assert.Equal(t, "bare", agent)
	assert.Empty(t, strategy)
}
