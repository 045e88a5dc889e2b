package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixbank/internal/learning"
	"github.com/fyrsmithlabs/fixbank/internal/logging"
)

// readJSONInput reads JSON from the given file, or stdin when path is "-"
// or empty.
func readJSONInput(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRecommendCmd(configPath, dbPath *string) *cobra.Command {
	var issueFile string
	var k int
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a fixing strategy for an issue",
		Long:  "Reads an issue as JSON and prints the recommended agent/strategy with confidence, or reports that no recommendation can be made.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var issue learning.Issue
			if err := readJSONInput(issueFile, &issue); err != nil {
				return err
			}
			issue.Type = learning.ParseIssueType(string(issue.Type))

			a, err := newApp(*configPath, *dbPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if issue.Stage != "" {
				ctx = logging.WithStage(ctx, issue.Stage)
			}

			recommender := learning.NewRecommender(a.store, a.provider, a.logger)
			rec := recommender.RecommendWith(ctx, issue, learning.RecommendParams{
				K:             k,
				MinConfidence: minConfidence,
			})
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no recommendation: insufficient or weak evidence")
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().StringVar(&issueFile, "issue", "-", "issue JSON file ('-' for stdin)")
	cmd.Flags().IntVar(&k, "k", 0, "retrieval depth (default from config)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "confidence floor (default from config)")
	return cmd
}

// attemptInput is the record command's JSON payload.
type attemptInput struct {
	Issue     learning.Issue     `json:"issue"`
	Result    learning.FixResult `json:"result"`
	AgentUsed string             `json:"agent_used"`
	Strategy  string             `json:"strategy"`
	SessionID string             `json:"session_id,omitempty"`
}

func newRecordCmd(configPath, dbPath *string) *cobra.Command {
	var attemptFile string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the outcome of a fix attempt",
		Long:  "Reads an attempt (issue, result, agent, strategy) as JSON, embeds the issue, and appends it to the attempt log.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in attemptInput
			if err := readJSONInput(attemptFile, &in); err != nil {
				return err
			}
			if in.Issue.Message == "" {
				return learning.ErrEmptyMessage
			}
			if in.AgentUsed == "" {
				return learning.ErrEmptyAgent
			}
			if in.Strategy == "" {
				return learning.ErrEmptyStrategy
			}
			if in.Result.Confidence < 0 || in.Result.Confidence > 1 {
				return learning.ErrInvalidConfidence
			}
			in.Issue.Type = learning.ParseIssueType(string(in.Issue.Type))

			a, err := newApp(*configPath, *dbPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if in.SessionID != "" {
				ctx = logging.WithSessionID(ctx, in.SessionID)
			}

			embedding := a.provider.Embed(ctx, in.Issue)
			id := a.store.Record(ctx, in.Issue, in.Result, in.AgentUsed, in.Strategy, embedding, in.SessionID)
			if id == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "attempt not recorded (storage unavailable, see logs)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded attempt %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&attemptFile, "attempt", "-", "attempt JSON file ('-' for stdin)")
	return cmd
}

func newStatsCmd(configPath, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt log statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *dbPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newRebuildCmd(configPath, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the derived strategy effectiveness summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *dbPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.RebuildEffectiveness(cmd.Context()); err != nil {
				return err
			}
			rows, err := a.store.Effectiveness(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt effectiveness summary: %d strategies\n", len(rows))
			return nil
		},
	}
}
