// Fixbank is the strategy-learning engine for automated code fixing: it
// records fix-attempt outcomes with embeddings and recommends the strategy
// most likely to succeed for a new issue based on similar history.
//
// Usage:
//
//	# Recommend a strategy for an issue described as JSON
//	fixbank recommend --issue issue.json
//
//	# Record an attempt outcome after the orchestrator ran a fix
//	fixbank record --attempt attempt.json
//
//	# Inspect the attempt log
//	fixbank stats
//
//	# Recompute the derived per-strategy summary table
//	fixbank rebuild
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
