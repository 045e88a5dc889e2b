// Package learning is the strategy-learning core of fixbank: a durable log
// of historical fix attempts with k-nearest-neighbor retrieval, and a
// recommender that turns retrieved evidence into a strategy suggestion with
// a calibrated confidence.
//
// The orchestrator calls Recommender.Recommend before attempting a fix and
// AttemptStore.Record after, closing the feedback loop. Neither call ever
// propagates a storage or embedding failure: degraded subsystems produce a
// nil recommendation or a dropped write, both logged, so this engine can
// never abort a fix-attempt workflow.
package learning
