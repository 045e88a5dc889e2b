// Package embeddings turns quality issues into numeric vectors for
// similarity retrieval.
//
// Two providers share one interface: a neural provider backed by a local
// ONNX model (fixed 384-dimension dense vectors) and a statistical hashing
// provider (sparse vectors over a fixed 100-bucket feature space). Exactly
// one is selected per process via Detect: the neural backend is tried once
// at startup and any construction failure falls back to the hashing
// provider for the lifetime of the process.
//
// Embedding generation never fails from the caller's point of view. When
// the neural backend errors internally, Embed returns a zero vector of the
// declared width and logs the failure (degraded mode).
package embeddings
