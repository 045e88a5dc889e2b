package embeddings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Common errors for vector operations.
var (
	// ErrKindMismatch indicates an attempt to compare vectors of different
	// variants (dense vs sparse). This is a programming error, never a
	// silent zero similarity.
	ErrKindMismatch = errors.New("embedding vectors have different kinds")

	// ErrDimensionMismatch indicates two dense vectors of different widths.
	ErrDimensionMismatch = errors.New("embedding vectors have different dimensions")

	// ErrMalformedVector indicates a serialized vector that cannot be decoded.
	ErrMalformedVector = errors.New("malformed serialized vector")
)

// VectorKind discriminates the two vector representations.
type VectorKind uint8

const (
	// KindDense is a fixed-width float32 vector produced by the neural provider.
	KindDense VectorKind = iota + 1

	// KindSparse is an index/value vector over a fixed hashed feature space,
	// produced by the statistical fallback provider.
	KindSparse
)

// String returns the kind name for logs.
func (k VectorKind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

const (
	// DenseDimension is the output width of the neural model (bge-small class).
	DenseDimension = 384

	// SparseWidth is the fixed feature-space width of the hashing provider.
	// Sparse vectors never declare a larger width.
	SparseWidth = 100
)

// Vector is a tagged-union embedding vector: exactly one representation is
// populated, selected by kind. Never constructed as a bare array so that
// dense and sparse vectors cannot be confused at comparison or storage time.
type Vector struct {
	kind    VectorKind
	dense   []float32
	indices []uint32
	values  []float32
	width   uint32
}

// NewDense wraps a dense float32 slice as a Vector. The slice is not copied.
func NewDense(values []float32) Vector {
	return Vector{kind: KindDense, dense: values}
}

// ZeroDense returns an all-zero dense vector of the given width. Used as the
// degraded-mode substitute when neural embedding fails internally.
func ZeroDense(dim int) Vector {
	return Vector{kind: KindDense, dense: make([]float32, dim)}
}

// NewSparse builds a sparse vector over a declared feature-space width.
// Indices and values must be the same length, indices must be in-range and
// free of duplicates, and the declared width is capped at SparseWidth.
// Entries are stored sorted by index regardless of input order, which the
// cosine lockstep walk relies on.
func NewSparse(indices []uint32, values []float32, width uint32) (Vector, error) {
	if len(indices) != len(values) {
		return Vector{}, fmt.Errorf("%w: %d indices, %d values", ErrMalformedVector, len(indices), len(values))
	}
	if width == 0 || width > SparseWidth {
		return Vector{}, fmt.Errorf("%w: declared width %d (max %d)", ErrMalformedVector, width, SparseWidth)
	}
	for _, idx := range indices {
		if idx >= width {
			return Vector{}, fmt.Errorf("%w: index %d out of range for width %d", ErrMalformedVector, idx, width)
		}
	}

	if !sort.SliceIsSorted(indices, func(i, j int) bool { return indices[i] < indices[j] }) {
		sorted := make([]int, len(indices))
		for i := range sorted {
			sorted[i] = i
		}
		sort.Slice(sorted, func(i, j int) bool { return indices[sorted[i]] < indices[sorted[j]] })

		orderedIdx := make([]uint32, len(indices))
		orderedVal := make([]float32, len(values))
		for i, src := range sorted {
			orderedIdx[i] = indices[src]
			orderedVal[i] = values[src]
		}
		indices, values = orderedIdx, orderedVal
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] == indices[i-1] {
			return Vector{}, fmt.Errorf("%w: duplicate index %d", ErrMalformedVector, indices[i])
		}
	}

	return Vector{kind: KindSparse, indices: indices, values: values, width: width}, nil
}

// Kind returns the vector variant.
func (v Vector) Kind() VectorKind { return v.kind }

// Dimension returns the declared width: the dense length or the sparse
// feature-space width.
func (v Vector) Dimension() int {
	switch v.kind {
	case KindDense:
		return len(v.dense)
	case KindSparse:
		return int(v.width)
	default:
		return 0
	}
}

// IsZero reports whether the vector has no nonzero component. Zero vectors
// are the degraded-mode output and compare as 0.0 against everything.
func (v Vector) IsZero() bool {
	switch v.kind {
	case KindDense:
		for _, f := range v.dense {
			if f != 0 {
				return false
			}
		}
		return true
	case KindSparse:
		for _, f := range v.values {
			if f != 0 {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Dense returns the dense components, or nil for sparse vectors.
func (v Vector) Dense() []float32 {
	if v.kind != KindDense {
		return nil
	}
	return v.dense
}

// Cosine computes cosine similarity between two vectors of the same kind.
// Comparing across kinds (or dense vectors of different widths) returns an
// error; zero-norm input yields 0.0 rather than dividing by zero.
func (v Vector) Cosine(other Vector) (float64, error) {
	if v.kind != other.kind {
		return 0, fmt.Errorf("%w: %s vs %s", ErrKindMismatch, v.kind, other.kind)
	}

	switch v.kind {
	case KindDense:
		if len(v.dense) != len(other.dense) {
			return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(v.dense), len(other.dense))
		}
		return cosineDense(v.dense, other.dense), nil
	case KindSparse:
		if v.width != other.width {
			return 0, fmt.Errorf("%w: width %d vs %d", ErrDimensionMismatch, v.width, other.width)
		}
		return cosineSparse(v, other), nil
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrMalformedVector, v.kind)
	}
}

func cosineDense(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineSparse walks both sorted index lists in lockstep.
func cosineSparse(a, b Vector) float64 {
	var dot, normA, normB float64

	i, j := 0, 0
	for i < len(a.indices) && j < len(b.indices) {
		switch {
		case a.indices[i] == b.indices[j]:
			dot += float64(a.values[i]) * float64(b.values[j])
			i++
			j++
		case a.indices[i] < b.indices[j]:
			i++
		default:
			j++
		}
	}
	for _, f := range a.values {
		normA += float64(f) * float64(f)
	}
	for _, f := range b.values {
		normB += float64(f) * float64(f)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Serialization. The attempt store keeps dense and sparse payloads in
// mutually exclusive columns, so the variant is carried by the column and
// the payload itself stays minimal: dense vectors are raw little-endian
// float32 bytes, sparse vectors carry a self-describing width/nnz header.

// EncodeDense serializes a dense vector as raw little-endian float32 bytes.
// Returns nil for non-dense vectors.
func (v Vector) EncodeDense() []byte {
	if v.kind != KindDense {
		return nil
	}
	buf := make([]byte, 4*len(v.dense))
	for i, f := range v.dense {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeDense reconstructs a dense vector from raw float32 bytes.
func DecodeDense(data []byte) (Vector, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return Vector{}, fmt.Errorf("%w: dense payload of %d bytes", ErrMalformedVector, len(data))
	}
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return NewDense(values), nil
}

// EncodeSparse serializes a sparse vector as:
//
//	uint32 width | uint32 nnz | nnz*uint32 indices | nnz*float32 values
//
// all little-endian. Returns nil for non-sparse vectors.
func (v Vector) EncodeSparse() []byte {
	if v.kind != KindSparse {
		return nil
	}
	nnz := len(v.indices)
	buf := make([]byte, 8+8*nnz)
	binary.LittleEndian.PutUint32(buf[0:], v.width)
	binary.LittleEndian.PutUint32(buf[4:], uint32(nnz))
	for i, idx := range v.indices {
		binary.LittleEndian.PutUint32(buf[8+i*4:], idx)
	}
	off := 8 + nnz*4
	for i, f := range v.values {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeSparse reconstructs a sparse vector from its serialized form.
func DecodeSparse(data []byte) (Vector, error) {
	if len(data) < 8 {
		return Vector{}, fmt.Errorf("%w: sparse payload of %d bytes", ErrMalformedVector, len(data))
	}
	width := binary.LittleEndian.Uint32(data[0:])
	nnz := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) != 8+8*nnz {
		return Vector{}, fmt.Errorf("%w: sparse payload of %d bytes for nnz %d", ErrMalformedVector, len(data), nnz)
	}
	indices := make([]uint32, nnz)
	values := make([]float32, nnz)
	for i := range indices {
		indices[i] = binary.LittleEndian.Uint32(data[8+i*4:])
	}
	off := 8 + nnz*4
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+i*4:]))
	}
	return NewSparse(indices, values, width)
}
