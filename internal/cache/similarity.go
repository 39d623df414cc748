package cache

import (
	"math"

	"github.com/answercache/answercache/internal/classifier"
)

// Acceptance thresholds by query type. Time-sensitive answers decay quickly
// and are only reused for near-identical queries; evergreen answers tolerate
// looser paraphrase matching.
const (
	ThresholdTimeSensitive = 0.90
	ThresholdEvergreen     = 0.80
)

// ThresholdFor returns the similarity acceptance threshold for the given
// query type.
func ThresholdFor(qt classifier.QueryType) float64 {
	if qt == classifier.QueryTypeTimeSensitive {
		return ThresholdTimeSensitive
	}
	return ThresholdEvergreen
}

// CosineSimilarity computes the cosine similarity between two vectors,
// in [-1, 1]. It returns ErrDimensionMismatch for vectors of different
// length and ErrZeroVector when either operand has zero magnitude; a
// degenerate embedding is an error here, not a silent zero score.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
