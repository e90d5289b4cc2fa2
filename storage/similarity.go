package storage

import (
	"math"
	"slices"
	"strings"
)

// Cosine computes the cosine similarity of two vectors, in [-1,1].
// Vectors of different lengths are compared over their common prefix;
// a zero vector yields 0.
func Cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SimilarityScore maps a cosine similarity in [-1,1] onto the [0,1]
// score scale shared by all backends, clamping rounding spill.
func SimilarityScore(cosine float32) float32 {
	score := (1 + cosine) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// DistanceScore maps a cosine distance in [0,2], as reported by
// pgvector's <=> operator, onto the [0,1] score scale.
func DistanceScore(distance float64) float32 {
	return SimilarityScore(float32(1 - distance))
}

// SortScored orders search results by descending score, breaking ties
// by ascending identity so results are deterministic.
func SortScored(results []ScoredItem) {
	slices.SortFunc(results, func(a, b ScoredItem) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Item.ItemID().String(), b.Item.ItemID().String())
	})
}
