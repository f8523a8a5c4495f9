package ranking

import "math"

// Clamp limits v to the [0, 1] range. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TextWeight computes a weighted lexical score.
// The raw rank is clamped to [0, 1] before weighting.
func TextWeight(rawRank float64, w float64) float64 {
	return Clamp(rawRank) * w
}

// VectorWeight computes a weighted vector score from a cosine similarity.
// Negative similarities carry no relevance and count as 0.
func VectorWeight(cosine float64, w float64) float64 {
	return Clamp(cosine) * w
}

// HybridParams holds the signals of one hybrid search candidate.
type HybridParams struct {
	Text      float64 // lexical score [0, 1]
	Vector    float64 // cosine similarity [-1, 1]
	HasVector bool    // whether the query carried an embedding
}

// HybridScore computes the combined score of a candidate in [0, 1].
// When the query has no embedding only the lexical signal counts, weighted by TextOnly.
func HybridScore(params HybridParams, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}
	h := weights.Hybrid
	if !params.HasVector {
		return Clamp(TextWeight(params.Text, h.TextOnly))
	}
	return Clamp(TextWeight(params.Text, h.Text) + VectorWeight(params.Vector, h.Vector))
}
