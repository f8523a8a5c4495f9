// Package ranking combines the lexical and vector signals of hybrid retrieval
// into a single score with calibration support.
//
// Basic Usage:
//
//	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
//	if err != nil {
//		logger.Warn("using default weights", "error", err)
//	}
//
//	score := ranking.HybridScore(ranking.HybridParams{
//		Text:      hit.TextScore,   // ts_rank normalized to [0, 1)
//		Vector:    hit.VectorScore, // cosine similarity
//		HasVector: len(embedding) > 0,
//	}, weights)
//
// Formula:
//
// With a query embedding: score = text * 0.3 + vector * 0.7.
// Without one the lexical score stands alone: score = text * 1.0.
// Every component is clamped to [0, 1] before weighting and the result is
// clamped again, so scores always lie in [0, 1].
package ranking
