package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// HybridWeights defines the weights of the hybrid retrieval score.
type HybridWeights struct {
	Text     float64 `json:"text"`      // Weight for lexical relevance (default: 0.3)
	Vector   float64 `json:"vector"`    // Weight for vector similarity (default: 0.7)
	TextOnly float64 `json:"text_only"` // Lexical weight when the query has no embedding (default: 1.0)
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Hybrid HybridWeights `json:"hybrid"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default ranking weight configuration.
//
// Hybrid formula: score = (text * 0.3) + (vector * 0.7)
// - Vector similarity carries intent better than keyword overlap for short questions
// - Text match keeps exact titles and venues near the top
// - Without a query embedding, text carries the full score
func DefaultWeights() *Weights {
	return &Weights{
		Hybrid: HybridWeights{
			Text:     0.3,
			Vector:   0.7,
			TextOnly: 1.0,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// An empty path yields the defaults. On read or parse failure the defaults
// are returned together with the error.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	// Partial files only override the weights they set.
	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	if override.Hybrid.Text != 0 {
		result.Hybrid.Text = override.Hybrid.Text
	}
	if override.Hybrid.Vector != 0 {
		result.Hybrid.Vector = override.Hybrid.Vector
	}
	if override.Hybrid.TextOnly != 0 {
		result.Hybrid.TextOnly = override.Hybrid.TextOnly
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Hybrid.Text != defaults.Hybrid.Text {
		overrides = append(overrides, fmt.Sprintf("hybrid.text: %.2f -> %.2f",
			defaults.Hybrid.Text, loaded.Hybrid.Text))
	}
	if loaded.Hybrid.Vector != defaults.Hybrid.Vector {
		overrides = append(overrides, fmt.Sprintf("hybrid.vector: %.2f -> %.2f",
			defaults.Hybrid.Vector, loaded.Hybrid.Vector))
	}
	if loaded.Hybrid.TextOnly != defaults.Hybrid.TextOnly {
		overrides = append(overrides, fmt.Sprintf("hybrid.text_only: %.2f -> %.2f",
			defaults.Hybrid.TextOnly, loaded.Hybrid.TextOnly))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
