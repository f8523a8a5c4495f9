// Package quality decides whether retrieval results are good enough to answer
// a query or whether enrichment is warranted. The gate is advisory and has no
// side effects.
package quality

import "github.com/onnwee/agenda/internal/retrieval"

// Default policy values.
const (
	DefaultMinResults = 3
	DefaultMinScore   = 0.4
)

// Gate applies the adequacy policy.
type Gate struct {
	MinResults int
	MinScore   float64
}

// NewGate returns a gate with the default policy.
func NewGate() Gate {
	return Gate{MinResults: DefaultMinResults, MinScore: DefaultMinScore}
}

// IsAdequate reports whether at least MinResults results were returned and at
// least MinResults of them score MinScore or higher. Date branch results carry a
// synthetic score of 1.0, so only the count applies to them.
func (g Gate) IsAdequate(results []retrieval.Result) bool {
	if len(results) < g.MinResults {
		return false
	}
	good := 0
	for _, r := range results {
		if r.DateMatch || r.Score >= g.MinScore {
			good++
		}
	}
	return good >= g.MinResults
}
