// internal/scoring/weights.go
package scoring

import (
	"fmt"
	"math"
)

// Weights defines how the composite blends the available signals. A zero
// weight means the signal is absent from the blend; the non-zero weights
// of any combination sum to 1.0 so the composite stays on the structural
// scale.
type Weights struct {
	Structural float64
	Content    float64
	Review     float64
}

// Blend weights per signal combination. Structural data is the backbone
// and always carries the largest share; review sentiment is deliberately
// a minor modifier because aggregated review text is the noisiest input.
var (
	weightsAllSignals = Weights{Structural: 0.45, Content: 0.40, Review: 0.15}
	weightsNoReview   = Weights{Structural: 0.60, Content: 0.40, Review: 0}
	weightsNoContent  = Weights{Structural: 0.85, Content: 0, Review: 0.15}
	weightsStructural = Weights{Structural: 1.0, Content: 0, Review: 0}
)

// WeightsFor returns the blend weights for the given signal availability.
func WeightsFor(hasContent, hasReview bool) Weights {
	switch {
	case hasContent && hasReview:
		return weightsAllSignals
	case hasContent:
		return weightsNoReview
	case hasReview:
		return weightsNoContent
	default:
		return weightsStructural
	}
}

// Validate checks that the weights form a convex combination: every
// component in [0,1] and the total within 0.001 of 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"structural": w.Structural,
		"content":    w.Content,
		"review":     w.Review,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range: %f", name, v)
		}
	}

	total := w.Structural + w.Content + w.Review
	if math.Abs(total-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %f, expected 1.0", total)
	}
	return nil
}
