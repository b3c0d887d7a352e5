// internal/scoring/composite.go
package scoring

import (
	"math"
	"time"

	"familyski-workers/internal/models"
)

// CalculateCompositeFamilyScore blends the structural score with whichever
// LLM signals are present. The structural score is a plain float64 because
// it can always be computed; content and review are nil when their layer
// was skipped or failed. Output stays on the structural scale [0,10] and
// confidence reflects exactly how many signals went in: three high, two
// medium, one low.
func CalculateCompositeFamilyScore(structural float64, content, review *float64, dimensions models.DimensionScores, reasoning string) models.CompositeScore {
	structural = clampScore(structural)
	w := WeightsFor(content != nil, review != nil)

	score := w.Structural * structural
	if content != nil {
		score += w.Content * clampScore(*content)
	}
	if review != nil {
		score += w.Review * clampScore(*review)
	}

	signals := 1
	if content != nil {
		signals++
	}
	if review != nil {
		signals++
	}

	return models.CompositeScore{
		FamilyScore:     round2(clampScore(score)),
		StructuralScore: round2(structural),
		ContentScore:    content,
		ReviewScore:     review,
		Confidence:      confidenceForSignals(signals),
		Reasoning:       compositeReasoning(content != nil, review != nil, reasoning),
		Dimensions:      dimensions,
		ScoredAt:        time.Now().UTC(),
	}
}

func confidenceForSignals(signals int) models.Confidence {
	switch signals {
	case 3:
		return models.ConfidenceHigh
	case 2:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// compositeReasoning keeps the content assessment's reasoning verbatim
// when it exists; otherwise it records which signals the score rests on,
// so an editor reading a low-confidence score knows why.
func compositeReasoning(hasContent, hasReview bool, reasoning string) string {
	if hasContent {
		return reasoning
	}
	if hasReview {
		return "Scored from structured metrics and review sentiment; no content assessment was available."
	}
	return "Scored from structured metrics only; no content assessment or review sentiment was available."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
