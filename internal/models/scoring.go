package models

import "time"

// Confidence labels how many independent signals informed a composite score.
// Downstream publication gating reads these values verbatim, so they are part
// of the wire contract.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DimensionScores maps an assessment dimension to its score. Dimensions are
// descriptive metadata on the content assessment; they never blend into the
// composite independently.
type DimensionScores map[string]float64

// Dimension names produced by the content assessment.
const (
	DimensionAgeAppropriateness = "age_appropriateness"
	DimensionConvenience        = "convenience"
	DimensionValue              = "value"
	DimensionSafety             = "safety"
)

// Assessment is the parsed result of an LLM content assessment.
type Assessment struct {
	OverallScore float64         `json:"overallScore"`
	Dimensions   DimensionScores `json:"dimensions"`
	Reasoning    string          `json:"reasoning"`
}

// CompositeScore is the full output of one scoring run. A run always
// recomputes from scratch and callers persist it by overwriting the previous
// score on the resort's metrics record.
type CompositeScore struct {
	FamilyScore     float64         `json:"familyScore"`
	StructuralScore float64         `json:"structuralScore"`
	ContentScore    *float64        `json:"contentScore,omitempty"`
	ReviewScore     *float64        `json:"reviewScore,omitempty"`
	Confidence      Confidence      `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	Dimensions      DimensionScores `json:"dimensions,omitempty"`
	ScoredAt        time.Time       `json:"scoredAt"`
}
