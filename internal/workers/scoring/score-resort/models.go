// internal/workers/scoring/score-resort/models.go
package scoreresort

type Input struct {
	Slug string `json:"slug"`
}

type Output struct {
	Slug             string  `json:"slug"`
	FamilyScore      float64 `json:"familyScore"`
	StructuralScore  float64 `json:"structuralScore"`
	Confidence       string  `json:"confidence"`
	DataCompleteness float64 `json:"dataCompleteness"`
	SignalsUsed      int     `json:"signalsUsed"`
	ScoredAt         string  `json:"scoredAt"`
}
