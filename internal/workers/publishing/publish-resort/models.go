// internal/workers/publishing/publish-resort/models.go
package publishresort

// Input names the resort and the lifecycle action. An empty action
// defaults to publish.
type Input struct {
	Slug   string `json:"slug"`
	Action string `json:"action,omitempty"`
}

// Output reports the outcome: "published", "flagged" (sent to editorial
// review) or "unpublished".
type Output struct {
	Slug        string   `json:"slug"`
	Outcome     string   `json:"outcome"`
	FamilyScore float64  `json:"familyScore,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Status      string   `json:"status"`
	Revalidated []string `json:"revalidated,omitempty"`
}

// resortDocument is the directory index entry served to site search.
type resortDocument struct {
	Slug            string             `json:"slug"`
	Name            string             `json:"name"`
	Country         string             `json:"country"`
	Region          string             `json:"region,omitempty"`
	FamilyScore     float64            `json:"familyScore"`
	StructuralScore float64            `json:"structuralScore"`
	Confidence      string             `json:"confidence"`
	Reasoning       string             `json:"reasoning,omitempty"`
	Dimensions      map[string]float64 `json:"dimensions,omitempty"`
	Sections        map[string]string  `json:"sections,omitempty"`
	ScoredAt        string             `json:"scoredAt,omitempty"`
	PublishedAt     string             `json:"publishedAt"`
}
