// internal/workers/content/generate-content/models.go
package generatecontent

// Input selects the resort and, optionally, a subset of sections. An empty
// section list means the full canonical page.
type Input struct {
	Slug     string   `json:"slug"`
	Sections []string `json:"sections,omitempty"`
	Force    bool     `json:"force,omitempty"`
}

type Output struct {
	Slug      string   `json:"slug"`
	Generated []string `json:"generated"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Status    string   `json:"status"`
}
