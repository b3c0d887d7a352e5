// internal/workers/discovery/research-resort/models.go
package researchresort

type Input struct {
	Slug string `json:"slug"`

	// Force bypasses the topic-search cache.
	Force bool `json:"force,omitempty"`
}

type Output struct {
	Slug             string  `json:"slug"`
	FieldsExtracted  int     `json:"fieldsExtracted"`
	DataCompleteness float64 `json:"dataCompleteness"`
	ReviewsAdded     int     `json:"reviewsAdded"`
	Status           string  `json:"status"`
}
