// internal/workers/discovery/discover-resorts/models.go
package discoverresorts

type Input struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type Output struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
	Total   int      `json:"total"`
}

// discoveryList is the strict-JSON shape the extraction prompt asks for.
type discoveryList struct {
	Resorts []discoveredResort `json:"resorts"`
}

type discoveredResort struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}
