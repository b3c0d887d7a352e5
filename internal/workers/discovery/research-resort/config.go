// internal/workers/discovery/research-resort/config.go
package researchresort

import "time"

type Config struct {
	Timeout time.Duration

	// CacheTTL is how long raw topic search results stay in Redis.
	// Re-researching a resort inside the window reuses them instead of
	// burning search quota.
	CacheTTL time.Duration

	MaxResultsPerTopic int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            120 * time.Second,
		CacheTTL:           24 * time.Hour,
		MaxResultsPerTopic: 5,
	}
}
