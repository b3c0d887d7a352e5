// internal/workers/content/generate-content/config.go
package generatecontent

import "time"

type Config struct {
	// Timeout covers the whole job: up to seven section generations in
	// sequence.
	Timeout time.Duration

	SectionMaxTokens int
	Temperature      float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          180 * time.Second,
		SectionMaxTokens: 700,
		Temperature:      0.6,
	}
}
