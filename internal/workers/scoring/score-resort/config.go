// internal/workers/scoring/score-resort/config.go
package scoreresort

import "time"

type Config struct {
	// Timeout bounds the whole scoring run.
	Timeout time.Duration

	// AssessorTimeout bounds each individual LLM assessment inside the
	// run. An assessor that misses it contributes nil, not a job failure.
	AssessorTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         90 * time.Second,
		AssessorTimeout: 30 * time.Second,
	}
}
