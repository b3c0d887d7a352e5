// internal/workers/discovery/discover-resorts/config.go
package discoverresorts

import "time"

type Config struct {
	Timeout       time.Duration
	MaxCandidates int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       60 * time.Second,
		MaxCandidates: 10,
	}
}
