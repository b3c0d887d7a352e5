// internal/workers/publishing/publish-resort/config.go
package publishresort

import "time"

type Config struct {
	Timeout time.Duration

	// PublishThreshold is the minimum composite family score for
	// auto-publication. Resorts below it, or scored at low confidence,
	// are flagged for editorial review instead.
	PublishThreshold float64

	IndexName    string
	SitePathBase string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          60 * time.Second,
		PublishThreshold: 6.5,
		IndexName:        "family-resorts",
		SitePathBase:     "/resorts",
	}
}
