// internal/workers/notification/notify-review/config.go
package notifyreview

import "time"

type Config struct {
	Timeout time.Duration

	EmailEnabled   bool
	FromEmail      string
	EditorialEmail string

	SNSEnabled bool
	TopicARN   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		EmailEnabled: true,
		SNSEnabled:   true,
	}
}
