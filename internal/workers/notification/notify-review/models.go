// internal/workers/notification/notify-review/models.go
package notifyreview

// Input carries the flagged resort's scoring context, set by the publish
// worker when it routes a resort to editorial review.
type Input struct {
	Slug        string  `json:"slug"`
	FamilyScore float64 `json:"familyScore"`
	Confidence  string  `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// Channel delivery states. "disabled" means the channel is turned off in
// config, not that delivery failed.
const (
	ChannelSent     = "sent"
	ChannelFailed   = "failed"
	ChannelDisabled = "disabled"
)

type Output struct {
	NotificationID string `json:"notificationId"`
	Slug           string `json:"slug"`
	EmailStatus    string `json:"emailStatus"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SNSStatus      string `json:"snsStatus"`
	SNSMessageID   string `json:"snsMessageId,omitempty"`
	NotifiedAt     string `json:"notifiedAt"`
}

// reviewAlert is the structured payload published to the ops topic.
type reviewAlert struct {
	NotificationID string  `json:"notificationId"`
	Slug           string  `json:"slug"`
	FamilyScore    float64 `json:"familyScore"`
	Confidence     string  `json:"confidence"`
	Reasoning      string  `json:"reasoning,omitempty"`
	FlaggedAt      string  `json:"flaggedAt"`
}
