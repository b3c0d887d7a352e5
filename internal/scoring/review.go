// internal/scoring/review.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/validation"
)

// MinReviewLength is the minimum aggregated review text, in bytes, worth
// sending to the sentiment prompt. Callers enforce it and skip the call
// below the threshold; AssessReviewSentiment itself does not re-check.
const MinReviewLength = 50

// ReviewAssessor distills aggregated parent-review text into a single
// sentiment score. Like the content assessor it never fails loudly: any
// problem yields nil and the composite carries on without the signal.
type ReviewAssessor struct {
	client *genai.Client
	logger logger.Logger
}

func NewReviewAssessor(client *genai.Client, log logger.Logger) *ReviewAssessor {
	return &ReviewAssessor{
		client: client,
		logger: log.WithFields(map[string]interface{}{"assessor": "review"}),
	}
}

type sentimentPayload struct {
	SentimentScore float64 `json:"sentiment_score"`
	Summary        string  `json:"summary"`
}

// AssessReviewSentiment returns a sentiment score [0,10] for the resort's
// aggregated reviews, or nil if the assessment failed.
func (a *ReviewAssessor) AssessReviewSentiment(ctx context.Context, resortName, reviewsContent string) *float64 {
	prompt := a.buildPrompt(resortName, reviewsContent)

	resp, err := a.client.Generate(ctx, &genai.Request{
		Operation: "review_sentiment",
		System:    "You are analyzing parent reviews of ski resorts. Respond with strict JSON only.",
		Prompt:    prompt,
	})
	if err != nil {
		a.logger.Warn("review sentiment call failed", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	raw := genai.ExtractJSON(resp.Text)
	if err := validation.ValidateJSON(validation.SentimentSchema, []byte(raw)); err != nil {
		a.logger.Warn("review sentiment response rejected", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	var payload sentimentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		a.logger.Warn("review sentiment response unparseable", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	score := clampScore(payload.SentimentScore)
	return &score
}

func (a *ReviewAssessor) buildPrompt(resortName, reviewsContent string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Below are reviews from parents who visited the ski resort %q with children.", resortName))
	parts = append(parts, "Rate the overall family sentiment from 0 (families warn against it) to 10 (families love it).")
	parts = append(parts, "\nReviews:")
	parts = append(parts, reviewsContent)
	parts = append(parts, "\nRespond with JSON exactly in this form:")
	parts = append(parts, `{"sentiment_score": <number 0-10>, "summary": "<1 sentence>"}`)

	return strings.Join(parts, "\n")
}
