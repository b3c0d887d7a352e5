// internal/scoring/content.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/validation"
	"familyski-workers/internal/models"
)

// ContentAssessor asks the LLM how family-friendly a resort reads from its
// generated guide content. It is a best-effort signal: every failure mode
// (timeout, transport error, schema-invalid JSON) returns nil so the
// composite degrades instead of the scoring run failing.
type ContentAssessor struct {
	client *genai.Client
	logger logger.Logger
}

func NewContentAssessor(client *genai.Client, log logger.Logger) *ContentAssessor {
	return &ContentAssessor{
		client: client,
		logger: log.WithFields(map[string]interface{}{"assessor": "content"}),
	}
}

// assessmentPayload mirrors the JSON contract enforced by
// validation.AssessmentSchema.
type assessmentPayload struct {
	OverallScore float64            `json:"overall_score"`
	Dimensions   map[string]float64 `json:"dimensions"`
	Reasoning    string             `json:"reasoning"`
}

// AssessFamilyFriendliness returns the model's read of the resort's
// content, or nil if the assessment could not be obtained for any reason.
func (a *ContentAssessor) AssessFamilyFriendliness(ctx context.Context, resortName, country string, sections models.ContentSections) *models.Assessment {
	prompt := a.buildPrompt(resortName, country, sections)

	resp, err := a.client.Generate(ctx, &genai.Request{
		Operation: "content_assessment",
		System:    "You are an analyst rating ski resorts for families with children. Respond with strict JSON only, no prose around it.",
		Prompt:    prompt,
	})
	if err != nil {
		a.logger.Warn("content assessment call failed", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	raw := genai.ExtractJSON(resp.Text)
	if err := validation.ValidateJSON(validation.AssessmentSchema, []byte(raw)); err != nil {
		a.logger.Warn("content assessment response rejected", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		a.logger.Warn("content assessment response unparseable", map[string]interface{}{
			"resort": resortName,
			"error":  err.Error(),
		})
		return nil
	}

	dimensions := models.DimensionScores{}
	for name, score := range payload.Dimensions {
		dimensions[name] = clampScore(score)
	}

	return &models.Assessment{
		OverallScore: clampScore(payload.OverallScore),
		Dimensions:   dimensions,
		Reasoning:    payload.Reasoning,
	}
}

func (a *ContentAssessor) buildPrompt(resortName, country string, sections models.ContentSections) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Rate how family-friendly the ski resort %q (%s) is, based only on the guide content below.", resortName, country))

	hasContent := false
	for _, key := range models.CanonicalSections() {
		body, ok := sections[key]
		if !ok || strings.TrimSpace(body) == "" {
			continue
		}
		hasContent = true
		parts = append(parts, fmt.Sprintf("\n## %s\n%s", key, body))
	}
	if !hasContent {
		parts = append(parts, "\n(No guide content is available for this resort.)")
	}

	parts = append(parts, "\nRespond with JSON exactly in this form:")
	parts = append(parts, `{"overall_score": <number 0-10>, "dimensions": {"age_appropriateness": <number 0-10>, "convenience": <number 0-10>, "value": <number 0-10>, "safety": <number 0-10>}, "reasoning": "<2-3 sentences>"}`)

	return strings.Join(parts, "\n")
}
