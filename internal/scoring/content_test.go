// internal/scoring/content_test.go
package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/models"
)

// newFakeLLM wires a genai client against a local HTTP server so assessor
// behavior can be tested without a real model.
func newFakeLLM(t *testing.T, handler http.HandlerFunc) *genai.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return genai.NewClient(&genai.Config{
		BaseURL:     server.URL,
		MaxRetries:  0,
		MaxTokens:   512,
		Temperature: 0.2,
	})
}

func respondWithText(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"text":        text,
		"model":       "test-model",
		"tokens_used": 128,
	})
	require.NoError(t, err)
}

const validAssessmentJSON = `{
	"overall_score": 7.5,
	"dimensions": {
		"age_appropriateness": 8,
		"convenience": 7,
		"value": 6.5,
		"safety": 9
	},
	"reasoning": "Gentle beginner slopes and full-day childcare make this an easy family trip."
}`

func testSections() models.ContentSections {
	return models.ContentSections{
		models.SectionOverview:  "A compact resort above the village with ski-in access.",
		models.SectionSkiSchool: "Ski school takes children from age 3 with a dedicated magic carpet area.",
		models.SectionChildcare: "Licensed daycare next to the gondola, bookable by the hour.",
	}
}

func TestAssessFamilyFriendliness_Success(t *testing.T) {
	client := newFakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		respondWithText(t, w, validAssessmentJSON)
	})
	assessor := NewContentAssessor(client, logger.NewTestLogger(t))

	assessment := assessor.AssessFamilyFriendliness(context.Background(), "Alpental", "Austria", testSections())

	require.NotNil(t, assessment)
	assert.Equal(t, 7.5, assessment.OverallScore)
	assert.Equal(t, 8.0, assessment.Dimensions[models.DimensionAgeAppropriateness])
	assert.Equal(t, 9.0, assessment.Dimensions[models.DimensionSafety])
	assert.Contains(t, assessment.Reasoning, "childcare")
}

func TestAssessFamilyFriendliness_AcceptsFencedJSON(t *testing.T) {
	client := newFakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, "```json\n"+validAssessmentJSON+"\n```")
	})
	assessor := NewContentAssessor(client, logger.NewTestLogger(t))

	assessment := assessor.AssessFamilyFriendliness(context.Background(), "Alpental", "Austria", testSections())

	require.NotNil(t, assessment)
	assert.Equal(t, 7.5, assessment.OverallScore)
}

func TestAssessFamilyFriendliness_ClampsOutOfRangeScores(t *testing.T) {
	client := newFakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, `{
			"overall_score": 12.4,
			"dimensions": {"age_appropriateness": -2, "convenience": 7, "value": 11, "safety": 9},
			"reasoning": "Overenthusiastic model."
		}`)
	})
	assessor := NewContentAssessor(client, logger.NewTestLogger(t))

	assessment := assessor.AssessFamilyFriendliness(context.Background(), "Alpental", "Austria", testSections())

	require.NotNil(t, assessment)
	assert.Equal(t, 10.0, assessment.OverallScore)
	assert.Equal(t, 0.0, assessment.Dimensions[models.DimensionAgeAppropriateness])
	assert.Equal(t, 10.0, assessment.Dimensions[models.DimensionValue])
}

func TestAssessFamilyFriendliness_NilOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"schema violation: missing dimension",
			func(w http.ResponseWriter, r *http.Request) {
				respondWithText(t, w, `{"overall_score": 7, "dimensions": {"convenience": 7}, "reasoning": "partial"}`)
			},
		},
		{
			"schema violation: wrong type",
			func(w http.ResponseWriter, r *http.Request) {
				respondWithText(t, w, `{"overall_score": "seven", "dimensions": {}, "reasoning": "typed wrong"}`)
			},
		},
		{
			"not JSON at all",
			func(w http.ResponseWriter, r *http.Request) {
				respondWithText(t, w, "This resort is great for families! I'd say about a 7/10.")
			},
		},
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeLLM(t, tt.handler)
			assessor := NewContentAssessor(client, logger.NewTestLogger(t))

			assessment := assessor.AssessFamilyFriendliness(context.Background(), "Alpental", "Austria", testSections())
			assert.Nil(t, assessment, "any failure must collapse to nil, never an error")
		})
	}
}

func TestAssessFamilyFriendliness_NilOnTimeout(t *testing.T) {
	client := newFakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		respondWithText(t, w, validAssessmentJSON)
	})
	assessor := NewContentAssessor(client, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assessment := assessor.AssessFamilyFriendliness(ctx, "Alpental", "Austria", testSections())
	assert.Nil(t, assessment)
}

func TestAssessFamilyFriendliness_EmptySectionsStillPrompts(t *testing.T) {
	var gotPrompt string
	client := newFakeLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt, _ = req["prompt"].(string)
		respondWithText(t, w, validAssessmentJSON)
	})
	assessor := NewContentAssessor(client, logger.NewTestLogger(t))

	assessment := assessor.AssessFamilyFriendliness(context.Background(), "Alpental", "Austria", models.ContentSections{})

	require.NotNil(t, assessment)
	assert.Contains(t, gotPrompt, "No guide content")
}
