// internal/workers/discovery/research-resort/handler.go
package researchresort

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"familyski-workers/internal/common/database"
	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
	"familyski-workers/internal/common/search"
	"familyski-workers/internal/common/validation"
	"familyski-workers/internal/models"
	"familyski-workers/internal/scoring"
	"familyski-workers/internal/store"
)

const (
	TaskType = "research-resort"

	topicReviews = "reviews"

	// minReviewSnippet filters out search snippets too short to carry any
	// parent opinion.
	minReviewSnippet = 40
)

// researchTopics drive one targeted search each. The reviews topic feeds
// the review store; the rest feed the metrics extraction prompt.
var researchTopics = []struct {
	name  string
	query string
}{
	{"childcare", "%s ski resort childcare nursery kids club"},
	{"ski_school", "%s ski school minimum age magic carpet beginner lift"},
	{"terrain", "%s piste map beginner terrain percentage night skiing"},
	{"prices", "%s lift ticket day pass price"},
	{"transfers", "%s airport transfer time ski in ski out family hotel"},
	{topicReviews, "%s family ski holiday with kids parent review"},
}

type Handler struct {
	config *Config
	store  *store.Store
	search *search.Client
	genai  *genai.Client
	redis  *database.RedisClient
	logger logger.Logger
}

func NewHandler(config *Config, st *store.Store, searchClient *search.Client, genaiClient *genai.Client, redisClient *database.RedisClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  st,
		search: searchClient,
		genai:  genaiClient,
		redis:  redisClient,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "PARSE_ERROR").Inc()
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode, retries := classifyError(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute runs the research pass: topic searches (cached), review snippet
// capture, LLM metrics extraction, and a merge of the extracted fields over
// whatever the directory already knows.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Slug == "" {
		return nil, apperrors.NewValidationError("slug is required")
	}

	resort, err := h.store.GetResortBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	topicResults := h.collectTopicResults(ctx, resort, input.Force)

	reviewsAdded := h.storeReviews(ctx, resort.ID, topicResults[topicReviews])

	patch, err := h.extractMetricsPatch(ctx, resort, topicResults)
	if err != nil {
		return nil, err
	}

	existing, err := h.store.GetMetrics(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	merged, extracted := mergeMetrics(existing, patch)
	if extracted > 0 {
		if err := h.store.UpdateMetrics(ctx, resort.ID, merged); err != nil {
			return nil, err
		}
	}

	status := resort.Status
	if status == models.StatusDiscovered {
		if err := h.store.UpdateStatus(ctx, resort.ID, models.StatusResearched); err != nil {
			return nil, err
		}
		status = models.StatusResearched
	}

	completeness := scoring.CalculateDataCompleteness(*merged)

	h.logger.Info("resort researched", map[string]interface{}{
		"slug":             resort.Slug,
		"fieldsExtracted":  extracted,
		"dataCompleteness": completeness,
		"reviewsAdded":     reviewsAdded,
	})

	return &Output{
		Slug:             resort.Slug,
		FieldsExtracted:  extracted,
		DataCompleteness: completeness,
		ReviewsAdded:     reviewsAdded,
		Status:           string(status),
	}, nil
}

// collectTopicResults runs the topic searches, consulting the Redis cache
// first. Search failures degrade to an empty topic; research keeps going
// with what it has.
func (h *Handler) collectTopicResults(ctx context.Context, resort *models.Resort, force bool) map[string][]search.Result {
	results := make(map[string][]search.Result)

	for _, topic := range researchTopics {
		cacheKey := fmt.Sprintf("research:%s:%s", resort.Slug, topic.name)

		if !force {
			if cached, err := h.redis.Get(ctx, cacheKey); err == nil && cached != "" {
				var hits []search.Result
				if err := json.Unmarshal([]byte(cached), &hits); err == nil {
					results[topic.name] = hits
					continue
				}
			}
		}

		hits, err := h.search.Search(ctx, fmt.Sprintf(topic.query, resort.Name), h.config.MaxResultsPerTopic)
		if err != nil {
			h.logger.Warn("topic search failed", map[string]interface{}{
				"slug":  resort.Slug,
				"topic": topic.name,
				"error": err.Error(),
			})
			continue
		}
		results[topic.name] = hits

		if payload, err := json.Marshal(hits); err == nil {
			if err := h.redis.Set(ctx, cacheKey, payload, h.config.CacheTTL); err != nil {
				h.logger.Warn("failed to cache topic results", map[string]interface{}{
					"slug":  resort.Slug,
					"topic": topic.name,
					"error": err.Error(),
				})
			}
		}
	}

	return results
}

// storeReviews keeps usable parent-review snippets. Failures here degrade:
// a lost snippet is not worth failing the research run over.
func (h *Handler) storeReviews(ctx context.Context, resortID string, hits []search.Result) int {
	added := 0
	for _, hit := range hits {
		body := strings.TrimSpace(hit.Snippet)
		if len(body) < minReviewSnippet {
			continue
		}

		review := &models.Review{
			ResortID: resortID,
			Source:   hit.URL,
			Body:     body,
		}
		if err := h.store.AddReview(ctx, review); err != nil {
			h.logger.Warn("failed to store review snippet", map[string]interface{}{
				"resortId": resortID,
				"source":   hit.URL,
				"error":    err.Error(),
			})
			continue
		}
		added++
	}
	return added
}

func (h *Handler) extractMetricsPatch(ctx context.Context, resort *models.Resort, topicResults map[string][]search.Result) (*models.FamilyMetrics, error) {
	genResp, err := h.genai.Generate(ctx, &genai.Request{
		Operation: "metrics_extraction",
		Prompt:    h.buildExtractionPrompt(resort, topicResults),
	})
	if err != nil {
		if errors.Is(err, genai.ErrTimeout) {
			return nil, apperrors.NewLLMTimeoutError()
		}
		return nil, apperrors.NewMetricsExtractionFailedError(resort.Slug, err)
	}

	raw := genai.ExtractJSON(genResp.Text)
	if err := validation.ValidateJSON(validation.MetricsPatchSchema, []byte(raw)); err != nil {
		return nil, apperrors.NewMetricsExtractionFailedError(resort.Slug, err)
	}

	var patch models.FamilyMetrics
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return nil, apperrors.NewMetricsExtractionFailedError(resort.Slug, err)
	}

	return &patch, nil
}

func (h *Handler) buildExtractionPrompt(resort *models.Resort, topicResults map[string][]search.Result) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Extract family-skiing facts about the resort %q (%s) from the search snippets below.", resort.Name, resort.Country))

	for _, topic := range researchTopics {
		if topic.name == topicReviews {
			continue
		}
		hits := topicResults[topic.name]
		if len(hits) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("\n## %s", topic.name))
		for _, hit := range hits {
			parts = append(parts, fmt.Sprintf("- %s: %s", hit.Title, hit.Snippet))
		}
	}

	parts = append(parts, "\nRespond with a JSON object using only these fields:")
	parts = append(parts, `{"hasChildcare": <bool>, "kidsEquipmentRental": <bool>, "minSkiSchoolAge": <int>, "hasMagicCarpet": <bool>, "beginnerTerrainPct": <number 0-100>, "avgDayPassUsd": <number>, "transferTimeMinutes": <int>, "familyLodgingOnSlope": <bool>, "bestAgeRange": "<e.g. 3-10>", "nightSkiing": <bool>}`)
	parts = append(parts, "Include only fields the snippets clearly support. Omit everything unknown.")

	return strings.Join(parts, "\n")
}

// mergeMetrics lays the patch over the stored metrics. Fields the model
// omitted keep their stored value, so repeated research runs accumulate
// knowledge instead of erasing it.
func mergeMetrics(existing, patch *models.FamilyMetrics) (*models.FamilyMetrics, int) {
	merged := *existing
	extracted := 0

	if patch.HasChildcare != nil {
		merged.HasChildcare = patch.HasChildcare
		extracted++
	}
	if patch.KidsEquipmentRental != nil {
		merged.KidsEquipmentRental = patch.KidsEquipmentRental
		extracted++
	}
	if patch.MinSkiSchoolAge != nil {
		merged.MinSkiSchoolAge = patch.MinSkiSchoolAge
		extracted++
	}
	if patch.HasMagicCarpet != nil {
		merged.HasMagicCarpet = patch.HasMagicCarpet
		extracted++
	}
	if patch.BeginnerTerrainPct != nil {
		merged.BeginnerTerrainPct = patch.BeginnerTerrainPct
		extracted++
	}
	if patch.AvgDayPassUSD != nil {
		merged.AvgDayPassUSD = patch.AvgDayPassUSD
		extracted++
	}
	if patch.TransferTimeMinutes != nil {
		merged.TransferTimeMinutes = patch.TransferTimeMinutes
		extracted++
	}
	if patch.FamilyLodgingOnSlope != nil {
		merged.FamilyLodgingOnSlope = patch.FamilyLodgingOnSlope
		extracted++
	}
	if patch.BestAgeRange != nil {
		merged.BestAgeRange = patch.BestAgeRange
		extracted++
	}
	if patch.NightSkiing != nil {
		merged.NightSkiing = patch.NightSkiing
		extracted++
	}

	return &merged, extracted
}

func classifyError(err error) (string, int32) {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		bpmnErr := apperrors.ConvertToBPMNError(stdErr)
		return bpmnErr.Code, int32(bpmnErr.Retries)
	}
	return "UNKNOWN_ERROR", 0
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, sendErr := cmd.Send(context.Background()); sendErr != nil {
		h.logger.Error("failed to send complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, message string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":        job.Key,
		"errorCode":     errorCode,
		"errorCategory": apperrors.GetErrorCategory(apperrors.ErrorCode(errorCode)),
		"error":         message,
	})

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(message).
		Send(context.Background())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
