// internal/workers/discovery/discover-resorts/handler.go
package discoverresorts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
	"familyski-workers/internal/common/search"
	"familyski-workers/internal/common/validation"
	"familyski-workers/internal/models"
	"familyski-workers/internal/store"
)

const (
	TaskType = "discover-resorts"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

type Handler struct {
	config *Config
	store  *store.Store
	search *search.Client
	genai  *genai.Client
	logger logger.Logger
}

func NewHandler(config *Config, st *store.Store, searchClient *search.Client, genaiClient *genai.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  st,
		search: searchClient,
		genai:  genaiClient,
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

// execute finds candidate resorts for the region, extracts a structured list
// from the model, and inserts the ones the directory has not seen before.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Country == "" {
		return nil, apperrors.NewValidationError("country is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > h.config.MaxCandidates {
		limit = h.config.MaxCandidates
	}

	results, err := h.search.Search(ctx, h.buildQuery(input), limit)
	if err != nil {
		if errors.Is(err, search.ErrSearchTimeout) {
			return nil, apperrors.NewWebSearchTimeoutError()
		}
		// Discovery can still run on model knowledge alone.
		h.logger.Warn("web search failed, discovering without snippets", map[string]interface{}{
			"error": err.Error(),
		})
		results = nil
	}

	genResp, err := h.genai.Generate(ctx, &genai.Request{
		Operation: "resort_discovery",
		Prompt:    h.buildPrompt(input, results, limit),
	})
	if err != nil {
		if errors.Is(err, genai.ErrTimeout) {
			return nil, apperrors.NewLLMTimeoutError()
		}
		return nil, apperrors.NewLLMGenerationFailedError(err)
	}

	raw := genai.ExtractJSON(genResp.Text)
	if err := validation.ValidateJSON(validation.DiscoveryListSchema, []byte(raw)); err != nil {
		return nil, apperrors.NewDiscoveryParsingFailedError(err)
	}

	var list discoveryList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, apperrors.NewDiscoveryParsingFailedError(err)
	}

	if len(list.Resorts) > limit {
		list.Resorts = list.Resorts[:limit]
	}

	seen := make(map[string]bool)
	created := []string{}
	skipped := []string{}

	for _, candidate := range list.Resorts {
		slug := slugify(candidate.Name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		resort := &models.Resort{
			Slug:    slug,
			Name:    strings.TrimSpace(candidate.Name),
			Country: candidate.Country,
			Region:  candidate.Region,
			Status:  models.StatusDiscovered,
		}
		if err := h.store.CreateResort(ctx, resort); err != nil {
			var stdErr *apperrors.StandardError
			if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeDuplicateResort {
				skipped = append(skipped, slug)
				continue
			}
			return nil, err
		}

		created = append(created, slug)
		h.logger.Info("resort discovered", map[string]interface{}{
			"slug":    slug,
			"country": candidate.Country,
		})
	}

	h.logger.Info("discovery completed", map[string]interface{}{
		"country": input.Country,
		"region":  input.Region,
		"created": len(created),
		"skipped": len(skipped),
	})

	return &Output{
		Created: created,
		Skipped: skipped,
		Total:   len(created) + len(skipped),
	}, nil
}

func (h *Handler) buildQuery(input *Input) string {
	query := "family friendly ski resorts " + input.Country
	if input.Region != "" {
		query = "family friendly ski resorts " + input.Region + " " + input.Country
	}
	return query
}

func (h *Handler) buildPrompt(input *Input, results []search.Result, limit int) string {
	location := input.Country
	if input.Region != "" {
		location = input.Region + ", " + input.Country
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("List ski resorts in %s that are good candidates for a family ski directory.", location))

	if len(results) > 0 {
		parts = append(parts, "\nSearch results:")
		for _, r := range results {
			parts = append(parts, fmt.Sprintf("- %s: %s", r.Title, r.Snippet))
		}
	}

	parts = append(parts, "\nRespond with JSON exactly in this form:")
	parts = append(parts, `{"resorts": [{"name": "<official resort name>", "country": "<country>", "region": "<region>"}]}`)
	parts = append(parts, fmt.Sprintf("Include at most %d resorts.", limit))

	return strings.Join(parts, "\n")
}

// slugify turns a resort name into the directory's URL slug.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
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
