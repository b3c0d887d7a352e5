// internal/workers/scoring/score-resort/handler.go
package scoreresort

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
	"familyski-workers/internal/models"
	"familyski-workers/internal/scoring"
	"familyski-workers/internal/store"
)

const (
	TaskType = "score-resort"
)

type Handler struct {
	config  *Config
	store   *store.Store
	content *scoring.ContentAssessor
	review  *scoring.ReviewAssessor
	logger  logger.Logger
}

func NewHandler(config *Config, st *store.Store, content *scoring.ContentAssessor, review *scoring.ReviewAssessor, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		store:   st,
		content: content,
		review:  review,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

// execute runs one full scoring pass: structural score from stored metrics,
// then content and review assessments in parallel, then the composite blend,
// persisted as a single overwrite. The LLM signals are optional; the
// structural score is not.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Slug == "" {
		return nil, apperrors.NewValidationError("slug is required")
	}

	resort, err := h.store.GetResortBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	familyMetrics, err := h.store.GetMetrics(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	structural := scoring.CalculateStructuralScore(*familyMetrics)
	completeness := scoring.CalculateDataCompleteness(*familyMetrics)

	sections, err := h.store.GetContentSections(ctx, resort.ID)
	if err != nil {
		return nil, err
	}
	reviews, err := h.store.GetAggregatedReviews(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	// The two assessments have no data dependency; run them together and
	// join before compositing. Either may come back nil.
	var (
		assessment  *models.Assessment
		reviewScore *float64
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		assessCtx, cancel := context.WithTimeout(ctx, h.config.AssessorTimeout)
		defer cancel()
		assessment = h.content.AssessFamilyFriendliness(assessCtx, resort.Name, resort.Country, sections)
	}()

	if len(reviews) >= scoring.MinReviewLength {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assessCtx, cancel := context.WithTimeout(ctx, h.config.AssessorTimeout)
			defer cancel()
			reviewScore = h.review.AssessReviewSentiment(assessCtx, resort.Name, reviews)
		}()
	} else {
		h.logger.Info("skipping review sentiment, not enough review text", map[string]interface{}{
			"slug":         resort.Slug,
			"reviewLength": len(reviews),
		})
	}

	wg.Wait()

	var contentScore *float64
	var dimensions models.DimensionScores
	var reasoning string
	if assessment != nil {
		contentScore = &assessment.OverallScore
		dimensions = assessment.Dimensions
		reasoning = assessment.Reasoning
	}

	composite := scoring.CalculateCompositeFamilyScore(structural, contentScore, reviewScore, dimensions, reasoning)

	if err := h.store.SaveCompositeScore(ctx, resort.ID, &composite); err != nil {
		return nil, err
	}

	metrics.ScoresComputed.WithLabelValues(string(composite.Confidence)).Inc()

	signals := 1
	if contentScore != nil {
		signals++
	}
	if reviewScore != nil {
		signals++
	}

	h.logger.Info("resort scored", map[string]interface{}{
		"slug":        resort.Slug,
		"familyScore": composite.FamilyScore,
		"confidence":  string(composite.Confidence),
		"signals":     signals,
	})

	return &Output{
		Slug:             resort.Slug,
		FamilyScore:      composite.FamilyScore,
		StructuralScore:  composite.StructuralScore,
		Confidence:       string(composite.Confidence),
		DataCompleteness: completeness,
		SignalsUsed:      signals,
		ScoredAt:         composite.ScoredAt.Format(time.RFC3339),
	}, nil
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
