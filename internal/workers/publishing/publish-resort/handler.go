// internal/workers/publishing/publish-resort/handler.go
package publishresort

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"familyski-workers/internal/common/cms"
	"familyski-workers/internal/common/database"
	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
	"familyski-workers/internal/models"
	"familyski-workers/internal/store"
)

const (
	TaskType = "publish-resort"

	ActionPublish   = "publish"
	ActionUnpublish = "unpublish"

	OutcomePublished   = "published"
	OutcomeFlagged     = "flagged"
	OutcomeUnpublished = "unpublished"
)

var pathPattern = regexp.MustCompile(`[^a-z0-9]+`)

type Handler struct {
	config *Config
	store  *store.Store
	es     *elasticsearch.Client
	cms    *cms.Client
	redis  *database.RedisClient
	logger logger.Logger
}

func NewHandler(config *Config, st *store.Store, esClient *elasticsearch.Client, cmsClient *cms.Client, redisClient *database.RedisClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  st,
		es:     esClient,
		cms:    cmsClient,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Slug == "" {
		return nil, apperrors.NewValidationError("slug is required")
	}

	action := input.Action
	if action == "" {
		action = ActionPublish
	}
	if action != ActionPublish && action != ActionUnpublish {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown action: %s", input.Action))
	}

	resort, err := h.store.GetResortBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if action == ActionUnpublish {
		return h.unpublish(ctx, resort)
	}
	return h.publish(ctx, resort)
}

// publish gates on the composite score and, when it passes, pushes the
// resort out to everything the public site reads: the directory index,
// the CMS pages, and the page cache.
func (h *Handler) publish(ctx context.Context, resort *models.Resort) (*Output, error) {
	score, err := h.store.GetCompositeScore(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	if score.FamilyScore < h.config.PublishThreshold || score.Confidence == models.ConfidenceLow {
		if err := h.store.UpdateStatus(ctx, resort.ID, models.StatusInReview); err != nil {
			return nil, err
		}
		metrics.ResortsPublished.WithLabelValues(OutcomeFlagged).Inc()

		h.logger.Info("resort flagged for editorial review", map[string]interface{}{
			"slug":        resort.Slug,
			"familyScore": score.FamilyScore,
			"confidence":  string(score.Confidence),
			"threshold":   h.config.PublishThreshold,
		})

		return &Output{
			Slug:        resort.Slug,
			Outcome:     OutcomeFlagged,
			FamilyScore: score.FamilyScore,
			Confidence:  string(score.Confidence),
			Reasoning:   score.Reasoning,
			Status:      string(models.StatusInReview),
		}, nil
	}

	sections, err := h.store.GetContentSections(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	if err := h.indexDocument(ctx, buildDocument(resort, score, sections)); err != nil {
		return nil, err
	}

	revalidated, err := h.revalidate(ctx, resort)
	if err != nil {
		return nil, err
	}

	h.bumpPageCache(ctx, resort.Slug)

	if err := h.store.UpdateStatus(ctx, resort.ID, models.StatusPublished); err != nil {
		return nil, err
	}
	metrics.ResortsPublished.WithLabelValues(OutcomePublished).Inc()

	h.logger.Info("resort published", map[string]interface{}{
		"slug":        resort.Slug,
		"familyScore": score.FamilyScore,
		"confidence":  string(score.Confidence),
	})

	return &Output{
		Slug:        resort.Slug,
		Outcome:     OutcomePublished,
		FamilyScore: score.FamilyScore,
		Confidence:  string(score.Confidence),
		Status:      string(models.StatusPublished),
		Revalidated: revalidated,
	}, nil
}

// unpublish reverses publication: drops the index entry, rebuilds the
// affected pages, and parks the resort in the unpublished status.
func (h *Handler) unpublish(ctx context.Context, resort *models.Resort) (*Output, error) {
	if err := h.deleteDocument(ctx, resort.Slug); err != nil {
		return nil, err
	}

	revalidated, err := h.revalidate(ctx, resort)
	if err != nil {
		return nil, err
	}

	h.bumpPageCache(ctx, resort.Slug)

	if err := h.store.UpdateStatus(ctx, resort.ID, models.StatusUnpublished); err != nil {
		return nil, err
	}
	metrics.ResortsPublished.WithLabelValues(OutcomeUnpublished).Inc()

	h.logger.Info("resort unpublished", map[string]interface{}{
		"slug": resort.Slug,
	})

	return &Output{
		Slug:        resort.Slug,
		Outcome:     OutcomeUnpublished,
		Status:      string(models.StatusUnpublished),
		Revalidated: revalidated,
	}, nil
}

func (h *Handler) indexDocument(ctx context.Context, doc *resortDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewIndexSyncFailedError(doc.Slug, err)
	}

	req := esapi.IndexRequest{
		Index:      h.config.IndexName,
		DocumentID: doc.Slug,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, h.es)
	if err != nil {
		return apperrors.NewIndexSyncFailedError(doc.Slug, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewIndexSyncFailedError(doc.Slug, fmt.Errorf("index request returned %s", res.Status()))
	}
	return nil
}

func (h *Handler) deleteDocument(ctx context.Context, slug string) error {
	req := esapi.DeleteRequest{
		Index:      h.config.IndexName,
		DocumentID: slug,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, h.es)
	if err != nil {
		return apperrors.NewIndexSyncFailedError(slug, err)
	}
	defer res.Body.Close()

	// A missing document is already the state we want.
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return apperrors.NewIndexSyncFailedError(slug, fmt.Errorf("delete request returned %s", res.Status()))
	}
	return nil
}

func (h *Handler) revalidate(ctx context.Context, resort *models.Resort) ([]string, error) {
	result, err := h.cms.RevalidatePaths(ctx, h.sitePaths(resort))
	if err != nil {
		return nil, err
	}
	return result.Revalidated, nil
}

// sitePaths returns the resort page plus the country listing it appears on.
func (h *Handler) sitePaths(resort *models.Resort) []string {
	return []string{
		fmt.Sprintf("%s/%s", h.config.SitePathBase, resort.Slug),
		fmt.Sprintf("%s/%s", h.config.SitePathBase, listingSlug(resort.Country)),
	}
}

// bumpPageCache advances the page-cache generation counter so cached
// renders of the resort page stop being served. The cache falls back to
// TTL expiry if Redis is unavailable, so failures only warn.
func (h *Handler) bumpPageCache(ctx context.Context, slug string) {
	key := fmt.Sprintf("pagecache:resort:%s:generation", slug)
	if _, err := h.redis.Incr(ctx, key); err != nil {
		h.logger.Warn("failed to bump page cache generation", map[string]interface{}{
			"slug":  slug,
			"error": err.Error(),
		})
	}
}

func buildDocument(resort *models.Resort, score *models.CompositeScore, sections models.ContentSections) *resortDocument {
	doc := &resortDocument{
		Slug:            resort.Slug,
		Name:            resort.Name,
		Country:         resort.Country,
		Region:          resort.Region,
		FamilyScore:     score.FamilyScore,
		StructuralScore: score.StructuralScore,
		Confidence:      string(score.Confidence),
		Reasoning:       score.Reasoning,
		Dimensions:      score.Dimensions,
		Sections:        sections,
		PublishedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if !score.ScoredAt.IsZero() {
		doc.ScoredAt = score.ScoredAt.UTC().Format(time.RFC3339)
	}
	return doc
}

func listingSlug(country string) string {
	s := pathPattern.ReplaceAllString(strings.ToLower(country), "-")
	return strings.Trim(s, "-")
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
