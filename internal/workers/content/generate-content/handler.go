// internal/workers/content/generate-content/handler.go
package generatecontent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
	"familyski-workers/internal/models"
	"familyski-workers/internal/store"
)

const (
	TaskType = "generate-content"

	// minSectionBody rejects degenerate generations. Anything under this
	// is a refusal or a fragment, not publishable prose.
	minSectionBody = 80

	// maxReviewExcerpt caps how much raw review text goes into a prompt.
	maxReviewExcerpt = 1500

	systemPrompt = "You are a travel writer for a family ski directory. " +
		"Write factual, practical prose for parents planning a ski trip with children. " +
		"Use only the facts provided. Do not invent prices, ages, or amenities."
)

// sectionGuidance steers each prompt toward what parents actually ask
// about for that part of the page.
var sectionGuidance = map[string]string{
	models.SectionOverview:    "Summarize the resort's overall suitability for families: atmosphere, terrain character, and who it suits best.",
	models.SectionLodging:     "Cover family lodging: ski-in/ski-out availability, apartments vs hotels, and what to book for small children.",
	models.SectionLiftTickets: "Explain lift ticket pricing for families: day pass costs, child discounts, and beginner-area access.",
	models.SectionSkiSchool:   "Describe the ski school offer: minimum ages, group vs private lessons, and beginner facilities like magic carpets.",
	models.SectionChildcare:   "Describe childcare and nursery options for children too young to ski.",
	models.SectionDining:      "Cover family dining: on-mountain options, high chairs, kids' menus, and self-catering alternatives.",
	models.SectionLogistics:   "Cover getting there and around: airport transfers, parking, strollers, and equipment logistics with kids in tow.",
}

type Handler struct {
	config *Config
	store  *store.Store
	genai  *genai.Client
	logger logger.Logger
}

func NewHandler(config *Config, st *store.Store, genaiClient *genai.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  st,
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

// execute generates prose sections for one resort. Individual section
// failures degrade; the job only fails when nothing at all was produced
// or a write fails.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Slug == "" {
		return nil, apperrors.NewValidationError("slug is required")
	}

	sections, err := resolveSections(input.Sections)
	if err != nil {
		return nil, err
	}

	resort, err := h.store.GetResortBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	familyMetrics, err := h.store.GetMetrics(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	existing, err := h.store.GetContentSections(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	reviews, err := h.store.GetAggregatedReviews(ctx, resort.ID)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Slug:      resort.Slug,
		Generated: []string{},
	}

	var lastErr error
	for _, section := range sections {
		if !input.Force && existing[section] != "" {
			output.Skipped = append(output.Skipped, section)
			continue
		}

		body, err := h.generateSection(ctx, resort, section, familyMetrics, reviews)
		if err != nil {
			if errors.Is(err, genai.ErrTimeout) && ctx.Err() != nil {
				// The job itself is out of time; no point grinding
				// through the remaining sections.
				return nil, apperrors.NewLLMTimeoutError()
			}
			h.logger.Warn("section generation failed", map[string]interface{}{
				"slug":    resort.Slug,
				"section": section,
				"error":   err.Error(),
			})
			output.Failed = append(output.Failed, section)
			lastErr = err
			continue
		}

		if err := h.store.UpsertContentSection(ctx, resort.ID, section, body); err != nil {
			return nil, err
		}
		output.Generated = append(output.Generated, section)
	}

	if len(output.Generated) == 0 && len(output.Failed) > 0 {
		return nil, apperrors.NewContentGenerationFailedError(strings.Join(output.Failed, ", "), lastErr)
	}

	status := resort.Status
	if len(output.Generated) > 0 && status == models.StatusResearched {
		if err := h.store.UpdateStatus(ctx, resort.ID, models.StatusDraft); err != nil {
			return nil, err
		}
		status = models.StatusDraft
	}
	output.Status = string(status)

	h.logger.Info("content generated", map[string]interface{}{
		"slug":      resort.Slug,
		"generated": len(output.Generated),
		"skipped":   len(output.Skipped),
		"failed":    len(output.Failed),
	})

	return output, nil
}

func (h *Handler) generateSection(ctx context.Context, resort *models.Resort, section string, familyMetrics *models.FamilyMetrics, reviews string) (string, error) {
	genResp, err := h.genai.Generate(ctx, &genai.Request{
		Operation:   "content_generation",
		System:      systemPrompt,
		Prompt:      buildSectionPrompt(resort, section, familyMetrics, reviews),
		MaxTokens:   h.config.SectionMaxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	body := strings.TrimSpace(genResp.Text)
	if len(body) < minSectionBody {
		return "", apperrors.NewContentValidationFailedError(
			fmt.Sprintf("section %s: generated body too short (%d chars)", section, len(body)))
	}
	return body, nil
}

func buildSectionPrompt(resort *models.Resort, section string, familyMetrics *models.FamilyMetrics, reviews string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Resort: %s (%s, %s)", resort.Name, resort.Region, resort.Country))
	parts = append(parts, fmt.Sprintf("Section: %s", section))

	if guidance, ok := sectionGuidance[section]; ok {
		parts = append(parts, guidance)
	} else {
		parts = append(parts, "Write this section of the resort's family guide.")
	}

	if facts := formatMetricFacts(familyMetrics); len(facts) > 0 {
		parts = append(parts, "\nKnown facts:")
		parts = append(parts, facts...)
	}

	if excerpt := strings.TrimSpace(reviews); excerpt != "" {
		if len(excerpt) > maxReviewExcerpt {
			excerpt = excerpt[:maxReviewExcerpt]
		}
		parts = append(parts, "\nWhat parents say:")
		parts = append(parts, excerpt)
	}

	parts = append(parts, "\nWrite 2-3 paragraphs of plain prose. No headings, no bullet lists.")
	return strings.Join(parts, "\n")
}

// formatMetricFacts renders the known metrics as prompt lines. Unknown
// fields are left out entirely so the model cannot anchor on them.
func formatMetricFacts(m *models.FamilyMetrics) []string {
	var facts []string
	yesNo := func(v bool) string {
		if v {
			return "yes"
		}
		return "no"
	}

	if m.HasChildcare != nil {
		facts = append(facts, fmt.Sprintf("- childcare available: %s", yesNo(*m.HasChildcare)))
	}
	if m.KidsEquipmentRental != nil {
		facts = append(facts, fmt.Sprintf("- kids equipment rental: %s", yesNo(*m.KidsEquipmentRental)))
	}
	if m.MinSkiSchoolAge != nil {
		facts = append(facts, fmt.Sprintf("- minimum ski school age: %d", *m.MinSkiSchoolAge))
	}
	if m.HasMagicCarpet != nil {
		facts = append(facts, fmt.Sprintf("- magic carpet lift: %s", yesNo(*m.HasMagicCarpet)))
	}
	if m.BeginnerTerrainPct != nil {
		facts = append(facts, fmt.Sprintf("- beginner terrain: %.0f%%", *m.BeginnerTerrainPct))
	}
	if m.AvgDayPassUSD != nil {
		facts = append(facts, fmt.Sprintf("- average adult day pass: $%.0f", *m.AvgDayPassUSD))
	}
	if m.TransferTimeMinutes != nil {
		facts = append(facts, fmt.Sprintf("- airport transfer: %d minutes", *m.TransferTimeMinutes))
	}
	if m.FamilyLodgingOnSlope != nil {
		facts = append(facts, fmt.Sprintf("- ski-in/ski-out family lodging: %s", yesNo(*m.FamilyLodgingOnSlope)))
	}
	if m.BestAgeRange != nil {
		facts = append(facts, fmt.Sprintf("- best suited for ages: %s", *m.BestAgeRange))
	}
	if m.NightSkiing != nil {
		facts = append(facts, fmt.Sprintf("- night skiing: %s", yesNo(*m.NightSkiing)))
	}

	return facts
}

func resolveSections(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return models.CanonicalSections(), nil
	}

	canonical := make(map[string]bool)
	for _, s := range models.CanonicalSections() {
		canonical[s] = true
	}

	sections := make([]string, 0, len(requested))
	seen := make(map[string]bool)
	for _, s := range requested {
		if !canonical[s] {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown content section: %s", s))
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		sections = append(sections, s)
	}
	return sections, nil
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
