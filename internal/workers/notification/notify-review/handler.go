// internal/workers/notification/notify-review/handler.go
package notifyreview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "familyski-workers/internal/common/errors"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/metrics"
)

const (
	TaskType = "notify-review"
)

// EmailSender delivers the editorial review email. Satisfied by the SES
// client.
type EmailSender interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) (string, error)
}

// TopicPublisher delivers the ops alert. Satisfied by the SNS client.
type TopicPublisher interface {
	PublishJSON(ctx context.Context, topicARN, subject string, payload interface{}) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	topic  TopicPublisher
	logger logger.Logger
}

func NewHandler(config *Config, email EmailSender, topic TopicPublisher, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		email:  email,
		topic:  topic,
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

// execute fans the alert out to both channels. One failing channel
// degrades; the job only fails when every enabled channel failed, so a
// retry can still reach someone.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Slug == "" {
		return nil, apperrors.NewValidationError("slug is required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	alert := &reviewAlert{
		NotificationID: uuid.New().String(),
		Slug:           input.Slug,
		FamilyScore:    input.FamilyScore,
		Confidence:     input.Confidence,
		Reasoning:      input.Reasoning,
		FlaggedAt:      now,
	}

	output := &Output{
		NotificationID: alert.NotificationID,
		Slug:           input.Slug,
		EmailStatus:    ChannelDisabled,
		SNSStatus:      ChannelDisabled,
		NotifiedAt:     now,
	}

	var lastErr error

	if h.config.EmailEnabled {
		messageID, err := h.email.SendPlainEmail(ctx,
			h.config.FromEmail, h.config.EditorialEmail,
			fmt.Sprintf("Resort flagged for review: %s", input.Slug),
			buildEmailBody(alert))
		if err != nil {
			h.logger.Warn("editorial email failed", map[string]interface{}{
				"slug":  input.Slug,
				"error": err.Error(),
			})
			output.EmailStatus = ChannelFailed
			lastErr = err
		} else {
			output.EmailStatus = ChannelSent
			output.EmailMessageID = messageID
		}
	}

	if h.config.SNSEnabled {
		messageID, err := h.topic.PublishJSON(ctx, h.config.TopicARN,
			fmt.Sprintf("resort-flagged:%s", input.Slug), alert)
		if err != nil {
			h.logger.Warn("ops topic publish failed", map[string]interface{}{
				"slug":  input.Slug,
				"error": err.Error(),
			})
			output.SNSStatus = ChannelFailed
			lastErr = err
		} else {
			output.SNSStatus = ChannelSent
			output.SNSMessageID = messageID
		}
	}

	enabledAllFailed := (h.config.EmailEnabled || h.config.SNSEnabled) &&
		output.EmailStatus != ChannelSent && output.SNSStatus != ChannelSent &&
		lastErr != nil
	if enabledAllFailed {
		return nil, apperrors.NewNotificationSendFailedError("email,sns", lastErr)
	}

	h.logger.Info("review notification delivered", map[string]interface{}{
		"slug":           input.Slug,
		"notificationId": alert.NotificationID,
		"emailStatus":    output.EmailStatus,
		"snsStatus":      output.SNSStatus,
	})

	return output, nil
}

func buildEmailBody(alert *reviewAlert) string {
	return fmt.Sprintf(
		"Resort %q needs an editorial decision before it can go live.\n\n"+
			"Family score: %.2f\n"+
			"Confidence:   %s\n"+
			"Reasoning:    %s\n\n"+
			"Notification: %s\n",
		alert.Slug, alert.FamilyScore, alert.Confidence, alert.Reasoning, alert.NotificationID)
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
