package processturn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/common/validation"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"
)

const (
	TaskType = "process-turn"
)

// inputSchema checks the job variables this worker reads. Other process
// variables pass through untouched.
var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"sessionId": {"type": "string", "maxLength": 64},
		"message":   {"type": "string", "maxLength": 4000},
		"reset":     {"type": "boolean"}
	}
}`)

// Sessions is satisfied by *conversation.Manager.
type Sessions interface {
	Start(ctx context.Context) (models.Snapshot, error)
	Send(ctx context.Context, id, text string) (*conversation.TurnResult, error)
	Reset(ctx context.Context, id string) (models.Snapshot, error)
}

type Handler struct {
	config     *Config
	sessions   Sessions
	errHandler *errors.JobErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, sessions Sessions, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:     config,
		sessions:   sessions,
		errHandler: errors.NewJobErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput([]byte(job.Variables))
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInvalidRequest)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(vars []byte) (*Input, error) {
	result, err := inputSchema.ValidateJSON(vars)
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal(vars, &input); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" && input.Reset {
		return nil, errors.NewInvalidRequestError("reset requires a sessionId")
	}

	var snap models.Snapshot
	var err error
	out := &Output{}

	switch {
	case input.SessionID == "":
		snap, err = h.sessions.Start(ctx)
	case input.Reset:
		snap, err = h.sessions.Reset(ctx, input.SessionID)
	}
	if err != nil {
		return nil, err
	}
	if snap.SessionID != "" {
		input.SessionID = snap.SessionID
		if n := len(snap.Messages); n > 0 {
			out.Reply = snap.Messages[n-1].Text
		}
	}

	if input.Message != "" {
		res, err := h.sessions.Send(ctx, input.SessionID, input.Message)
		if err != nil {
			return nil, err
		}
		snap = res.Snapshot
		out.Reply = res.Reply
		out.NewDecision = res.NewDecision
		if res.Failure != nil {
			out.TurnError = string(errors.CodeOf(res.Failure))
		}
	}

	if snap.SessionID == "" {
		return nil, errors.NewInvalidRequestError("nothing to do: provide a message, reset or no sessionId")
	}

	out.SessionID = snap.SessionID
	out.State = snap.State
	out.Decision = snap.Decision
	out.ExtractedFields = snap.ExtractedFields
	out.ReviewRequired = snap.Decision != nil && snap.Decision.Status == models.DecisionConditional

	h.logger.Info("turn job processed", map[string]interface{}{
		"sessionId":   out.SessionID,
		"state":       string(out.State),
		"newDecision": out.NewDecision,
		"turnError":   out.TurnError,
	})
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
