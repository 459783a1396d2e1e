package askcustomerinsights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/session"
	"customer-insights/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "ask-customer-insights"

// Resolver is satisfied by *dispatch.Dispatcher.
type Resolver interface {
	Resolve(ctx context.Context, question, customerScope string) dispatch.Result
}

type Handler struct {
	config       *Config
	resolver     Resolver
	history      session.Store
	validator    *registry.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. history and validator may be nil.
func NewHandler(config *Config, resolver Resolver, history session.Store, validator *registry.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		resolver:     resolver,
		history:      history,
		validator:    validator,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	if h.validator != nil {
		result, err := h.validator.ValidateInput(TaskType, variables)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		if !result.Valid {
			return nil, errors.NewInvalidInputError(
				fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
		}
	}

	input := &Input{}
	if err := job.GetVariablesAs(input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return input, nil
}

// Execute answers the question. Only invalid input is an error: backend
// failures are absorbed by the dispatcher and history failures are logged.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Question) == "" {
		return nil, errors.NewInvalidInputError("question is required")
	}
	question := strings.TrimSpace(input.Question)
	customerID := strings.TrimSpace(input.CustomerID)

	result := h.resolver.Resolve(ctx, question, customerID)

	output := &Output{
		Message:   result.Response.Message,
		Data:      result.Response.Data,
		Chart:     result.Response.Chart,
		Outcome:   string(result.Outcome),
		Source:    result.Source(),
		ErrorCode: result.Code(),
		Error:     result.StandardError(),
		RequestID: uuid.NewString(),
	}

	if input.SessionID != "" && h.history != nil {
		err := h.history.Append(ctx, input.SessionID,
			session.NewUserMessage(question),
			session.NewAssistantMessage(result.Response),
		)
		if err != nil {
			h.logger.Warn("failed to record conversation history", map[string]interface{}{
				"sessionId": input.SessionID,
				"error":     err.Error(),
			})
		} else {
			output.HistorySaved = true
		}
	}

	fields := map[string]interface{}{
		"requestId":  output.RequestID,
		"source":     output.Source,
		"outcome":    output.Outcome,
		"scoped":     customerID != "",
		"hasData":    output.Data != nil,
		"durationMs": result.Duration.Milliseconds(),
	}
	if output.Error != nil {
		fields["errorCode"] = string(output.Error.Code)
		fields["errorCategory"] = errors.GetErrorCategory(output.Error.Code)
	}
	h.logger.Info("question answered", fields)

	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		h.fail(ctx, client, job, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
