package searchcustomerdocuments

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"customer-insights/internal/common/errors"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/metrics"
	"customer-insights/internal/search"
	"customer-insights/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "search-customer-documents"

// Searcher is satisfied by *search.Searcher.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	config       *Config
	searcher     Searcher
	validator    *registry.Validator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, searcher Searcher, validator *registry.Validator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		searcher:     searcher,
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
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
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

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	result, err := h.searcher.Search(ctx, search.Query{
		Text:         input.Query,
		CustomerTier: input.CustomerTier,
		DocumentType: input.DocumentType,
		Limit:        input.Limit,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	return &Output{
		Documents: result.Documents,
		Total:     result.Total,
		Took:      result.Took,
	}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case stderrors.Is(err, search.ErrEmptyQuery):
		return errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, search.ErrSearchTimeout):
		return errors.NewSearchTimeoutError(h.config.Index)
	case stderrors.Is(err, search.ErrIndexNotFound):
		return errors.NewIndexNotFoundError(h.config.Index)
	default:
		return errors.NewSearchQueryFailedError(h.config.Index, err)
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
