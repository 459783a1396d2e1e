package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns a handler error into a Zeebe fail or throw command.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries when the error is retryable and the job
// still has retries left, and throws a BPMN error otherwise.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	vars := variablesJSON(bpmnErr)

	if ShouldRetry(stdErr, job.Retries) {
		remaining := retriesLeft(job.Retries, GetRetryCount(stdErr.Code))
		backoff := RetryBackoff(stdErr.Code)
		h.logger.Warn("job failed, engine will retry", h.fields(job, stdErr, map[string]interface{}{
			"retriesLeft": remaining,
			"backoff":     backoff.String(),
		}))

		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(remaining).
			RetryBackoff(backoff).
			ErrorMessage(bpmnErr.Message)
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	h.logger.Error("job failed, throwing BPMN error", h.fields(job, stdErr, map[string]interface{}{
		"bpmnErrorCode": bpmnErr.Code,
	}))

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)
	if withVars, err := cmd.VariablesFromString(vars); err == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}

// Normalize ensures we always have a StandardError, unwrapping when one is nested.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

func ShouldRetry(stdErr *StandardError, jobRetries int32) bool {
	return stdErr.Retryable && GetRetryCount(stdErr.Code) > 0 && jobRetries > 0
}

// RetryBackoff is the delay before the engine re-activates a failed job.
func RetryBackoff(code ErrorCode) time.Duration {
	switch code {
	case ErrCodeSearchTimeout, ErrCodeUpstreamTimeout:
		return 5 * time.Second
	case ErrCodeDatabaseConnectionFailed, ErrCodeElasticsearchConnectionFailed:
		return 10 * time.Second
	default:
		return 2 * time.Second
	}
}

// retriesLeft never raises the engine's remaining retry count.
func retriesLeft(jobRetries int32, maxRetries int) int32 {
	if jobRetries > 0 && int(jobRetries) < maxRetries {
		return jobRetries - 1
	}
	return int32(maxRetries - 1)
}

func variablesJSON(bpmnErr *BPMNError) string {
	data, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (h *ErrorHandler) fields(job entities.Job, stdErr *StandardError, extra map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{
		"jobKey":             job.Key,
		"jobType":            job.Type,
		"processInstanceKey": job.ProcessInstanceKey,
		"errorCode":          string(stdErr.Code),
		"category":           GetErrorCategory(stdErr.Code),
		"message":            stdErr.Message,
		"details":            stdErr.Details,
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}
