package camunda

import (
	"context"
	"fmt"
	"time"

	"customer-insights/internal/common/config"
	"customer-insights/internal/common/logger"
	"customer-insights/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes, fails or throws for the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. It returns nil when the worker is
// disabled in configuration. obs may be nil.
func NewWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, obs *observability.Observability, log logger.Logger) *CamundaWorker {
	log = log.With(map[string]interface{}{"taskType": taskType})
	if !wcfg.Enabled {
		log.Info("worker disabled", nil)
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Recover(handler, obs, log)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Recover wraps handler so a panic fails the job instead of killing the poller.
func Recover(handler JobHandler, obs *observability.Observability, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		status := "handled"
		defer func() {
			if r := recover(); r != nil {
				status = "panic"
				log.Error("handler panicked", map[string]interface{}{
					"jobKey": job.GetKey(),
					"panic":  fmt.Sprint(r),
				})
				failPanicked(client, job, r)
			}
			ctx := context.Background()
			obs.RecordJobProcessed(ctx, status)
			obs.RecordJobDuration(ctx, time.Since(start), status)
		}()
		handler.Handle(client, job)
	}
}

func (w *CamundaWorker) Stop() {
	if w == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

func failPanicked(client worker.JobClient, job entities.Job, r interface{}) {
	retries := job.GetRetries() - 1
	if retries < 0 {
		retries = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(retries).
		ErrorMessage(fmt.Sprintf("handler panic: %v", r)).
		Send(ctx)
}
