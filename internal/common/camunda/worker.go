// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"nlu-engine/internal/common/logger"
)

// JobHandler completes or fails the job itself; a returned error is only
// logged at debug level.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(client worker.JobClient, job entities.Job) error

func (f JobHandlerFunc) Handle(client worker.JobClient, job entities.Job) error {
	return f(client, job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType on client. The client is shared
// between workers and is not closed by Stop. A zero timeout keeps the
// client default for job activation.
func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler JobHandler,
	log logger.Logger,
) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	step := client.NewJobWorker().
		JobType(taskType).
		Handler(func(client worker.JobClient, job entities.Job) {
			if err := handler.Handle(client, job); err != nil {
				log.Debug("Handler returned error", map[string]interface{}{
					"error":  err.Error(),
					"jobKey": job.Key,
				})
			}
		}).
		MaxJobsActive(maxJobsActive).
		Name(fmt.Sprintf("%s-worker", taskType))
	if timeout > 0 {
		step = step.Timeout(timeout)
	}
	jobWorker := step.Open()

	w := &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
	w.logger.Info("Worker started", map[string]interface{}{
		"maxJobsActive": maxJobsActive,
		"timeout":       timeout.String(),
	})
	return w
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs or ctx.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("Stopping worker", nil)
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("Worker stop timed out", nil)
	}
}
