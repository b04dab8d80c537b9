// Package extractslots fills the slots of a known intent as Zeebe jobs.
package extractslots

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"nlu-engine/internal/common/camunda"
	"nlu-engine/internal/common/config"
	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/common/metrics"
	"nlu-engine/internal/common/observability"
	"nlu-engine/internal/nlu/engine"
)

const TaskType = "nlu-extract-slots"

type Handler struct {
	config        *Config
	logger        logger.Logger
	camunda       *camunda.Client
	observability *observability.Observability
	service       *Service
	errors        *errors.ErrorHandler
	worker        *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	Observability *observability.Observability
	CustomConfig  *Config
	Engine        *engine.Engine
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("invalid configuration for %s: engine is required", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json", "stdout")
	}
	loggerInstance = loggerInstance.Named(TaskType)

	return &Handler{
		config:        workerConfig,
		logger:        loggerInstance,
		camunda:       opts.Camunda,
		observability: opts.Observability,
		service:       NewService(opts.Engine, workerConfig, loggerInstance),
		errors:        errors.NewErrorHandler(loggerInstance),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing slot extraction", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	var output *Output
	if err == nil {
		output, err = h.service.Execute(ctx, input)
	}
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.record(ctx, "failed", startTime)
		h.errors.HandleJobError(ctx, client, job, err)
		return err
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.Variables())
	if err == nil {
		_, err = request.Send(ctx)
	}
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		h.record(ctx, "failed", startTime)
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.record(ctx, "completed", startTime)
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("job variables are not a JSON object: %v", err))
	}

	result, err := inputSchema.ValidateValue(variables)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error()).
			WithMetadata("validationErrors", result.GetErrorMessages())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) record(ctx context.Context, status string, started time.Time) {
	if h.observability == nil {
		return
	}
	h.observability.RecordJobProcessed(ctx, TaskType, status)
	h.observability.RecordJobDuration(ctx, TaskType, time.Since(started), status)
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("%s: camunda client is required to register", TaskType)
	}

	h.worker = camunda.NewWorker(
		h.camunda.GetClient(),
		TaskType,
		h.config.MaxJobsActive,
		h.config.Timeout,
		h,
		h.logger,
	)
	return nil
}

func (h *Handler) Close(ctx context.Context) {
	if h.worker != nil {
		h.worker.Stop(ctx)
		h.worker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}
