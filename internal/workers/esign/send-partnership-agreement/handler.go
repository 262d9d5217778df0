package sendpartnershipagreement

import (
	"context"
	"fmt"
	"time"

	"esign-workers/internal/common/camunda"
	"esign-workers/internal/common/config"
	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/logger"
	"esign-workers/internal/common/metrics"
	"esign-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"
)

const TaskType = "docusign.partnership-agreement.send"

// Executor runs one send. *Service implements it.
type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	zap          *zap.Logger
	camunda      *camunda.Client
	service      Executor
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	worker       *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Logger       logger.Logger
	ZapLogger    *zap.Logger
	Dependencies ServiceDependencies
	// Service replaces the default Service built from Dependencies.
	Service Executor
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := opts.CustomConfig
	if workerConfig == nil {
		workerConfig = ConfigFromApp(opts.AppConfig)
	}
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	zapLogger := opts.ZapLogger
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	service := opts.Service
	if service == nil {
		deps := opts.Dependencies
		if deps.Logger == nil {
			deps.Logger = loggerInstance
		}
		service = NewService(deps, workerConfig)
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		zap:          zapLogger,
		camunda:      opts.Camunda,
		service:      service,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		obs:          opts.Dependencies.Observability,
	}, nil
}

// Handle processes one job. Missing record ids become a BPMN error; every
// other outcome completes the job so the process can branch on the result.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) (err error) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInternal)).Inc()
			h.logger.Error("Recovered from panic in job handler", map[string]interface{}{
				"jobKey": job.GetKey(),
				"panic":  fmt.Sprintf("%v", r),
				"worker": TaskType,
			})
			err = h.failJob(ctx, client, job, errors.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	h.logger.Info("Processing partnership agreement job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", map[string]interface{}{"worker": TaskType})
		return h.completeJob(ctx, client, job, &Output{
			Status:  StatusError,
			Message: "Partnership agreement sending is disabled",
		})
	}

	input, err := h.parseInput(job)
	if err != nil {
		return h.handleError(ctx, client, job, err)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		return h.handleError(ctx, client, job, err)
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, output.Status)
	h.obs.RecordJobDuration(ctx, time.Since(startTime), output.Status)
	return nil
}

// Execute runs the service directly; the HTTP trigger uses it too.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, &errors.StandardError{
			Code:      errors.ErrCodeInputParsing,
			Message:   "Failed to parse job variables",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	return InputFromMap(variables)
}

func (h *Handler) handleError(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	code := errors.CodeOf(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")

	if sendErr := h.errorHandler.HandleJobError(ctx, client, job, err); sendErr != nil {
		h.logger.Error("Failed to report job error to Camunda", map[string]interface{}{
			"jobKey":    job.GetKey(),
			"errorCode": string(code),
			"error":     sendErr.Error(),
			"worker":    TaskType,
		})
		return sendErr
	}
	return nil
}

// JobVariables are the process variables a completed job sets.
func JobVariables(output *Output) map[string]interface{} {
	missing := output.MissingProperties
	if missing == nil {
		missing = []string{}
	}
	variables := map[string]interface{}{
		"agreementStatus":   output.Status,
		"agreementScenario": string(output.Scenario),
		"agreementMessage":  output.Message,
		"docusignReady":     output.DocusignReady,
		"missingProperties": missing,
		"webhookDelivered":  output.WebhookDelivered,
		"degradedAccount":   output.DegradedAccount,
		"agreementEvents":   output.Events,
	}
	if output.EnvelopeID != "" {
		variables["envelopeId"] = output.EnvelopeID
	}
	if output.ConsentURL != "" {
		variables["consentUrl"] = output.ConsentURL
	}
	if output.CorrelationID != "" {
		variables["correlationId"] = output.CorrelationID
	}
	return variables
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	variables := JobVariables(output)

	_, err := camunda.ExecuteWithRetry(ctx, nil, func(ctx context.Context) (interface{}, error) {
		request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
		if err != nil {
			return nil, err
		}
		return request.Send(ctx)
	}, "complete job")
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return err
	}

	h.logger.Info("Completed partnership agreement job", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"status":     output.Status,
		"envelopeId": output.EnvelopeID,
		"worker":     TaskType,
	})
	return nil
}

// failJob hands the job back with one retry fewer. Used for panics, where the
// cause is unknown and an incident should surface once retries run out.
func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, stdErr *errors.StandardError) error {
	retries := job.GetRetries() - 1
	if retries < 0 {
		retries = 0
	}
	_, err := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(retries).
		ErrorMessage(fmt.Sprintf("[%s] %s", stdErr.Code, stdErr.Describe())).
		Send(ctx)
	if err != nil {
		h.logger.Error("Failed to fail job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
	}
	return err
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.worker = camunda.NewWorker(h.camunda.GetClient(), TaskType, camunda.WorkerOptions{
		Name:          fmt.Sprintf("%s-worker", TaskType),
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h, h.zap)
	h.worker.Start()

	h.logger.Info("Partnership agreement worker registered with Camunda", map[string]interface{}{
		"taskType":      TaskType,
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.worker != nil {
		h.worker.Stop(context.Background())
		h.worker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
