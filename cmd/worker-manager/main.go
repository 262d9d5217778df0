// cmd/worker-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	alerts "esign-workers/internal/common/aws"
	"esign-workers/internal/common/camunda"
	"esign-workers/internal/common/config"
	"esign-workers/internal/common/docusign"
	httpclient "esign-workers/internal/common/http"
	"esign-workers/internal/common/hubspot"
	"esign-workers/internal/common/logger"
	"esign-workers/internal/common/notify"
	"esign-workers/internal/common/observability"
	"esign-workers/internal/handler"
	"esign-workers/internal/middleware"
	"esign-workers/pkg/registry"

	spa "esign-workers/internal/workers/esign/send-partnership-agreement"
)

// components are the clients shared by the worker and the HTTP API.
type components struct {
	signer     *docusign.AssertionBuilder
	tokens     *docusign.TokenClient
	accounts   *docusign.AccountResolver
	envelopes  *docusign.EnvelopeSubmitter
	crm        *hubspot.CRMClient
	dispatcher *notify.Dispatcher
}

func buildComponents(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) (*components, error) {
	ds := cfg.DocuSign

	keyPEM, err := ds.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	signer, err := docusign.NewAssertionBuilder(docusign.Credentials{
		IntegrationKey: ds.IntegrationKey,
		UserID:         ds.UserID,
		PrivateKeyPEM:  keyPEM,
	}, docusign.AssertionOptions{Audience: ds.Audience, Scope: ds.Scope})
	if err != nil {
		return nil, err
	}

	apiClient := httpclient.NewClient(config.GetDuration(ds.RequestTimeout))
	tokens := docusign.NewTokenClient(docusign.TokenClientConfig{
		AuthBaseURL: ds.AuthBaseURL,
		IssuerKey:   ds.IntegrationKey,
		Scope:       ds.Scope,
		RedirectURI: ds.ConsentRedirectURI,
	}, apiClient)
	accounts := docusign.NewAccountResolver(docusign.AccountResolverConfig{
		AuthBaseURL:       ds.AuthBaseURL,
		FallbackBaseURL:   ds.FallbackBaseURL,
		FallbackAccountID: ds.FallbackAccountID,
	}, apiClient)

	templates := make([]docusign.Template, 0, len(ds.Templates))
	for _, t := range ds.Templates {
		templates = append(templates, docusign.Template{Key: t.Level, ID: t.ID, Name: t.Name})
	}
	var testTemplate *docusign.Template
	if ds.TestTemplate.ID != "" {
		testTemplate = &docusign.Template{Key: ds.TestTemplate.Level, ID: ds.TestTemplate.ID, Name: ds.TestTemplate.Name}
	}
	catalog := docusign.NewTemplateCatalog(templates, testTemplate, ds.TestMode)
	zapLog.Info("DocuSign templates loaded", zap.Strings("levels", catalog.Keys()))
	if ds.TestMode {
		zapLog.Warn("DocuSign test mode is on, every level uses the test template")
	}
	// the submitter bounds each POST itself
	envelopes := docusign.NewEnvelopeSubmitter(catalog, docusign.EnvelopeSubmitterConfig{
		AlternateBaseURL: ds.AlternateBaseURL,
		Timeout:          config.GetDuration(ds.EnvelopeTimeout),
	}, httpclient.NewClient(0))

	crm := hubspot.NewCRMClient(cfg.HubSpot.BaseURL, cfg.HubSpot.AccessToken, config.GetDuration(cfg.HubSpot.Timeout))

	sinks, err := buildAlertSinks(ctx, cfg.Notifications)
	if err != nil {
		return nil, err
	}
	n := cfg.Notifications
	dispatcher := notify.NewDispatcher(httpclient.NewClient(0), log,
		notify.WithBaseDelay(config.GetDuration(n.BaseDelay)),
		notify.WithAttemptTimeout(config.GetDuration(n.AttemptTimeout)),
		notify.WithUserAgent(n.UserAgent),
		notify.WithAlertSinks(sinks...),
	)

	return &components{
		signer:     signer,
		tokens:     tokens,
		accounts:   accounts,
		envelopes:  envelopes,
		crm:        crm,
		dispatcher: dispatcher,
	}, nil
}

func buildAlertSinks(ctx context.Context, n config.NotificationConfig) ([]notify.AlertSink, error) {
	awsCfg := n.Alerts.AWS
	var sinks []notify.AlertSink
	if awsCfg.SNS.Enabled {
		sns, err := alerts.NewSNSClient(ctx, awsCfg.Region, awsCfg.SNS.TopicARN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sns)
	}
	if awsCfg.SES.Enabled {
		ses, err := alerts.NewSESClient(ctx, awsCfg.Region, awsCfg.SES.FromEmail, awsCfg.SES.ToAddresses)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ses)
	}
	return sinks, nil
}

// checkRegistry warns when the served task type is not described in the
// activity registry, or is described with another timeout. A missing registry
// never stops the workers.
func checkRegistry(path, taskType string, timeout time.Duration, zapLog *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		zapLog.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		zapLog.Warn("activity registry is invalid", zap.String("path", path), zap.Error(err))
	}
	activity, ok := reg.Find(taskType)
	if !ok {
		zapLog.Warn("task type missing from activity registry", zap.String("taskType", taskType))
		return
	}
	if err := activity.CheckTimeout(timeout); err != nil {
		zapLog.Warn("activity registry disagrees with worker config", zap.Error(err))
	}
	zapLog.Info("activity registered",
		zap.String("id", activity.ID),
		zap.String("taskType", activity.TaskType),
		zap.String("version", activity.Version),
	)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	comps, err := buildComponents(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Fatal("failed to build DocuSign and CRM clients", zap.Error(err))
	}

	// --- Init Zeebe Client (retries until the broker answers) ---
	camundaClient, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.Plaintext,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	agreementHandler, err := spa.NewHandler(spa.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		ZapLogger: zapLog,
		Dependencies: spa.ServiceDependencies{
			Logger:        log,
			CRM:           comps.crm,
			Signer:        comps.signer,
			Tokens:        comps.tokens,
			Accounts:      comps.accounts,
			Envelopes:     comps.envelopes,
			Notifier:      comps.dispatcher,
			Observability: obs,
		},
	})
	if err != nil {
		zapLog.Fatal("failed to create send-partnership-agreement handler", zap.Error(err))
	}

	checkRegistry(cfg.App.ActivityRegistry, agreementHandler.GetTaskType(), agreementHandler.GetConfig().Timeout, zapLog)
	if !agreementHandler.IsEnabled() {
		zapLog.Warn("send-partnership-agreement worker is disabled; only the HTTP API sends agreements")
	}

	var ready atomic.Bool
	if err := agreementHandler.Register(); err != nil {
		zapLog.Fatal("failed to register send-partnership-agreement worker", zap.Error(err))
	}
	ready.Store(true)

	// --- HTTP API, Health & Metrics ---
	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.RouterOptions{
		Agreements: handler.NewAgreementHandler(agreementHandler, log),
		DocuSign: handler.NewDocuSignHandler(handler.DocuSignHandlerOptions{
			Signer:   comps.signer,
			Tokens:   comps.tokens,
			Accounts: comps.accounts,
			Lister:   comps.envelopes,
			Logger:   log,
		}),
		RateLimiter: middleware.NewCompanyRateLimiter(cfg.HTTP.RateLimit.RequestsPerMinute, cfg.HTTP.RateLimit.Burst),
		Ready:       ready.Load,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	agreementHandler.Close()

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
