package sendpartnershipagreement

import (
	"fmt"
	"strings"
	"time"

	"esign-workers/internal/common/config"
	"esign-workers/internal/common/docusign"
)

// WorkerName is the key of this worker under the workers section of the config.
const WorkerName = "send-partnership-agreement"

// OnBehalfOfPolicy decides whether envelopes carry the act-on-behalf header.
type OnBehalfOfPolicy string

const (
	// OnBehalfOptimistic checks account access but sends on behalf either way.
	OnBehalfOptimistic OnBehalfOfPolicy = "optimistic"
	// OnBehalfStrict sends on behalf only when the access check passes.
	OnBehalfStrict   OnBehalfOfPolicy = "strict"
	OnBehalfDisabled OnBehalfOfPolicy = "disabled"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	WebhookURL        string
	NotifyMaxAttempts int

	AppBaseURL        string
	PortalID          string
	DefaultContactIDs []string
	DefaultRecipient  docusign.Recipient

	OnBehalfOfPolicy OnBehalfOfPolicy
	OnBehalfOfUser   string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     5,
		Timeout:           2 * time.Minute,
		NotifyMaxAttempts: 3,
		AppBaseURL:        "https://app.hubspot.com",
		OnBehalfOfPolicy:  OnBehalfOptimistic,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if c.DefaultRecipient.Email == "" {
		return fmt.Errorf("default recipient email is required")
	}
	switch c.OnBehalfOfPolicy {
	case OnBehalfOptimistic, OnBehalfStrict, OnBehalfDisabled:
	default:
		return fmt.Errorf("unknown on_behalf_of policy %q", c.OnBehalfOfPolicy)
	}
	return nil
}

// CompanyURL links to the company record in the CRM UI.
func (c *Config) CompanyURL(companyID string) string {
	return fmt.Sprintf("%s/contacts/%s/record/0-2/%s", strings.TrimRight(c.AppBaseURL, "/"), c.PortalID, companyID)
}

func (c *Config) TaskURL(taskID string) string {
	if taskID == "" {
		return ""
	}
	return fmt.Sprintf("%s/tasks/%s/task/%s", strings.TrimRight(c.AppBaseURL, "/"), c.PortalID, taskID)
}

// ConfigFromApp builds the worker config from the application config.
func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	workerCfg := config.GetWorkerConfig(appConfig, WorkerName)
	cfg.Enabled = workerCfg.Enabled
	if workerCfg.MaxJobsActive > 0 {
		cfg.MaxJobsActive = workerCfg.MaxJobsActive
	}
	if workerCfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(workerCfg.Timeout)
	}

	n := appConfig.Notifications
	cfg.WebhookURL = n.WebhookURL
	if n.MaxAttempts > 0 {
		cfg.NotifyMaxAttempts = n.MaxAttempts
	}

	if appConfig.HubSpot.AppBaseURL != "" {
		cfg.AppBaseURL = appConfig.HubSpot.AppBaseURL
	}
	cfg.PortalID = appConfig.HubSpot.PortalID
	cfg.DefaultContactIDs = appConfig.HubSpot.DefaultContactIDs

	ds := appConfig.DocuSign
	cfg.DefaultRecipient = docusign.Recipient{Email: ds.DefaultRecipient.Email, Name: ds.DefaultRecipient.Name}
	if ds.OnBehalfOf.Policy != "" {
		cfg.OnBehalfOfPolicy = OnBehalfOfPolicy(ds.OnBehalfOf.Policy)
	}
	cfg.OnBehalfOfUser = ds.OnBehalfOf.User

	return cfg
}
