// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultDocuSignAuthBaseURL = "https://account.docusign.com"
	defaultDocuSignAudience    = "account.docusign.com"
	defaultDocuSignScope       = "signature impersonation"
	defaultConsentRedirectURI  = "https://www.docusign.com"
	defaultDemoBaseURL         = "https://demo.docusign.net/restapi/v2.1"
	defaultHubSpotBaseURL      = "https://api.hubapi.com"
	defaultHubSpotAppBaseURL   = "https://app.hubspot.com"
)

// Load reads configs/config.yaml, merges config.{APP_ENVIRONMENT}.yaml on top
// and lets environment variables fill in secrets.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile looks for a .env next to the binary, a few parents up, and at the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("Loaded .env from: %s\n", path)
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func envIfEmpty(target *string, names ...string) {
	if *target != "" {
		return
	}
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			*target = val
			return
		}
	}
}

// overrideEmptyConfig fills secrets and ids from the environment when the file left them empty.
func overrideEmptyConfig(cfg *Config) {
	envIfEmpty(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS", "CAMUNDA_BROKER_ADDRESS")

	envIfEmpty(&cfg.DocuSign.IntegrationKey, "DOCUSIGN_INTEGRATION_KEY")
	envIfEmpty(&cfg.DocuSign.UserID, "DOCUSIGN_USER_ID")
	envIfEmpty(&cfg.DocuSign.PrivateKey, "DOCUSIGN_PRIVATE_KEY")
	envIfEmpty(&cfg.DocuSign.PrivateKeyPath, "DOCUSIGN_PRIVATE_KEY_PATH")
	envIfEmpty(&cfg.DocuSign.FallbackAccountID, "DOCUSIGN_ACCOUNT_ID")
	envIfEmpty(&cfg.DocuSign.DefaultRecipient.Email, "DOCUSIGN_RECIPIENT_EMAIL")
	envIfEmpty(&cfg.DocuSign.DefaultRecipient.Name, "DOCUSIGN_RECIPIENT_NAME")

	envIfEmpty(&cfg.HubSpot.AccessToken, "HUBSPOT_PRIVATE_APP_TOKEN", "PRIVATE_APP_ACCESS_TOKEN")
	envIfEmpty(&cfg.HubSpot.PortalID, "HUBSPOT_PORTAL_ID")

	envIfEmpty(&cfg.Notifications.WebhookURL, "NOTIFICATION_WEBHOOK_URL")
	envIfEmpty(&cfg.Notifications.Alerts.AWS.Region, "AWS_REGION")
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "esign-workers"
	}
	if cfg.App.ActivityRegistry == "" {
		cfg.App.ActivityRegistry = "configs/activity-registry.json"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	ds := &cfg.DocuSign
	if ds.AuthBaseURL == "" {
		ds.AuthBaseURL = defaultDocuSignAuthBaseURL
	}
	if ds.Audience == "" {
		ds.Audience = defaultDocuSignAudience
	}
	if ds.Scope == "" {
		ds.Scope = defaultDocuSignScope
	}
	if ds.ConsentRedirectURI == "" {
		ds.ConsentRedirectURI = defaultConsentRedirectURI
	}
	if ds.AlternateBaseURL == "" {
		ds.AlternateBaseURL = defaultDemoBaseURL
	}
	if ds.FallbackBaseURL == "" {
		ds.FallbackBaseURL = defaultDemoBaseURL
	}
	if ds.RequestTimeout == 0 {
		ds.RequestTimeout = 30000
	}
	if ds.EnvelopeTimeout == 0 {
		ds.EnvelopeTimeout = 30000
	}
	if ds.OnBehalfOf.Policy == "" {
		ds.OnBehalfOf.Policy = "optimistic"
	}

	if cfg.HubSpot.BaseURL == "" {
		cfg.HubSpot.BaseURL = defaultHubSpotBaseURL
	}
	if cfg.HubSpot.AppBaseURL == "" {
		cfg.HubSpot.AppBaseURL = defaultHubSpotAppBaseURL
	}
	if cfg.HubSpot.Timeout == 0 {
		cfg.HubSpot.Timeout = 30000
	}

	n := &cfg.Notifications
	if n.MaxAttempts == 0 {
		n.MaxAttempts = 3
	}
	if n.AttemptTimeout == 0 {
		n.AttemptTimeout = 15000
	}
	if n.BaseDelay == 0 {
		n.BaseDelay = 1000
	}
	if n.UserAgent == "" {
		n.UserAgent = "esign-workers/1.0"
	}

	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.HTTP.RateLimit.RequestsPerMinute == 0 {
		cfg.HTTP.RateLimit.RequestsPerMinute = 6
	}
	if cfg.HTTP.RateLimit.Burst == 0 {
		cfg.HTTP.RateLimit.Burst = 1
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 120000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.DocuSign.IntegrationKey == "" {
		return fmt.Errorf("docusign.integration_key is required")
	}
	if cfg.DocuSign.UserID == "" {
		return fmt.Errorf("docusign.user_id is required")
	}
	if cfg.DocuSign.PrivateKey == "" && cfg.DocuSign.PrivateKeyPath == "" {
		return fmt.Errorf("docusign.private_key or docusign.private_key_path is required")
	}
	if cfg.DocuSign.DefaultRecipient.Email == "" {
		return fmt.Errorf("docusign.default_recipient.email is required")
	}
	switch cfg.DocuSign.OnBehalfOf.Policy {
	case "optimistic", "strict", "disabled":
	default:
		return fmt.Errorf("docusign.on_behalf_of.policy must be optimistic, strict or disabled, got %q", cfg.DocuSign.OnBehalfOf.Policy)
	}
	for i, tmpl := range cfg.DocuSign.Templates {
		if tmpl.Level == "" || tmpl.ID == "" {
			return fmt.Errorf("docusign.templates[%d] needs both level and id", i)
		}
	}

	if cfg.HubSpot.AccessToken == "" {
		return fmt.Errorf("hubspot.access_token is required")
	}
	if cfg.HubSpot.PortalID == "" {
		return fmt.Errorf("hubspot.portal_id is required")
	}

	if cfg.Notifications.WebhookURL == "" {
		return fmt.Errorf("notifications.webhook_url is required")
	}
	if cfg.Notifications.Alerts.AWS.SNS.Enabled && cfg.Notifications.Alerts.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.alerts.aws.sns.topic_arn is required when sns alerts are enabled")
	}
	if ses := cfg.Notifications.Alerts.AWS.SES; ses.Enabled && (ses.FromEmail == "" || len(ses.ToAddresses) == 0) {
		return fmt.Errorf("notifications.alerts.aws.ses needs from_email and to_addresses when enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120000,
		MaxRetries:    3,
	}
}
