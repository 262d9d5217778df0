// internal/common/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	DocuSign      DocuSignConfig          `mapstructure:"docusign"`
	HubSpot       HubSpotConfig           `mapstructure:"hubspot"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`

	// ActivityRegistry is the path of the activity registry checked at startup.
	ActivityRegistry string `mapstructure:"activity_registry"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- DocuSign ---

// DocuSignConfig holds the JWT-grant credentials and endpoint roots.
type DocuSignConfig struct {
	AuthBaseURL        string `mapstructure:"auth_base_url"`
	Audience           string `mapstructure:"audience"`
	Scope              string `mapstructure:"scope"`
	IntegrationKey     string `mapstructure:"integration_key"`
	UserID             string `mapstructure:"user_id"`
	PrivateKey         string `mapstructure:"private_key"`
	PrivateKeyPath     string `mapstructure:"private_key_path"`
	ConsentRedirectURI string `mapstructure:"consent_redirect_uri"`

	// AlternateBaseURL is the one-shot root used when an envelope POST fails with INVALID_USERID.
	AlternateBaseURL string `mapstructure:"alternate_base_url"`
	// FallbackBaseURL and FallbackAccountID back a degraded account resolution.
	FallbackBaseURL   string `mapstructure:"fallback_base_url"`
	FallbackAccountID string `mapstructure:"fallback_account_id"`

	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds
	EnvelopeTimeout int `mapstructure:"envelope_timeout"` // milliseconds

	TestMode         bool             `mapstructure:"test_mode"`
	TestTemplate     TemplateConfig   `mapstructure:"test_template"`
	Templates        []TemplateConfig `mapstructure:"templates"`
	DefaultRecipient RecipientConfig  `mapstructure:"default_recipient"`
	OnBehalfOf       OnBehalfOfConfig `mapstructure:"on_behalf_of"`
}

// TemplateConfig is a list entry rather than a map so level names keep their case.
type TemplateConfig struct {
	Level string `mapstructure:"level"`
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
}

type RecipientConfig struct {
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
}

type OnBehalfOfConfig struct {
	Policy string `mapstructure:"policy"` // optimistic | strict | disabled
	User   string `mapstructure:"user"`
}

// PrivateKeyPEM returns the inline key or reads it from PrivateKeyPath.
func (d DocuSignConfig) PrivateKeyPEM() ([]byte, error) {
	if strings.TrimSpace(d.PrivateKey) != "" {
		// env vars often carry the PEM with literal \n sequences
		return []byte(strings.ReplaceAll(d.PrivateKey, `\n`, "\n")), nil
	}
	if d.PrivateKeyPath == "" {
		return nil, fmt.Errorf("docusign.private_key or docusign.private_key_path is required")
	}
	data, err := os.ReadFile(d.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read docusign private key %s: %w", d.PrivateKeyPath, err)
	}
	return data, nil
}

// --- HubSpot ---
type HubSpotConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	AppBaseURL        string   `mapstructure:"app_base_url"`
	AccessToken       string   `mapstructure:"access_token"`
	PortalID          string   `mapstructure:"portal_id"`
	DefaultContactIDs []string `mapstructure:"default_contact_ids"`
	Timeout           int      `mapstructure:"timeout"` // milliseconds
}

// --- Notifications ---

// NotificationConfig holds the outcome webhook and the alert sinks used when it is unreachable.
type NotificationConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	AttemptTimeout int    `mapstructure:"attempt_timeout"` // milliseconds
	BaseDelay      int    `mapstructure:"base_delay"`      // milliseconds
	UserAgent      string `mapstructure:"user_agent"`

	Alerts struct {
		AWS struct {
			Region string `mapstructure:"region"`
			SNS    struct {
				Enabled  bool   `mapstructure:"enabled"`
				TopicARN string `mapstructure:"topic_arn"`
			} `mapstructure:"sns"`
			SES struct {
				Enabled     bool     `mapstructure:"enabled"`
				FromEmail   string   `mapstructure:"from_email"`
				ToAddresses []string `mapstructure:"to_addresses"`
			} `mapstructure:"ses"`
		} `mapstructure:"aws"`
	} `mapstructure:"alerts"`
}

// --- HTTP API ---
type HTTPConfig struct {
	Address   string `mapstructure:"address"`
	RateLimit struct {
		RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
