package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
docusign:
  integration_key: ik-123
  user_id: user-456
  private_key_path: /tmp/docusign.pem
  default_recipient:
    email: signer@example.com
    name: Signer
  templates:
    - level: Gold
      id: tmpl-gold
hubspot:
  access_token: ${TEST_HUBSPOT_TOKEN}
  portal_id: "998877"
notifications:
  webhook_url: https://hooks.example.com/outcome
workers:
  send-partnership-agreement:
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_HUBSPOT_TOKEN", "pat-secret")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "pat-secret", cfg.HubSpot.AccessToken)
	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.Equal(t, "https://app.hubspot.com", cfg.HubSpot.AppBaseURL)

	assert.Equal(t, "https://account.docusign.com", cfg.DocuSign.AuthBaseURL)
	assert.Equal(t, "account.docusign.com", cfg.DocuSign.Audience)
	assert.Equal(t, "signature impersonation", cfg.DocuSign.Scope)
	assert.Equal(t, "https://demo.docusign.net/restapi/v2.1", cfg.DocuSign.AlternateBaseURL)
	assert.Equal(t, "optimistic", cfg.DocuSign.OnBehalfOf.Policy)
	require.Len(t, cfg.DocuSign.Templates, 1)
	assert.Equal(t, "Gold", cfg.DocuSign.Templates[0].Level)

	assert.Equal(t, 3, cfg.Notifications.MaxAttempts)
	assert.Equal(t, 15*time.Second, GetDuration(cfg.Notifications.AttemptTimeout))
	assert.Equal(t, time.Second, GetDuration(cfg.Notifications.BaseDelay))
	assert.Equal(t, ":8080", cfg.HTTP.Address)

	assert.False(t, GetWorkerConfig(cfg, "send-partnership-agreement").Enabled)
	assert.True(t, GetWorkerConfig(cfg, "unknown-worker").Enabled)
	assert.Equal(t, 120000, GetWorkerConfig(cfg, "send-partnership-agreement").Timeout)
}

func TestLoadFromFile_EnvFillsMissingSecrets(t *testing.T) {
	t.Setenv("TEST_HUBSPOT_TOKEN", "")
	t.Setenv("HUBSPOT_PRIVATE_APP_TOKEN", "pat-from-env")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "pat-from-env", cfg.HubSpot.AccessToken)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Camunda.BrokerAddress = "localhost:26500"
		cfg.DocuSign.IntegrationKey = "ik"
		cfg.DocuSign.UserID = "uid"
		cfg.DocuSign.PrivateKey = "pem"
		cfg.DocuSign.DefaultRecipient.Email = "signer@example.com"
		cfg.HubSpot.AccessToken = "pat"
		cfg.HubSpot.PortalID = "1"
		cfg.Notifications.WebhookURL = "https://hooks.example.com"
		applyDefaults(cfg)
		return cfg
	}

	require.NoError(t, validateConfig(valid()))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing broker", func(c *Config) { c.Camunda.BrokerAddress = "" }, "camunda.broker_address"},
		{"missing key", func(c *Config) { c.DocuSign.PrivateKey = "" }, "private_key"},
		{"bad policy", func(c *Config) { c.DocuSign.OnBehalfOf.Policy = "always" }, "on_behalf_of.policy"},
		{"template without id", func(c *Config) {
			c.DocuSign.Templates = []TemplateConfig{{Level: "Gold"}}
		}, "templates[0]"},
		{"missing webhook", func(c *Config) { c.Notifications.WebhookURL = "" }, "webhook_url"},
		{"sns without topic", func(c *Config) { c.Notifications.Alerts.AWS.SNS.Enabled = true }, "topic_arn"},
		{"ses without recipients", func(c *Config) {
			c.Notifications.Alerts.AWS.SES.Enabled = true
			c.Notifications.Alerts.AWS.SES.FromEmail = "alerts@example.com"
		}, "ses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPrivateKeyPEM(t *testing.T) {
	inline := DocuSignConfig{PrivateKey: `-----BEGIN KEY-----\nabc\n-----END KEY-----`}
	pem, err := inline.PrivateKeyPEM()
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN KEY-----\nabc\n-----END KEY-----", string(pem))

	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))
	pem, err = DocuSignConfig{PrivateKeyPath: path}.PrivateKeyPEM()
	require.NoError(t, err)
	assert.Equal(t, "from-file", string(pem))

	_, err = DocuSignConfig{}.PrivateKeyPEM()
	assert.Error(t, err)
}
