package sendpartnershipagreement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"esign-workers/internal/common/config"
	"esign-workers/internal/common/docusign"
	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Execute(ctx context.Context, input *Input) (*Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Output), args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return createRawJob(key, string(variablesJSON))
}

func createRawJob(key int64, variables string) entities.Job {
	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "partnership-agreement",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_SendPartnershipAgreement",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                variables,
	}
	return entities.Job{ActivatedJob: activatedJob}
}

func createValidConfig() *Config {
	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Second
	cfg.WebhookURL = "https://hooks.example.com/outcome"
	cfg.DefaultRecipient = docusign.Recipient{Email: "signer@example.com", Name: "Default Signer"}
	return cfg
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid configuration",
			mutate: func(*Config) {},
		},
		{
			name:    "missing webhook url",
			mutate:  func(c *Config) { c.WebhookURL = "" },
			wantErr: true,
			errMsg:  "webhook_url is required",
		},
		{
			name:    "missing default recipient",
			mutate:  func(c *Config) { c.DefaultRecipient = docusign.Recipient{} },
			wantErr: true,
			errMsg:  "default recipient email is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name:    "zero max jobs",
			mutate:  func(c *Config) { c.MaxJobsActive = 0 },
			wantErr: true,
			errMsg:  "max_jobs_active must be positive",
		},
		{
			name:    "unknown on-behalf-of policy",
			mutate:  func(c *Config) { c.OnBehalfOfPolicy = "sometimes" },
			wantErr: true,
			errMsg:  `unknown on_behalf_of policy "sometimes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidConfig()
			tt.mutate(cfg)

			handler, err := NewHandler(HandlerOptions{
				CustomConfig: cfg,
				Logger:       logger.NewTestLogger(t),
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Contains(t, err.Error(), WorkerName)
				assert.Nil(t, handler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, handler.GetTaskType())
			assert.True(t, handler.IsEnabled())
			assert.Same(t, cfg, handler.GetConfig())
		})
	}
}

func TestConfigFromApp(t *testing.T) {
	appConfig := &config.Config{
		Workers: map[string]config.WorkerConfig{
			WorkerName: {Enabled: true, MaxJobsActive: 2, Timeout: 45000},
		},
		HubSpot: config.HubSpotConfig{
			AppBaseURL:        "https://app-eu1.hubspot.com/",
			PortalID:          "4242",
			DefaultContactIDs: []string{"11", "12"},
		},
		DocuSign: config.DocuSignConfig{
			DefaultRecipient: config.RecipientConfig{Email: "legal@example.com", Name: "Legal"},
			OnBehalfOf:       config.OnBehalfOfConfig{Policy: "strict", User: "ops@example.com"},
		},
	}
	appConfig.Notifications.WebhookURL = "https://hooks.example.com/x"
	appConfig.Notifications.MaxAttempts = 5

	cfg := ConfigFromApp(appConfig)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "https://hooks.example.com/x", cfg.WebhookURL)
	assert.Equal(t, 5, cfg.NotifyMaxAttempts)
	assert.Equal(t, []string{"11", "12"}, cfg.DefaultContactIDs)
	assert.Equal(t, docusign.Recipient{Email: "legal@example.com", Name: "Legal"}, cfg.DefaultRecipient)
	assert.Equal(t, OnBehalfStrict, cfg.OnBehalfOfPolicy)
	assert.Equal(t, "ops@example.com", cfg.OnBehalfOfUser)

	assert.Equal(t, "https://app-eu1.hubspot.com/contacts/4242/record/0-2/77", cfg.CompanyURL("77"))
	assert.Equal(t, "https://app-eu1.hubspot.com/tasks/4242/task/t1", cfg.TaskURL("t1"))
	assert.Empty(t, cfg.TaskURL(""))
}

func TestConfigFromApp_Defaults(t *testing.T) {
	cfg := ConfigFromApp(&config.Config{})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.NotifyMaxAttempts)
	assert.Equal(t, OnBehalfOptimistic, cfg.OnBehalfOfPolicy)
	assert.Equal(t, "https://app.hubspot.com", cfg.AppBaseURL)
	assert.Error(t, cfg.Validate(), "webhook url has no default")
}

func TestConfigFromApp_WorkerEntry(t *testing.T) {
	disabled := ConfigFromApp(&config.Config{Workers: map[string]config.WorkerConfig{
		WorkerName: {Enabled: false},
	}})
	assert.False(t, disabled.Enabled)
	assert.Equal(t, 5, disabled.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, disabled.Timeout)

	absent := ConfigFromApp(&config.Config{Workers: map[string]config.WorkerConfig{
		"other-worker": {Enabled: false},
	}})
	assert.True(t, absent.Enabled)
	assert.Equal(t, 5, absent.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, absent.Timeout)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestInputFromMap(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]interface{}
		want     *Input
		wantCode errors.ErrorCode
	}{
		{
			name: "numeric company id from process variables",
			vars: map[string]interface{}{"companyId": float64(9876543210)},
			want: &Input{CompanyID: "9876543210"},
		},
		{
			name: "string id and overrides are trimmed",
			vars: map[string]interface{}{
				"companyId":        " 123 ",
				"recipientEmail":   "ceo@acme.example",
				"partnershipLevel": "Gold with Rev Share",
				"replyToEmail":     "owner@example.com",
				"replyToName":      "Owner",
			},
			want: &Input{
				CompanyID:        "123",
				RecipientEmail:   "ceo@acme.example",
				PartnershipLevel: "Gold with Rev Share",
				ReplyToEmail:     "owner@example.com",
				ReplyToName:      "Owner",
			},
		},
		{
			name: "blank overrides are ignored",
			vars: map[string]interface{}{"companyId": "5", "recipientEmail": "  ", "emailSubject": ""},
			want: &Input{CompanyID: "5"},
		},
		{
			name: "unrelated process variables pass through",
			vars: map[string]interface{}{"companyId": "5", "processStartedBy": "hubspot", "attempt": 2},
			want: &Input{CompanyID: "5"},
		},
		{
			name: "missing company id is left to Execute",
			vars: map[string]interface{}{"recipientName": "Pat"},
			want: &Input{RecipientName: "Pat"},
		},
		{
			name:     "malformed recipient email",
			vars:     map[string]interface{}{"companyId": "5", "recipientEmail": "not-an-email"},
			wantCode: errors.ErrCodeValidationFailed,
		},
		{
			name:     "company id of the wrong type",
			vars:     map[string]interface{}{"companyId": true},
			wantCode: errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := InputFromMap(tt.vars)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode))
				assert.Nil(t, input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, input)
		})
	}
}

func TestHandler_parseInput(t *testing.T) {
	handler, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Logger:       logger.NewTestLogger(t),
		Service:      &MockService{},
	})
	require.NoError(t, err)

	t.Run("valid job variables", func(t *testing.T) {
		job := createMockJob(1, map[string]interface{}{
			"companyId":     31337,
			"recipientName": "Pat CEO",
		})
		input, err := handler.parseInput(job)
		require.NoError(t, err)
		assert.Equal(t, "31337", input.CompanyID)
		assert.Equal(t, "Pat CEO", input.RecipientName)
	})

	t.Run("variables that are not JSON", func(t *testing.T) {
		input, err := handler.parseInput(createRawJob(2, "{not json"))
		require.Error(t, err)
		assert.Nil(t, input)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInputParsing))
	})
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	t.Run("delegates to the service", func(t *testing.T) {
		mockService := new(MockService)
		expected := &Output{Status: StatusSuccess, Scenario: ScenarioAgreementSent, EnvelopeID: "env-1"}
		mockService.On("Execute", mock.Anything, mock.MatchedBy(func(i *Input) bool {
			return i.CompanyID == "123"
		})).Return(expected, nil)

		handler, err := NewHandler(HandlerOptions{
			CustomConfig: createValidConfig(),
			Logger:       logger.NewTestLogger(t),
			Service:      mockService,
		})
		require.NoError(t, err)

		output, err := handler.Execute(context.Background(), &Input{CompanyID: "123"})
		require.NoError(t, err)
		assert.Same(t, expected, output)
		mockService.AssertExpectations(t)
	})

	t.Run("returns record id errors unchanged", func(t *testing.T) {
		mockService := new(MockService)
		mockService.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.NewRecordIDMissingError())

		handler, err := NewHandler(HandlerOptions{
			CustomConfig: createValidConfig(),
			Logger:       logger.NewTestLogger(t),
			Service:      mockService,
		})
		require.NoError(t, err)

		output, err := handler.Execute(context.Background(), &Input{})
		require.Error(t, err)
		assert.Nil(t, output)
		assert.True(t, errors.IsCode(err, errors.ErrCodeRecordIDMissing))
		assert.Equal(t, 0, errors.GetRetryCount(errors.CodeOf(err)))
	})
}

func TestJobVariables(t *testing.T) {
	events := []logger.Event{{Timestamp: time.Unix(0, 0).UTC(), Message: "Starting"}}

	t.Run("sent agreement", func(t *testing.T) {
		vars := JobVariables(&Output{
			Status:           StatusSuccess,
			Scenario:         ScenarioAgreementSent,
			Message:          "Gold Agreement sent to Jane for Acme",
			DocusignReady:    true,
			EnvelopeID:       "env-1",
			WebhookDelivered: true,
			Events:           events,
			CorrelationID:    "corr-1",
		})

		assert.Equal(t, StatusSuccess, vars["agreementStatus"])
		assert.Equal(t, "agreement_sent", vars["agreementScenario"])
		assert.Equal(t, "env-1", vars["envelopeId"])
		assert.Equal(t, "corr-1", vars["correlationId"])
		assert.Equal(t, []string{}, vars["missingProperties"])
		assert.Equal(t, events, vars["agreementEvents"])
		assert.NotContains(t, vars, "consentUrl")
	})

	t.Run("consent required", func(t *testing.T) {
		vars := JobVariables(&Output{
			Status:     StatusConsentRequired,
			Scenario:   ScenarioConsentRequired,
			ConsentURL: "https://account-d.docusign.com/oauth/auth",
		})

		assert.Equal(t, "https://account-d.docusign.com/oauth/auth", vars["consentUrl"])
		assert.NotContains(t, vars, "envelopeId")
		assert.NotContains(t, vars, "correlationId")
		assert.Equal(t, false, vars["docusignReady"])
	})
}

// ==========================
// Registration Tests
// ==========================

func TestHandler_Register(t *testing.T) {
	t.Run("requires a camunda client", func(t *testing.T) {
		handler, err := NewHandler(HandlerOptions{CustomConfig: createValidConfig(), Logger: logger.NewTestLogger(t)})
		require.NoError(t, err)

		err = handler.Register()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "camunda client is required")
	})

	t.Run("disabled worker is skipped", func(t *testing.T) {
		cfg := createValidConfig()
		cfg.Enabled = false
		handler, err := NewHandler(HandlerOptions{CustomConfig: cfg, Logger: logger.NewTestLogger(t)})
		require.NoError(t, err)

		assert.NoError(t, handler.Register())
		assert.False(t, handler.IsEnabled())
		handler.Close()
	})
}
