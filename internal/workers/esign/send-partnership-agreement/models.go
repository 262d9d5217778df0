package sendpartnershipagreement

import (
	"context"

	"esign-workers/internal/common/docusign"
	"esign-workers/internal/common/hubspot"
	"esign-workers/internal/common/logger"
	"esign-workers/internal/common/notify"
	"esign-workers/internal/common/observability"
)

// Input is the trigger payload. Only CompanyID is required; every other field
// overrides a value otherwise taken from the company record or config.
type Input struct {
	CompanyID        string `json:"companyId"`
	RecipientEmail   string `json:"recipientEmail,omitempty"`
	RecipientName    string `json:"recipientName,omitempty"`
	EmailSubject     string `json:"emailSubject,omitempty"`
	EmailBody        string `json:"emailBody,omitempty"`
	PartnershipLevel string `json:"partnershipLevel,omitempty"`
	CompanyName      string `json:"companyName,omitempty"`
	SignerName       string `json:"signerName,omitempty"`
	ReplyToEmail     string `json:"replyToEmail,omitempty"`
	ReplyToName      string `json:"replyToName,omitempty"`
}

const (
	StatusSuccess         = "SUCCESS"
	StatusConsentRequired = "CONSENT_REQUIRED"
	StatusError           = "ERROR"
)

// Scenario tags the notification payload so the consumer can branch on it.
type Scenario string

const (
	ScenarioAgreementSent     Scenario = "agreement_sent"
	ScenarioMissingProperties Scenario = "missing_properties"
	ScenarioConsentRequired   Scenario = "consent_required"
	ScenarioDocusignError     Scenario = "docusign_error"
	ScenarioWorkflowError     Scenario = "workflow_error"
)

type Output struct {
	Status            string         `json:"status"`
	Scenario          Scenario       `json:"scenario"`
	Message           string         `json:"message"`
	CompanyName       string         `json:"companyName,omitempty"`
	DocusignReady     bool           `json:"docusignReady"`
	MissingProperties []string       `json:"missingProperties"`
	EnvelopeID        string         `json:"envelopeId,omitempty"`
	ConsentURL        string         `json:"consentUrl,omitempty"`
	DegradedAccount   bool           `json:"degradedAccount"`
	TaskID            string         `json:"taskId,omitempty"`
	WebhookDelivered  bool           `json:"webhookDelivered"`
	WebhookAttempts   int            `json:"webhookAttempts"`
	Events            []logger.Event `json:"events"`
	CorrelationID     string         `json:"correlationId"`
}

// CRM is the subset of the HubSpot client the flow needs.
type CRM interface {
	GetCompany(ctx context.Context, companyID string, properties []string) (*hubspot.Company, error)
	CreateTask(ctx context.Context, properties map[string]interface{}) (string, error)
	AssociateTask(ctx context.Context, taskID, toObjectType, toObjectID, associationType string) error
}

type AssertionSigner interface {
	Build() (string, error)
}

type TokenExchanger interface {
	Exchange(ctx context.Context, assertion string) (*docusign.ExchangeResult, error)
}

type AccountResolver interface {
	Resolve(ctx context.Context, token string) (*docusign.Resolution, error)
	GetAccountInfo(ctx context.Context, token, baseURL, accountID string) (*docusign.AccountInfo, error)
}

type EnvelopeSender interface {
	Submit(ctx context.Context, token string, target docusign.Target, req docusign.SendRequest) (*docusign.EnvelopeSummary, error)
}

type Notifier interface {
	DispatchWithRetry(ctx context.Context, payload map[string]interface{}, url string, maxAttempts int) notify.Result
}

type ServiceDependencies struct {
	Logger        logger.Logger
	CRM           CRM
	Signer        AssertionSigner
	Tokens        TokenExchanger
	Accounts      AccountResolver
	Envelopes     EnvelopeSender
	Notifier      Notifier
	Observability *observability.Observability
}
