package docusign

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	apperrors "esign-workers/internal/common/errors"
	httpclient "esign-workers/internal/common/http"
)

const (
	SignerRoleName         = "Partner Authorized Signer"
	CompanyIDCustomField   = "hubspot_company_id"
	InvalidUserIDCode      = "INVALID_USERID"
	DefaultAlternateBase   = "https://demo.docusign.net/restapi/v2.1"
	ActOnBehalfHeader      = "X-DocuSign-Act-On-Behalf"
	defaultEnvelopeTimeout = 30 * time.Second
)

// Template is a DocuSign server template keyed by partnership level.
type Template struct {
	Key  string
	ID   string
	Name string
}

func DefaultTemplates() []Template {
	return []Template{
		{Key: "Gold", ID: "0aefb289-cf0f-4f87-9615-259fdacaf710", Name: "UpEquity Gold Level Marketing and Program Agreement"},
		{Key: "Gold with Rev Share", ID: "b5dc05f3-c738-4b23-a53e-9e620cc70fa8", Name: "UpEquity Gold Level Marketing and Program Agreement with Rev Share"},
		{Key: "Silver", ID: "04c93d91-cbbd-4032-9f84-0f7879b46c05", Name: "UpEquity Silver Level Marketing and Program Agreement"},
		{Key: "Silver with Rev Share", ID: "0cd02f3e-5ee5-4b5e-bebc-2b510eef0982", Name: "UpEquity Silver Level Marketing and Program Agreement with Rev Share"},
		{Key: "Bronze", ID: "51b8968d-05ea-4130-9ad5-9544b84f61c8", Name: "UpEquity Bronze Level Marketing and Program Agreement"},
	}
}

func DefaultTestTemplate() Template {
	return Template{
		Key:  "test",
		ID:   "fb3fb6ac-0821-4b81-ae25-6e2ffd50791d",
		Name: "[TESTING ONLY] UpEquity Silver Level Marketing and Program Agreement with Rev Share(1)",
	}
}

// TemplateCatalog is a closed table; keys are matched exactly.
type TemplateCatalog struct {
	templates map[string]Template
	test      Template
	testMode  bool
}

// NewTemplateCatalog falls back to DefaultTemplates when templates is empty.
// In test mode every known level resolves to the test template.
func NewTemplateCatalog(templates []Template, test *Template, testMode bool) *TemplateCatalog {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	c := &TemplateCatalog{templates: make(map[string]Template, len(templates)), testMode: testMode}
	for _, t := range templates {
		c.templates[t.Key] = t
	}
	c.test = DefaultTestTemplate()
	if test != nil && test.ID != "" {
		c.test = *test
	}
	return c
}

func (c *TemplateCatalog) Lookup(key string) (Template, error) {
	t, ok := c.templates[key]
	if !ok {
		return Template{}, apperrors.NewTemplateNotFoundError(key)
	}
	if c.testMode {
		return c.test, nil
	}
	return t, nil
}

func (c *TemplateCatalog) Keys() []string {
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Target is the account an envelope is created in.
type Target struct {
	BaseURL   string
	AccountID string
}

type Recipient struct {
	Email string
	Name  string
}

type TextTab struct {
	Label string
	Value string
}

type ReplyTo struct {
	Email string
	Name  string
}

// SendRequest describes one envelope created from a template.
type SendRequest struct {
	TemplateKey   string
	CompanyID     string
	EmailSubject  string
	EmailBlurb    string
	Recipient     Recipient
	TextTabs      []TextTab
	ReplyTo       *ReplyTo
	ActOnBehalfOf string
}

// Route is the state of the submission: the resolved root first, then at most
// one send against the alternate root.
type Route string

const (
	RoutePrimary   Route = "primary"
	RouteAlternate Route = "alternate"
)

type EnvelopeSummary struct {
	EnvelopeID   string `json:"envelopeId"`
	Status       string `json:"status"`
	TemplateKey  string `json:"templateKey"`
	TemplateID   string `json:"templateId"`
	TemplateName string `json:"templateName"`
	BaseURL      string `json:"baseUrl"`
	Route        Route  `json:"route"`
	// PrimaryError is set when the alternate root was used.
	PrimaryError *APIError `json:"primaryError,omitempty"`
}

func (s *EnvelopeSummary) UsedAlternate() bool {
	return s != nil && s.Route == RouteAlternate
}

// APIError is the errorCode/message body DocuSign returns on failure.
type APIError struct {
	StatusCode int    `json:"httpStatus"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docusign %d: %s - %s", e.StatusCode, e.ErrorCode, e.Message)
}

type envelopeDefinition struct {
	EmailSubject  string         `json:"emailSubject"`
	EmailBlurb    string         `json:"emailBlurb"`
	TemplateID    string         `json:"templateId"`
	TemplateRoles []templateRole `json:"templateRoles"`
	CustomFields  customFields   `json:"customFields"`
	EmailSettings *emailSettings `json:"emailSettings,omitempty"`
	Status        string         `json:"status"`
}

type templateRole struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	RoleName     string   `json:"roleName"`
	RoutingOrder string   `json:"routingOrder"`
	Tabs         roleTabs `json:"tabs"`
}

type roleTabs struct {
	TextTabs []textTab `json:"textTabs"`
}

type textTab struct {
	TabLabel string `json:"tabLabel"`
	Value    string `json:"value"`
}

type customFields struct {
	TextCustomFields []textCustomField `json:"textCustomFields"`
}

type textCustomField struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Required string `json:"required"`
	Show     string `json:"show"`
}

type emailSettings struct {
	ReplyEmailAddressOverride string `json:"replyEmailAddressOverride"`
	ReplyEmailNameOverride    string `json:"replyEmailNameOverride"`
}

type envelopeResponse struct {
	EnvelopeID string `json:"envelopeId"`
	Status     string `json:"status"`
	URI        string `json:"uri"`
}

type EnvelopeSubmitterConfig struct {
	AlternateBaseURL string
	Timeout          time.Duration
}

type EnvelopeSubmitter struct {
	catalog   *TemplateCatalog
	alternate string
	timeout   time.Duration
	http      *httpclient.Client
}

func NewEnvelopeSubmitter(catalog *TemplateCatalog, cfg EnvelopeSubmitterConfig, client *httpclient.Client) *EnvelopeSubmitter {
	alt := cfg.AlternateBaseURL
	if alt == "" {
		alt = DefaultAlternateBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEnvelopeTimeout
	}
	return &EnvelopeSubmitter{
		catalog:   catalog,
		alternate: NormalizeBaseURL(alt),
		timeout:   timeout,
		http:      client,
	}
}

func buildDefinition(tmpl Template, req SendRequest) envelopeDefinition {
	tabs := make([]textTab, 0, len(req.TextTabs))
	for _, t := range req.TextTabs {
		tabs = append(tabs, textTab{TabLabel: t.Label, Value: t.Value})
	}

	def := envelopeDefinition{
		EmailSubject: req.EmailSubject,
		EmailBlurb:   req.EmailBlurb,
		TemplateID:   tmpl.ID,
		TemplateRoles: []templateRole{{
			Email:        req.Recipient.Email,
			Name:         req.Recipient.Name,
			RoleName:     SignerRoleName,
			RoutingOrder: "1",
			Tabs:         roleTabs{TextTabs: tabs},
		}},
		CustomFields: customFields{TextCustomFields: []textCustomField{{
			Name:     CompanyIDCustomField,
			Value:    req.CompanyID,
			Required: "true",
			Show:     "false",
		}}},
		Status: "sent",
	}

	if req.ReplyTo != nil && req.ReplyTo.Email != "" {
		name := req.ReplyTo.Name
		if name == "" {
			name = "Company Owner"
		}
		def.EmailSettings = &emailSettings{
			ReplyEmailAddressOverride: req.ReplyTo.Email,
			ReplyEmailNameOverride:    name,
		}
	}
	return def
}

// Submit creates and sends an envelope. An unknown template key fails before
// any request is made. INVALID_USERID on the primary root triggers exactly one
// more send against the alternate root; every other failure is final.
func (s *EnvelopeSubmitter) Submit(ctx context.Context, token string, target Target, req SendRequest) (*EnvelopeSummary, error) {
	tmpl, err := s.catalog.Lookup(req.TemplateKey)
	if err != nil {
		return nil, err
	}

	def := buildDefinition(tmpl, req)
	route := RoutePrimary
	base := NormalizeBaseURL(target.BaseURL)
	var primaryErr *APIError

	for {
		resp, apiErr := s.post(ctx, token, base, target.AccountID, req.ActOnBehalfOf, def)
		if apiErr == nil {
			return &EnvelopeSummary{
				EnvelopeID:   resp.EnvelopeID,
				Status:       resp.Status,
				TemplateKey:  req.TemplateKey,
				TemplateID:   tmpl.ID,
				TemplateName: tmpl.Name,
				BaseURL:      base,
				Route:        route,
				PrimaryError: primaryErr,
			}, nil
		}

		if route == RoutePrimary && apiErr.ErrorCode == InvalidUserIDCode && s.alternate != base {
			primaryErr = apiErr
			route = RouteAlternate
			base = s.alternate
			continue
		}

		subErr := apperrors.NewEnvelopeSubmissionError(apiErr.ErrorCode, apiErr.Message, apiErr.StatusCode).
			WithMetadata("route", string(route))
		if primaryErr != nil {
			subErr.Message = fmt.Sprintf("Failed to create envelope in both environments: %s - %s", apiErr.ErrorCode, apiErr.Message)
			subErr.WithMetadata("primaryErrorCode", primaryErr.ErrorCode)
		}
		return nil, subErr
	}
}

func (s *EnvelopeSubmitter) post(ctx context.Context, token, base, accountID, onBehalfOf string, def envelopeDefinition) (*envelopeResponse, *APIError) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	headers := bearer(token)
	if onBehalfOf != "" {
		headers[ActOnBehalfHeader] = onBehalfOf
	}

	target := httpclient.JoinURL(base, "/accounts/"+url.PathEscape(accountID)+"/envelopes")
	resp, err := s.http.SendJSON(ctx, http.MethodPost, target, headers, def)
	if err != nil {
		return nil, &APIError{ErrorCode: "unknown", Message: err.Error()}
	}

	if !resp.IsSuccess() {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(resp.Body, apiErr); jsonErr != nil || apiErr.ErrorCode == "" {
			apiErr.ErrorCode = "unknown"
			apiErr.Message = strings.TrimSpace(string(resp.Body))
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	var out envelopeResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorCode: "unknown", Message: err.Error()}
	}
	return &out, nil
}
