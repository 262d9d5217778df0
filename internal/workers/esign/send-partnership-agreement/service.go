package sendpartnershipagreement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"esign-workers/internal/common/docusign"
	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/logger"
	"esign-workers/internal/common/metrics"
	"esign-workers/internal/common/notify"
	"esign-workers/internal/common/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const unknownCompany = "Unknown Company"

type Service struct {
	config    *Config
	logger    logger.Logger
	crm       CRM
	signer    AssertionSigner
	tokens    TokenExchanger
	accounts  AccountResolver
	envelopes EnvelopeSender
	notifier  Notifier
	obs       *observability.Observability
	now       func() time.Time
	newID     func() string
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    config,
		logger:    log,
		crm:       deps.CRM,
		signer:    deps.Signer,
		tokens:    deps.Tokens,
		accounts:  deps.Accounts,
		envelopes: deps.Envelopes,
		notifier:  deps.Notifier,
		obs:       deps.Observability,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// invocation is the state of one Execute call. Nothing in it outlives the call.
type invocation struct {
	input         *Input
	correlationID string
	events        *logger.EventLog
	log           logger.Logger

	companyLoaded bool
	companyName   string
	companyURL    string
	props         map[string]string
	contactIDs    []string
	missing       []string

	scenario   Scenario
	envelope   *docusign.EnvelopeSummary
	consentURL string
	degraded   bool
	failure    string
	errorCode  errors.ErrorCode
	taskID     string
	taskURL    string
}

func (inv *invocation) prop(name string) string {
	return inv.props[name]
}

// templateKey is the partnership level, with the trigger override winning.
func (inv *invocation) templateKey() string {
	if inv.input.PartnershipLevel != "" {
		return inv.input.PartnershipLevel
	}
	return inv.prop(propLevel)
}

func (inv *invocation) levelOr(fallback string) string {
	return firstNonEmpty(inv.templateKey(), fallback)
}

func (inv *invocation) signerOr(fallback string) string {
	return firstNonEmpty(inv.input.SignerName, inv.prop(propSigner), fallback)
}

func (inv *invocation) ready() bool {
	return inv.companyLoaded && len(inv.missing) == 0
}

func (inv *invocation) fail(scenario Scenario, err error) {
	inv.scenario = scenario
	inv.failure = describe(err)
	inv.errorCode = errors.CodeOf(err)
}

// Execute runs the whole send for one company. The only error it returns is
// RECORD_ID_MISSING; every other outcome is reported in the Output and in the
// webhook notification, which is always attempted.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.CompanyID) == "" {
		return nil, errors.NewRecordIDMissingError()
	}
	input.CompanyID = strings.TrimSpace(input.CompanyID)

	events := logger.NewEventLog()
	correlationID := s.newID()
	inv := &invocation{
		input:         input,
		correlationID: correlationID,
		events:        events,
		log: logger.WithEventLog(s.logger.WithFields(map[string]interface{}{
			"correlationId": correlationID,
			"companyId":     input.CompanyID,
		}), events),
		companyName: firstNonEmpty(input.CompanyName, unknownCompany),
		companyURL:  s.config.CompanyURL(input.CompanyID),
		props:       map[string]string{},
		contactIDs:  []string{},
		missing:     []string{},
	}

	ctx, span := s.obs.StartSpan(ctx, "partnership_agreement.send",
		attribute.String("company.id", input.CompanyID),
		attribute.String("correlation.id", correlationID),
	)
	defer span.End()

	inv.log.Info("Starting Partnership Agreement send process", nil)
	inv.log.Info(fmt.Sprintf("Processing company ID: %s", input.CompanyID), nil)

	s.runGuarded(ctx, inv)

	span.SetAttributes(attribute.String("scenario", string(inv.scenario)))
	if inv.scenario != ScenarioAgreementSent {
		span.SetStatus(codes.Error, string(inv.scenario))
	}

	// the outcome is reported even when the caller has gone away
	result := s.dispatch(context.WithoutCancel(ctx), inv)
	return inv.output(result), nil
}

// runGuarded turns a panic anywhere in the flow into a workflow error so the
// notification still goes out.
func (s *Service) runGuarded(ctx context.Context, inv *invocation) {
	defer func() {
		if r := recover(); r != nil {
			inv.fail(ScenarioWorkflowError, errors.NewInternalError(fmt.Errorf("%v", r)))
			inv.log.Error(fmt.Sprintf("Unexpected failure: %v", r), nil)
		}
	}()
	s.run(ctx, inv)
}

func (s *Service) run(ctx context.Context, inv *invocation) {
	if !s.loadCompany(ctx, inv) {
		return
	}

	inv.log.Info(fmt.Sprintf("Hierarchy value: %s", inv.prop(propHierarchy)), nil)
	if inv.prop(propHierarchy) == hierarchyCorporate {
		inv.log.Info("corporate_account: Skipped validation (hierarchy is Corporate)", nil)
	}
	for _, p := range inv.missing {
		inv.log.Warn(fmt.Sprintf("%s: MISSING", p), nil)
	}

	if len(inv.missing) > 0 {
		inv.scenario = ScenarioMissingProperties
		inv.log.Warn(fmt.Sprintf("Validation failed. Missing %d properties", len(inv.missing)), map[string]interface{}{
			"missingProperties": inv.missing,
		})
	} else {
		inv.log.Info("Validation passed, proceeding with DocuSign creation", nil)
		s.sendAgreement(ctx, inv)
	}

	s.createTask(ctx, inv)
}

func (s *Service) loadCompany(ctx context.Context, inv *invocation) bool {
	ctx, span := s.obs.StartSpan(ctx, "hubspot.get_company")
	defer span.End()

	company, err := s.crm.GetCompany(ctx, inv.input.CompanyID, companyProperties())
	if err != nil {
		span.RecordError(err)
		inv.fail(ScenarioWorkflowError, err)
		inv.log.Error(fmt.Sprintf("ERROR getting company data: %s", inv.failure), nil)
		return false
	}

	inv.companyLoaded = true
	if company.Properties != nil {
		inv.props = company.Properties
	}
	inv.companyName = firstNonEmpty(inv.input.CompanyName, company.Get(propName), unknownCompany)
	inv.log.Info(fmt.Sprintf("Company name: %s", inv.companyName), nil)

	inv.contactIDs = parseContactIDs(company.Get(propTeamContacts))
	if len(inv.contactIDs) > 0 {
		inv.log.Info(fmt.Sprintf("Found %d team contacts in company property", len(inv.contactIDs)), nil)
	} else {
		inv.log.Info("No team contacts found in company property. Using default fallback contacts.", nil)
		inv.contactIDs = append(inv.contactIDs, s.config.DefaultContactIDs...)
	}

	inv.missing = ValidateCompany(company)
	return true
}

func (s *Service) sendAgreement(ctx context.Context, inv *invocation) {
	ctx, span := s.obs.StartSpan(ctx, "docusign.send_agreement")
	defer span.End()

	level := inv.templateKey()
	recipient := docusign.Recipient{
		Email: firstNonEmpty(inv.input.RecipientEmail, s.config.DefaultRecipient.Email),
		Name:  firstNonEmpty(inv.input.RecipientName, s.config.DefaultRecipient.Name),
	}
	inv.log.Info(fmt.Sprintf("Partnership Level: %s", firstNonEmpty(level, "Not specified")), nil)
	inv.log.Info(fmt.Sprintf("Recipient: %s <%s>", recipient.Name, recipient.Email), nil)

	token, ok := s.authenticate(ctx, inv)
	if !ok {
		return
	}

	resolution, err := s.accounts.Resolve(ctx, token)
	if err != nil {
		metrics.AccountResolutions.WithLabelValues("error").Inc()
		s.docusignFailure(inv, err)
		return
	}
	if resolution.Degraded() {
		metrics.AccountResolutions.WithLabelValues("degraded").Inc()
		inv.degraded = true
		inv.log.Warn(fmt.Sprintf("DEGRADED: using fallback DocuSign account %s at %s (%s)",
			resolution.Account.AccountID, resolution.BaseURL, resolution.Reason), nil)
	} else {
		metrics.AccountResolutions.WithLabelValues("ok").Inc()
		inv.log.Info(fmt.Sprintf("Using DocuSign account %s (%s)", resolution.Account.AccountID, resolution.Account.AccountName), nil)
	}
	target := docusign.Target{BaseURL: resolution.BaseURL, AccountID: resolution.Account.AccountID}

	tabs := make([]docusign.TextTab, 0, len(textTabFields))
	for _, f := range textTabFields {
		value := inv.prop(f[1])
		if f[1] == propLevel {
			value = level
		}
		tabs = append(tabs, docusign.TextTab{Label: f[0], Value: value})
	}

	req := docusign.SendRequest{
		TemplateKey:   level,
		CompanyID:     inv.input.CompanyID,
		EmailSubject:  firstNonEmpty(inv.input.EmailSubject, fmt.Sprintf("Please sign this document - %s Agreement", firstNonEmpty(level, "Default"))),
		EmailBlurb:    firstNonEmpty(inv.input.EmailBody, fmt.Sprintf("Please review and sign this %s Agreement.", firstNonEmpty(level, "Default"))),
		Recipient:     recipient,
		TextTabs:      tabs,
		ActOnBehalfOf: s.onBehalfOf(ctx, inv, token, target),
	}
	if inv.input.ReplyToEmail != "" {
		req.ReplyTo = &docusign.ReplyTo{Email: inv.input.ReplyToEmail, Name: inv.input.ReplyToName}
	}

	summary, err := s.envelopes.Submit(ctx, token, target, req)
	if err != nil {
		metrics.EnvelopeFailures.WithLabelValues(string(errors.CodeOf(err))).Inc()
		span.RecordError(err)
		s.docusignFailure(inv, err)
		return
	}

	if summary.UsedAlternate() {
		inv.log.Warn(fmt.Sprintf("Primary DocuSign environment rejected the request (%s); envelope sent via %s",
			docusign.InvalidUserIDCode, summary.BaseURL), nil)
	}
	metrics.EnvelopesSubmitted.WithLabelValues(summary.TemplateKey, string(summary.Route)).Inc()
	inv.envelope = summary
	inv.scenario = ScenarioAgreementSent
	inv.log.Info(fmt.Sprintf("DocuSign envelope created: %s", summary.EnvelopeID), map[string]interface{}{
		"envelopeId": summary.EnvelopeID,
		"template":   summary.TemplateName,
		"route":      string(summary.Route),
	})
}

// authenticate signs an assertion and exchanges it. A consent result ends the
// flow with the consent scenario rather than an error.
func (s *Service) authenticate(ctx context.Context, inv *invocation) (string, bool) {
	assertion, err := s.signer.Build()
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		s.docusignFailure(inv, err)
		return "", false
	}
	inv.log.Info("Generated DocuSign JWT assertion", nil)

	res, err := s.tokens.Exchange(ctx, assertion)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		s.docusignFailure(inv, err)
		return "", false
	}
	if res.Status == docusign.ExchangeConsentRequired {
		metrics.TokenExchanges.WithLabelValues("consent_required").Inc()
		inv.scenario = ScenarioConsentRequired
		inv.consentURL = res.ConsentURL
		inv.failure = "DocuSign JWT consent is required"
		inv.errorCode = errors.ErrCodeDocusignConsentRequired
		inv.log.Warn(fmt.Sprintf("DocuSign JWT consent is required. Grant consent at: %s", res.ConsentURL), nil)
		return "", false
	}

	metrics.TokenExchanges.WithLabelValues("granted").Inc()
	inv.log.Info("DocuSign access token obtained", nil)
	return res.Token.AccessToken, true
}

// onBehalfOf applies the configured policy and returns the user to send as,
// or "" to send as the impersonated user.
func (s *Service) onBehalfOf(ctx context.Context, inv *invocation, token string, target docusign.Target) string {
	user := s.config.OnBehalfOfUser
	if user == "" || s.config.OnBehalfOfPolicy == OnBehalfDisabled {
		return ""
	}

	_, err := s.accounts.GetAccountInfo(ctx, token, target.BaseURL, target.AccountID)
	if err == nil {
		inv.log.Info(fmt.Sprintf("Account access check passed, sending on behalf of %s", user), nil)
		return user
	}

	if s.config.OnBehalfOfPolicy == OnBehalfStrict {
		inv.log.Warn(fmt.Sprintf("Account access check failed (%s); sending without on-behalf-of", describe(err)), nil)
		return ""
	}
	inv.log.Warn(fmt.Sprintf("Account access check failed (%s); sending on behalf of %s anyway", describe(err), user), nil)
	return user
}

func (s *Service) docusignFailure(inv *invocation, err error) {
	inv.fail(ScenarioDocusignError, err)
	inv.log.Error(fmt.Sprintf("DocuSign creation failed: %s", inv.failure), map[string]interface{}{
		"errorCode": string(inv.errorCode),
	})
}

func (s *Service) dispatch(ctx context.Context, inv *invocation) notify.Result {
	ctx, span := s.obs.StartSpan(ctx, "notification.dispatch")
	defer span.End()

	inv.log.Info("Sending outcome notification", map[string]interface{}{"scenario": string(inv.scenario)})
	result := s.notifier.DispatchWithRetry(ctx, inv.payload(), s.config.WebhookURL, s.config.NotifyMaxAttempts)
	span.SetAttributes(attribute.Int("attempts", result.Attempts), attribute.Bool("delivered", result.Delivered))

	if result.Delivered {
		inv.log.Info("Webhook sent successfully", map[string]interface{}{"attempts": result.Attempts})
	} else {
		sendErr := errors.NewNotificationSendFailedError("webhook", fmt.Errorf("%s", result.LastError))
		inv.log.WithError(sendErr).Warn(fmt.Sprintf("Webhook failed after %d attempts: %s", result.Attempts, result.LastError), nil)
	}
	return result
}

func (inv *invocation) output(result notify.Result) *Output {
	out := &Output{
		Scenario:          inv.scenario,
		Message:           inv.summary(),
		CompanyName:       inv.companyName,
		DocusignReady:     inv.ready(),
		MissingProperties: append([]string{}, inv.missing...),
		ConsentURL:        inv.consentURL,
		DegradedAccount:   inv.degraded,
		TaskID:            inv.taskID,
		WebhookDelivered:  result.Delivered,
		WebhookAttempts:   result.Attempts,
		Events:            inv.events.Events(),
		CorrelationID:     inv.correlationID,
	}
	if inv.envelope != nil {
		out.EnvelopeID = inv.envelope.EnvelopeID
	}

	switch inv.scenario {
	case ScenarioAgreementSent:
		out.Status = StatusSuccess
	case ScenarioConsentRequired:
		out.Status = StatusConsentRequired
	case ScenarioMissingProperties:
		out.Status = StatusError
		out.Message = fmt.Sprintf("Missing required fields: %s", strings.Join(inv.missing, ", "))
	default:
		out.Status = StatusError
	}
	return out
}

func describe(err error) string {
	if stdErr, ok := errors.AsStandard(err); ok {
		return stdErr.Describe()
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
