package handler

import (
	"context"
	"net/http"
	"strconv"

	"esign-workers/internal/common/docusign"
	"esign-workers/internal/common/errors"
	"esign-workers/internal/common/logger"
	sendpartnershipagreement "esign-workers/internal/workers/esign/send-partnership-agreement"

	"github.com/gin-gonic/gin"
)

type EnvelopeLister interface {
	ListEnvelopes(ctx context.Context, token string, target docusign.Target, opts docusign.ListOptions) (*docusign.EnvelopePage, error)
}

// DocuSignHandler exposes the operational DocuSign endpoints: consent status,
// recent envelopes and account details.
type DocuSignHandler struct {
	signer   sendpartnershipagreement.AssertionSigner
	tokens   sendpartnershipagreement.TokenExchanger
	accounts sendpartnershipagreement.AccountResolver
	lister   EnvelopeLister
	log      logger.Logger
}

type DocuSignHandlerOptions struct {
	Signer   sendpartnershipagreement.AssertionSigner
	Tokens   sendpartnershipagreement.TokenExchanger
	Accounts sendpartnershipagreement.AccountResolver
	Lister   EnvelopeLister
	Logger   logger.Logger
}

func NewDocuSignHandler(opts DocuSignHandlerOptions) *DocuSignHandler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &DocuSignHandler{
		signer:   opts.Signer,
		tokens:   opts.Tokens,
		accounts: opts.Accounts,
		lister:   opts.Lister,
		log:      log,
	}
}

// session is an access token plus the account it resolved to.
type session struct {
	token      string
	consentURL string
	resolution *docusign.Resolution
}

func (s *session) target() docusign.Target {
	return docusign.Target{BaseURL: s.resolution.BaseURL, AccountID: s.resolution.Account.AccountID}
}

// open authenticates and resolves the account. A consent result is returned
// with an empty token and no error.
func (h *DocuSignHandler) open(ctx context.Context) (*session, error) {
	assertion, err := h.signer.Build()
	if err != nil {
		return nil, err
	}
	res, err := h.tokens.Exchange(ctx, assertion)
	if err != nil {
		return nil, err
	}
	if res.Status == docusign.ExchangeConsentRequired {
		return &session{consentURL: res.ConsentURL}, nil
	}

	resolution, err := h.accounts.Resolve(ctx, res.Token.AccessToken)
	if err != nil {
		return nil, err
	}
	if resolution.Degraded() {
		h.log.Warn("DocuSign account resolution degraded", map[string]interface{}{
			"accountId": resolution.Account.AccountID,
			"reason":    resolution.Reason,
		})
	}
	return &session{token: res.Token.AccessToken, resolution: resolution}, nil
}

// openOrConsent is open for endpoints that need a token; consent is a 403.
func (h *DocuSignHandler) openOrConsent(c *gin.Context) (*session, bool) {
	s, err := h.open(c.Request.Context())
	if err != nil {
		h.log.Error("DocuSign session failed", map[string]interface{}{"error": err.Error()})
		writeError(c, err)
		return nil, false
	}
	if s.token == "" {
		writeError(c, errors.NewConsentRequiredError(s.consentURL))
		return nil, false
	}
	return s, true
}

// Consent reports whether the JWT grant works and where it leads.
func (h *DocuSignHandler) Consent(c *gin.Context) {
	s, err := h.open(c.Request.Context())
	if err != nil {
		stdErr := errors.Normalize(err)
		c.JSON(statusFor(stdErr.Code), gin.H{
			"status":  sendpartnershipagreement.StatusError,
			"code":    string(stdErr.Code),
			"message": stdErr.Describe(),
		})
		return
	}
	if s.token == "" {
		c.JSON(http.StatusOK, gin.H{
			"status":     sendpartnershipagreement.StatusConsentRequired,
			"consentUrl": s.consentURL,
			"message":    "Consent required. Visit the consent URL to grant access.",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      sendpartnershipagreement.StatusSuccess,
		"accountId":   s.resolution.Account.AccountID,
		"accountName": s.resolution.Account.AccountName,
		"baseUrl":     s.resolution.BaseURL,
		"degraded":    s.resolution.Degraded(),
	})
}

// ListEnvelopes returns a page of recent envelopes for the resolved account.
func (h *DocuSignHandler) ListEnvelopes(c *gin.Context) {
	opts := docusign.ListOptions{
		Status:     c.Query("status"),
		FromDate:   c.Query("from"),
		ToDate:     c.Query("to"),
		SearchText: c.Query("search"),
		OrderBy:    c.Query("order_by"),
		Order:      c.Query("order"),
	}
	var err error
	if opts.Count, err = queryInt(c, "count"); err != nil {
		writeError(c, errors.NewValidationError("count must be an integer"))
		return
	}
	if opts.StartPosition, err = queryInt(c, "start"); err != nil {
		writeError(c, errors.NewValidationError("start must be an integer"))
		return
	}

	s, ok := h.openOrConsent(c)
	if !ok {
		return
	}

	page, err := h.lister.ListEnvelopes(c.Request.Context(), s.token, s.target(), opts)
	if err != nil {
		h.log.Error("Listing DocuSign envelopes failed", map[string]interface{}{"error": err.Error()})
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accountId":  s.resolution.Account.AccountID,
		"degraded":   s.resolution.Degraded(),
		"envelopes":  page.Envelopes,
		"pagination": page,
	})
}

// Account returns the details of the resolved account.
func (h *DocuSignHandler) Account(c *gin.Context) {
	s, ok := h.openOrConsent(c)
	if !ok {
		return
	}

	target := s.target()
	info, err := h.accounts.GetAccountInfo(c.Request.Context(), s.token, target.BaseURL, target.AccountID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":  info,
		"degraded": s.resolution.Degraded(),
		"accounts": s.resolution.Accounts,
	})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
