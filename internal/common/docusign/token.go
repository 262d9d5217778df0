package docusign

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	apperrors "esign-workers/internal/common/errors"
	httpclient "esign-workers/internal/common/http"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

type ExchangeStatus string

const (
	ExchangeGranted         ExchangeStatus = "GRANTED"
	ExchangeConsentRequired ExchangeStatus = "CONSENT_REQUIRED"
)

// AccessToken is held for a single invocation and never cached.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeResult is either a granted token or a consent URL the user has to visit.
type ExchangeResult struct {
	Status     ExchangeStatus
	Token      *AccessToken
	ConsentURL string
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type TokenClientConfig struct {
	AuthBaseURL string
	IssuerKey   string
	Scope       string
	RedirectURI string
}

// TokenClient exchanges signed assertions for access tokens.
type TokenClient struct {
	cfg  TokenClientConfig
	http *httpclient.Client
}

func NewTokenClient(cfg TokenClientConfig, client *httpclient.Client) *TokenClient {
	cfg.AuthBaseURL = strings.TrimRight(cfg.AuthBaseURL, "/")
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	return &TokenClient{cfg: cfg, http: client}
}

// ConsentURL builds the individual consent link for the integration key.
// Spaces in the scope are encoded as %20, the form DocuSign documents.
func ConsentURL(authBaseURL, integrationKey, scope, redirectURI string) string {
	params := [][2]string{
		{"response_type", "code"},
		{"scope", scope},
		{"client_id", integrationKey},
		{"redirect_uri", redirectURI},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+strings.ReplaceAll(url.QueryEscape(p[1]), "+", "%20"))
	}
	return httpclient.JoinURL(authBaseURL, "/oauth/auth") + "?" + strings.Join(parts, "&")
}

func (c *TokenClient) ConsentURL() string {
	return ConsentURL(c.cfg.AuthBaseURL, c.cfg.IssuerKey, c.cfg.Scope, c.cfg.RedirectURI)
}

// Exchange posts the assertion to /oauth/token. consent_required is reported as
// a result, every other failure as a DOCUSIGN_AUTH_FAILED error.
func (c *TokenClient) Exchange(ctx context.Context, assertion string) (*ExchangeResult, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	resp, err := c.http.PostForm(ctx, httpclient.JoinURL(c.cfg.AuthBaseURL, "/oauth/token"), form)
	if err != nil {
		return nil, apperrors.NewDocusignAuthError(fmt.Sprintf("token request failed: %v", err))
	}

	var body tokenResponse
	// error bodies are not always JSON
	_ = json.Unmarshal(resp.Body, &body)

	if body.Error == "consent_required" {
		return &ExchangeResult{Status: ExchangeConsentRequired, ConsentURL: c.ConsentURL()}, nil
	}

	if !resp.IsSuccess() {
		detail := body.Error
		if body.ErrorDescription != "" {
			detail += ": " + body.ErrorDescription
		}
		if detail == "" {
			detail = strings.TrimSpace(string(resp.Body))
		}
		return nil, apperrors.NewDocusignAuthError(fmt.Sprintf("status %d: %s", resp.StatusCode, detail)).
			WithMetadata("httpStatus", resp.StatusCode)
	}

	if body.AccessToken == "" {
		return nil, apperrors.NewDocusignAuthError("token response did not include an access token")
	}

	return &ExchangeResult{
		Status: ExchangeGranted,
		Token: &AccessToken{
			AccessToken: body.AccessToken,
			TokenType:   body.TokenType,
			ExpiresIn:   body.ExpiresIn,
		},
	}, nil
}
