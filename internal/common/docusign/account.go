package docusign

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "esign-workers/internal/common/errors"
	httpclient "esign-workers/internal/common/http"
)

const restAPISuffix = "/restapi/v2.1"

// Account is one entry of the identity endpoint's account list.
type Account struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	IsDefault   bool   `json:"is_default"`
	BaseURI     string `json:"base_uri"`
}

type userInfoResponse struct {
	Sub      string    `json:"sub"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Accounts []Account `json:"accounts"`
}

type ResolutionKind string

const (
	ResolutionOK       ResolutionKind = "OK"
	ResolutionDegraded ResolutionKind = "DEGRADED_FALLBACK"
)

// Resolution is the account and REST root an envelope is sent to. A degraded
// resolution uses configured fallbacks and says why in Reason.
type Resolution struct {
	Kind     ResolutionKind
	Account  Account
	BaseURL  string
	Reason   string
	Accounts []Account
}

func (r *Resolution) Degraded() bool {
	return r != nil && r.Kind == ResolutionDegraded
}

// SelectAccount returns the default-flagged account, otherwise the first.
func SelectAccount(accounts []Account) (Account, error) {
	if len(accounts) == 0 {
		return Account{}, apperrors.NewNoAccountsError()
	}
	for _, acc := range accounts {
		if acc.IsDefault {
			return acc, nil
		}
	}
	return accounts[0], nil
}

// NormalizeBaseURL makes sure a base URI ends in /restapi/v2.1 exactly once.
func NormalizeBaseURL(baseURI string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURI), "/")
	if strings.HasSuffix(trimmed, restAPISuffix) {
		return trimmed
	}
	return trimmed + restAPISuffix
}

type AccountResolverConfig struct {
	AuthBaseURL       string
	FallbackBaseURL   string
	FallbackAccountID string
}

type AccountResolver struct {
	cfg  AccountResolverConfig
	http *httpclient.Client
}

func NewAccountResolver(cfg AccountResolverConfig, client *httpclient.Client) *AccountResolver {
	cfg.AuthBaseURL = strings.TrimRight(cfg.AuthBaseURL, "/")
	if cfg.FallbackBaseURL != "" {
		cfg.FallbackBaseURL = NormalizeBaseURL(cfg.FallbackBaseURL)
	}
	return &AccountResolver{cfg: cfg, http: client}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Resolve asks the identity endpoint which accounts the token can act on.
func (r *AccountResolver) Resolve(ctx context.Context, token string) (*Resolution, error) {
	resp, err := r.http.SendJSON(ctx, http.MethodGet, httpclient.JoinURL(r.cfg.AuthBaseURL, "/oauth/userinfo"), bearer(token), nil)
	if err != nil {
		return r.degraded(Account{}, fmt.Sprintf("identity endpoint unreachable: %v", err))
	}
	if resp.StatusCode >= 500 {
		return r.degraded(Account{}, fmt.Sprintf("identity endpoint returned %d", resp.StatusCode))
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewDocusignAuthError(fmt.Sprintf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))).
			WithMetadata("httpStatus", resp.StatusCode)
	}

	var info userInfoResponse
	if err := resp.DecodeJSON(&info); err != nil {
		return nil, apperrors.NewDocusignStatusError("userinfo", resp.StatusCode, err.Error())
	}

	selected, err := SelectAccount(info.Accounts)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(selected.BaseURI) == "" {
		res, err := r.degraded(selected, fmt.Sprintf("account %s has no base_uri", selected.AccountID))
		if res != nil {
			res.Accounts = info.Accounts
		}
		return res, err
	}

	return &Resolution{
		Kind:     ResolutionOK,
		Account:  selected,
		BaseURL:  NormalizeBaseURL(selected.BaseURI),
		Accounts: info.Accounts,
	}, nil
}

// degraded keeps a known account id and otherwise needs the configured fallback.
func (r *AccountResolver) degraded(account Account, reason string) (*Resolution, error) {
	if account.AccountID == "" {
		account.AccountID = r.cfg.FallbackAccountID
	}
	if account.AccountID == "" || r.cfg.FallbackBaseURL == "" {
		return nil, apperrors.NewDocusignStatusError("account resolution", 0, reason)
	}
	account.BaseURI = r.cfg.FallbackBaseURL
	return &Resolution{
		Kind:    ResolutionDegraded,
		Account: account,
		BaseURL: r.cfg.FallbackBaseURL,
		Reason:  reason,
	}, nil
}

// AccountInfo describes an account the token has been checked against.
type AccountInfo struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	PlanName    string `json:"planName"`
	CanManage   bool   `json:"canManage"`
	BaseURL     string `json:"baseUrl"`
}

type accountResponse struct {
	AccountID        string `json:"accountId"`
	AccountName      string `json:"accountName"`
	CanManageAccount string `json:"canManageAccount"`
	PlanName         string `json:"planName"`
	PlanInformation  struct {
		PlanName string `json:"planName"`
	} `json:"planInformation"`
}

// GetAccountInfo validates that the token can read the account.
func (r *AccountResolver) GetAccountInfo(ctx context.Context, token, baseURL, accountID string) (*AccountInfo, error) {
	base := NormalizeBaseURL(baseURL)
	target := httpclient.JoinURL(base, "/accounts/"+url.PathEscape(accountID))

	resp, err := r.http.SendJSON(ctx, http.MethodGet, target, bearer(token), nil)
	if err != nil {
		return nil, apperrors.NewDocusignStatusError("account lookup", 0, err.Error())
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewDocusignStatusError("account lookup", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	var body accountResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, apperrors.NewDocusignStatusError("account lookup", resp.StatusCode, err.Error())
	}

	plan := body.PlanInformation.PlanName
	if plan == "" {
		plan = body.PlanName
	}
	if plan == "" {
		plan = "Unknown Plan"
	}
	if body.AccountID == "" {
		body.AccountID = accountID
	}

	return &AccountInfo{
		AccountID:   body.AccountID,
		AccountName: body.AccountName,
		PlanName:    plan,
		CanManage:   strings.EqualFold(body.CanManageAccount, "true"),
		BaseURL:     base,
	}, nil
}
