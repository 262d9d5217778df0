package sendpartnershipagreement

import (
	"context"
	"fmt"
	"sync"

	"esign-workers/internal/common/docusign"
	"esign-workers/internal/common/hubspot"
	"esign-workers/internal/common/notify"
)

type fakeCRM struct {
	mu         sync.Mutex
	company    *hubspot.Company
	getErr     error
	panicOnGet bool
	taskErr    error
	assocErr   map[string]error

	getCalls int
	tasks    []map[string]interface{}
	assocs   []string
}

func (f *fakeCRM) GetCompany(ctx context.Context, companyID string, properties []string) (*hubspot.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.panicOnGet {
		panic("crm exploded")
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.company, nil
}

func (f *fakeCRM) CreateTask(ctx context.Context, properties map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, properties)
	if f.taskErr != nil {
		return "", f.taskErr
	}
	return "task-1", nil
}

func (f *fakeCRM) AssociateTask(ctx context.Context, taskID, toObjectType, toObjectID, associationType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assocs = append(f.assocs, fmt.Sprintf("%s/%s/%s", toObjectType, toObjectID, associationType))
	return f.assocErr[toObjectID]
}

type countingSigner struct {
	calls int
	err   error
}

func (s *countingSigner) Build() (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "header.claims.signature", nil
}

type fakeTokens struct {
	result *docusign.ExchangeResult
	err    error
	calls  int
}

func (f *fakeTokens) Exchange(ctx context.Context, assertion string) (*docusign.ExchangeResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &docusign.ExchangeResult{
		Status: docusign.ExchangeGranted,
		Token:  &docusign.AccessToken{AccessToken: "access-token", TokenType: "Bearer", ExpiresIn: 3600},
	}, nil
}

type fakeAccounts struct {
	resolution *docusign.Resolution
	err        error
	infoErr    error
	infoCalls  int
}

func (f *fakeAccounts) Resolve(ctx context.Context, token string) (*docusign.Resolution, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resolution != nil {
		return f.resolution, nil
	}
	return &docusign.Resolution{
		Kind:    docusign.ResolutionOK,
		Account: docusign.Account{AccountID: "acc-1", AccountName: "Primary", IsDefault: true, BaseURI: "https://na3.docusign.net"},
		BaseURL: "https://na3.docusign.net/restapi/v2.1",
	}, nil
}

func (f *fakeAccounts) GetAccountInfo(ctx context.Context, token, baseURL, accountID string) (*docusign.AccountInfo, error) {
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &docusign.AccountInfo{AccountID: accountID, BaseURL: baseURL}, nil
}

type fakeEnvelopes struct {
	err     error
	reqs    []docusign.SendRequest
	targets []docusign.Target
}

func (f *fakeEnvelopes) Submit(ctx context.Context, token string, target docusign.Target, req docusign.SendRequest) (*docusign.EnvelopeSummary, error) {
	f.reqs = append(f.reqs, req)
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	return &docusign.EnvelopeSummary{
		EnvelopeID:   "env-123",
		Status:       "sent",
		TemplateKey:  req.TemplateKey,
		TemplateID:   "tmpl-" + req.TemplateKey,
		TemplateName: req.TemplateKey + " Agreement",
		BaseURL:      target.BaseURL,
		Route:        docusign.RoutePrimary,
	}, nil
}

type recordingNotifier struct {
	payloads []map[string]interface{}
	urls     []string
	attempts []int
	result   notify.Result
}

func (n *recordingNotifier) DispatchWithRetry(ctx context.Context, payload map[string]interface{}, url string, maxAttempts int) notify.Result {
	n.payloads = append(n.payloads, payload)
	n.urls = append(n.urls, url)
	n.attempts = append(n.attempts, maxAttempts)
	if n.result.Attempts == 0 {
		return notify.Result{Delivered: true, Attempts: 1, StatusCode: 200}
	}
	return n.result
}

func (n *recordingNotifier) last() map[string]interface{} {
	if len(n.payloads) == 0 {
		return nil
	}
	return n.payloads[len(n.payloads)-1]
}
