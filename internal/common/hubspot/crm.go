package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "esign-workers/internal/common/errors"
	httpclient "esign-workers/internal/common/http"
)

type CRMClient struct {
	accessToken string
	baseURL     string
	httpClient  *httpclient.Client
}

// Company is a CRM company record flattened to string properties. Absent and
// null properties both read as "".
type Company struct {
	ID         string
	Properties map[string]string
}

func (c *Company) Get(name string) string {
	if c == nil {
		return ""
	}
	return c.Properties[name]
}

type objectResponse struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
}

type errorResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

func NewCRMClient(baseURL, accessToken string, timeout time.Duration) *CRMClient {
	return &CRMClient{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpclient.NewClient(timeout),
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *CRMClient) WithHTTPClient(client *httpclient.Client) *CRMClient {
	c.httpClient = client
	return c
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.accessToken}
}

// GetCompany reads a company with the requested properties.
func (c *CRMClient) GetCompany(ctx context.Context, companyID string, properties []string) (*Company, error) {
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	target := httpclient.JoinURL(c.baseURL, "/crm/v3/objects/companies/"+url.PathEscape(companyID)) + "?" + q.Encode()

	resp, err := c.httpClient.SendJSON(ctx, http.MethodGet, target, c.headers(), nil)
	if err != nil {
		return nil, apperrors.NewCRMError("get company", err)
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewCRMError("get company", statusError(resp))
	}

	var obj objectResponse
	if err := resp.DecodeJSON(&obj); err != nil {
		return nil, apperrors.NewCRMError("get company", err)
	}

	company := &Company{ID: obj.ID, Properties: make(map[string]string, len(obj.Properties))}
	for k, v := range obj.Properties {
		if v != nil {
			company.Properties[k] = *v
		}
	}
	return company, nil
}

// CreateTask creates a task object and returns its id.
func (c *CRMClient) CreateTask(ctx context.Context, properties map[string]interface{}) (string, error) {
	target := httpclient.JoinURL(c.baseURL, "/crm/v3/objects/tasks")

	resp, err := c.httpClient.SendJSON(ctx, http.MethodPost, target, c.headers(), map[string]interface{}{
		"properties": properties,
	})
	if err != nil {
		return "", apperrors.NewCRMError("create task", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", apperrors.NewCRMError("create task", statusError(resp))
	}

	var obj objectResponse
	if err := resp.DecodeJSON(&obj); err != nil {
		return "", apperrors.NewCRMError("create task", err)
	}
	if obj.ID == "" {
		return "", apperrors.NewCRMError("create task", fmt.Errorf("no id in response"))
	}
	return obj.ID, nil
}

// AssociateTask links a task to another object, e.g. ("companies", id, "task_to_company").
func (c *CRMClient) AssociateTask(ctx context.Context, taskID, toObjectType, toObjectID, associationType string) error {
	target := httpclient.JoinURL(c.baseURL, fmt.Sprintf("/crm/v3/objects/tasks/%s/associations/%s/%s/%s",
		url.PathEscape(taskID), toObjectType, url.PathEscape(toObjectID), associationType))

	resp, err := c.httpClient.SendJSON(ctx, http.MethodPut, target, c.headers(), nil)
	if err != nil {
		return fmt.Errorf("associate task %s with %s %s: %w", taskID, toObjectType, toObjectID, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("associate task %s with %s %s: %w", taskID, toObjectType, toObjectID, statusError(resp))
	}
	return nil
}

func statusError(resp *httpclient.Response) error {
	var body errorResponse
	if err := resp.DecodeJSON(&body); err == nil && body.Message != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body.Message)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
}
