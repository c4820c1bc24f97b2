// Package powerbi talks to the semantic-model service's v1.0 REST API: the
// dataset catalog, push-dataset table definitions, and the query endpoint
// used for catalog introspection and row sampling.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"semasync/auth"
	"semasync/config"
	"semasync/errs"
	"semasync/logger"
)

// PlatformName labels models and results produced by this adapter.
const PlatformName = "powerbi"

const serviceName = "Power BI API"

const defaultRetryAfter = 60 * time.Second

// Client is a thin REST client scoped to one workspace. Retry governs the
// single fresh-token retry after the service rejects a cached token.
type Client struct {
	Retry auth.RetryPolicy

	baseURL     string
	workspaceID string
	creds       auth.CredentialProvider
	httpClient  *http.Client
	log         *logger.Logger
}

// NewClient builds a client from the resolved configuration.
func NewClient(cfg *config.Config, creds auth.CredentialProvider, log *logger.Logger) *Client {
	return &Client{
		Retry:       auth.DefaultRetryPolicy(),
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		workspaceID: cfg.WorkspaceID,
		creds:       creds,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		log:         log,
	}
}

// GetWorkspace fetches the configured workspace. Used as the connectivity
// probe for the model side.
func (c *Client) GetWorkspace(ctx context.Context) (*Workspace, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/groups/%s", c.workspaceID), nil)
	if err != nil {
		return nil, err
	}
	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, decodeError("workspace", err)
	}
	return &ws, nil
}

// ListDatasets lists every dataset in the workspace.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/datasets", c.workspaceID), nil)
	if err != nil {
		return nil, err
	}
	var list datasetList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, decodeError("dataset list", err)
	}
	return list.Value, nil
}

// GetDataset fetches one dataset by id.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/datasets/%s", c.workspaceID, datasetID), nil)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, decodeError("dataset", err)
	}
	return &ds, nil
}

// ResolveDataset finds a dataset by case-insensitive display name.
func (c *Client) ResolveDataset(ctx context.Context, name string) (*Dataset, error) {
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range datasets {
		if strings.EqualFold(datasets[i].Name, name) {
			return &datasets[i], nil
		}
	}
	return nil, &errs.ResourceNotFoundError{ResourceType: "dataset", ResourceID: name}
}

// GetTables fetches the dataset's table definitions, columns inline.
func (c *Client) GetTables(ctx context.Context, datasetID string) ([]Table, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/datasets/%s/tables", c.workspaceID, datasetID), nil)
	if err != nil {
		return nil, err
	}
	var list tableList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, decodeError("table list", err)
	}
	return list.Value, nil
}

// PutTable submits a full table definition. The push API replaces the whole
// definition, so callers must send every column they want to keep.
func (c *Client) PutTable(ctx context.Context, datasetID string, table Table) error {
	path := fmt.Sprintf("/groups/%s/datasets/%s/tables/%s", c.workspaceID, datasetID, url.PathEscape(table.Name))
	_, err := c.request(ctx, http.MethodPut, path, table)
	return err
}

// CreatePushDataset creates a new push dataset with the given tables.
func (c *Client) CreatePushDataset(ctx context.Context, name string, tables []Table) (*Dataset, error) {
	body := createDatasetRequest{Name: name, DefaultMode: "Push", Tables: tables}
	data, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/datasets", c.workspaceID), body)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, decodeError("created dataset", err)
	}
	return &ds, nil
}

// ExecuteQuery runs one query against a dataset's query endpoint and returns
// the first result table's rows.
func (c *Client) ExecuteQuery(ctx context.Context, datasetID, query string) ([]map[string]any, error) {
	body := queryRequest{
		Queries:            []querySpec{{Query: query}},
		SerializerSettings: serializerSettings{IncludeNulls: true},
	}
	data, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/datasets/%s/executeQueries", c.workspaceID, datasetID), body)
	if err != nil {
		return nil, err
	}
	var qr queryResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return nil, decodeError("query result", err)
	}
	if len(qr.Results) == 0 || len(qr.Results[0].Tables) == 0 {
		return nil, nil
	}
	return qr.Results[0].Tables[0].Rows, nil
}

// request marshals body (when non-nil), sends the call, and retries once with
// a force-refreshed token when the service rejects the current one.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &errs.ValidationError{Field: "request body", Value: err.Error()}
		}
	}

	force := false
	for attempt := 0; ; attempt++ {
		data, err := c.doOnce(ctx, method, path, payload, force)
		if err == nil || !errs.AuthFailure(err) || attempt >= c.Retry.MaxRetries {
			return data, err
		}
		c.log.Warn("token rejected by the service, retrying with a fresh one",
			"path", path, "attempt", attempt+1)
		if delay := c.Retry.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		force = true
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, forceToken bool) ([]byte, error) {
	token, err := c.creds.GetToken(ctx, forceToken)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &errs.ConnectionError{Service: serviceName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.ConnectionError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()
	return handleResponse(resp)
}

// handleResponse maps the service's status codes onto the error taxonomy.
func handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.ConnectionError{Service: serviceName, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &errs.AuthenticationError{
			Provider: serviceName,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 500)),
		}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &errs.ResourceNotFoundError{
			ResourceType: "resource",
			ResourceID:   resp.Request.URL.Path,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errs.RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return nil, &errs.ConnectionError{
			Service: serviceName,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 500)),
		}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func truncate(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func decodeError(what string, err error) error {
	return &errs.ConnectionError{Service: serviceName, Err: fmt.Errorf("decoding %s: %w", what, err)}
}
