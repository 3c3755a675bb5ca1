// Low level client for the CMS query endpoint
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/trainhub/internal/shared"
)

// QueryClient runs parameterized queries against one dataset of the CMS.
type QueryClient struct {
	baseURL    string
	apiVersion string
	dataset    string
	httpClient *http.Client
}

// NewQueryClient creates a query client for the dataset.
//
// The client defaults to [http.DefaultClient].
func NewQueryClient(baseURL, apiVersion, dataset string, client *http.Client) *QueryClient {
	if client == nil {
		client = http.DefaultClient
	}
	if apiVersion == "" {
		apiVersion = "2023-05-03"
	}
	if dataset == "" {
		dataset = "production"
	}

	return &QueryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: strings.TrimPrefix(apiVersion, "v"),
		dataset:    dataset,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

type queryEnvelope struct {
	Ms     int             `json:"ms"`
	Query  string          `json:"query"`
	Result json.RawMessage `json:"result"`
}

type errorEnvelope struct {
	Error struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"error"`
}

// QueryURL builds the request URL for query with params encoded as JSON values.
func (c *QueryClient) QueryURL(query string, params map[string]any) (string, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: parameter %s: %v", shared.ErrInvalidArgument, name, err)
		}
		values.Set("$"+strings.TrimPrefix(name, "$"), string(encoded))
	}

	return fmt.Sprintf("%s/v%s/data/query/%s?%s", c.baseURL, c.apiVersion, url.PathEscape(c.dataset), values.Encode()), nil
}

// Raw performs the query and returns the raw response without interpreting the envelope.
func (c *QueryClient) Raw(ctx context.Context, query string, params map[string]any) (*APIResponse, error) {
	fullURL, err := c.QueryURL(query, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Query performs the query and decodes the envelope's result into out.
//
// A null result yields [shared.ErrNotFound]; out is left untouched.
func (c *QueryClient) Query(ctx context.Context, query string, params map[string]any, out any) error {
	resp, err := c.Raw(ctx, query, params)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	var env queryEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		return shared.ErrNotFound
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: failed to decode result: %v", shared.ErrAPIRequest, err)
	}

	return nil
}

func statusError(resp *APIResponse) error {
	msg := strings.TrimSpace(string(resp.Body))
	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err == nil && env.Error.Description != "" {
		msg = env.Error.Description
		if env.Error.Type != "" {
			msg = env.Error.Type + ": " + msg
		}
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d: %s", shared.ErrServiceUnavailable, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
}
