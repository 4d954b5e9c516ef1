// Package client is a Go client for the SiteSync admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one SiteSync server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as X-API-Key on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Health is the answer of /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Sites   int    `json:"sites"`
}

// Site is a stored site.
type Site struct {
	Name     string `json:"name"`
	Locale   string `json:"locale,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Stats counts the changes of one site run.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Revised int `json:"revised"`
	Trashed int `json:"trashed"`
	Skipped int `json:"skipped"`
}

// SiteResult is the outcome of one site of an apply.
type SiteResult struct {
	Site         string `json:"site"`
	Phase        string `json:"phase"`
	Stats        Stats  `json:"stats"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ApplyResult is the answer of /api/v1/apply. It is returned alongside an
// *Error when some sites failed.
type ApplyResult struct {
	DryRun  bool         `json:"dryRun"`
	Failed  int          `json:"failed"`
	Results []SiteResult `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// ApplyOptions are the query parameters of an apply.
type ApplyOptions struct {
	DryRun bool
	Sites  []string
}

// ValidateResult is the answer of /api/v1/validate.
type ValidateResult struct {
	Valid  bool     `json:"valid"`
	Sites  int      `json:"sites"`
	Errors []string `json:"errors,omitempty"`
}

// Health checks the server and its store.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListSites returns the stored sites.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var resp struct {
		Sites []Site `json:"sites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sites", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Sites, nil
}

// Apply sends a declaration document (YAML, JSON or HCL, named by
// contentType) to the server. A nil document re-applies the server's
// configured declarations.
func (c *Client) Apply(ctx context.Context, document []byte, contentType string, opts ApplyOptions) (*ApplyResult, error) {
	q := url.Values{}
	if opts.DryRun {
		q.Set("dry_run", strconv.FormatBool(true))
	}
	if len(opts.Sites) > 0 {
		q.Set("site", strings.Join(opts.Sites, ","))
	}
	path := "/api/v1/apply"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		DryRun  bool `json:"dryRun"`
		Failed  int  `json:"failed"`
		Results []struct {
			Site string `json:"site"`
			Run  struct {
				Phase        string `json:"phase"`
				Stats        Stats  `json:"stats"`
				ErrorMessage string `json:"errorMessage"`
			} `json:"run"`
		} `json:"results"`
		Error string `json:"error"`
	}
	err := c.do(ctx, http.MethodPost, path, document, contentType, &resp)
	if resp.Results == nil && err != nil {
		return nil, err
	}

	result := &ApplyResult{DryRun: resp.DryRun, Failed: resp.Failed, Error: resp.Error}
	for _, r := range resp.Results {
		result.Results = append(result.Results, SiteResult{
			Site:         r.Site,
			Phase:        r.Run.Phase,
			Stats:        r.Run.Stats,
			ErrorMessage: r.Run.ErrorMessage,
		})
	}
	return result, err
}

// Validate asks the server to validate a declaration document.
func (c *Client) Validate(ctx context.Context, document []byte, contentType string) (*ValidateResult, error) {
	var v ValidateResult
	err := c.do(ctx, http.MethodPost, "/api/v1/validate", document, contentType, &v)
	var apiErr *Error
	if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity) {
		return nil, err
	}
	return &v, nil
}

// do sends a request and decodes the JSON answer into out. A non-2xx answer
// is decoded into out as well and returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		_ = json.Unmarshal(data, out)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
