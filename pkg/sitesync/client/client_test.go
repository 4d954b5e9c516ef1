package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend/memory"
	"evalgo.org/sitesync/internal/api"
	"evalgo.org/sitesync/internal/config"
)

const document = `
sites:
  - id: s
    layouts: [{id: l, boxes: [{id: body}]}]
    templates: [{id: t, layout: l}]
    pages:
      - id: Home
        path: /
        template: t
        boxes:
          - box: body
            content:
              - {id: back, kind: link, label: Home, page: Home}
`

func newServer(t *testing.T, keys ...string) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Security.APIKeys = keys
	srv := httptest.NewServer(api.New(cfg, memory.New(), zerolog.Nop(), nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("not a url")
	assert.Error(t, err)

	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestApplyAndList(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	result, err := c.Apply(ctx, []byte(document), "application/yaml", ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "s", result.Results[0].Site)
	assert.Equal(t, "done", result.Results[0].Phase)
	assert.Positive(t, result.Results[0].Stats.Created)

	sites, err := c.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "s", sites[0].Name)
}

func TestApplyDryRunAndFilter(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	result, err := c.Apply(ctx, []byte(document), "application/yaml", ApplyOptions{DryRun: true, Sites: []string{"s"}})
	require.NoError(t, err)
	assert.True(t, result.DryRun)

	sites, err := c.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestApplyFailure(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)

	broken := strings.Replace(document, "page: Home}", "page: Missing}", 1)
	result, err := c.Apply(context.Background(), []byte(broken), "application/yaml", ApplyOptions{})

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Error, "Missing")
	assert.NotEmpty(t, result.Results[0].ErrorMessage)
}

func TestValidate(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := c.Validate(ctx, []byte(document), "application/yaml")
	require.NoError(t, err)
	assert.True(t, v.Valid)

	v, err = c.Validate(ctx, []byte(strings.Replace(document, "page: Home}", "page: Missing}", 1)), "application/yaml")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Errors)

	_, err = c.Validate(ctx, []byte("sites: ["), "application/yaml")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestAPIKey(t *testing.T) {
	srv := newServer(t, "secret")

	anonymous, err := New(srv.URL)
	require.NoError(t, err)
	_, err = anonymous.ListSites(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	authorized, err := New(srv.URL, WithAPIKey("secret"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	_, err = authorized.ListSites(context.Background())
	assert.NoError(t, err)
}
