package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend/memory"
	"evalgo.org/sitesync/internal/config"
	"evalgo.org/sitesync/internal/integrity"
)

const siteDocument = `
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
              - {id: hello, kind: text, html: <p>hi</p>}
              - {id: back, kind: link, label: Home, page: Home}
      - id: About
        path: /about
        template: t
`

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*Server, *memory.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Declarations.Paths = []string{filepath.Join("..", "declfile", "testdata", "site.yaml")}
	cfg.Placeholders = map[string]string{"env": "prod", "domain": "example.org"}
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.New()
	return New(cfg, store, zerolog.Nop(), nil), store
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "sitesync", health.Service)
	assert.Equal(t, 0, health.Sites)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestApplyDocumentThenRead(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[ApplyResponse](t, rec)
	require.Len(t, applied.Results, 1)
	assert.Equal(t, "s", applied.Results[0].Site)
	assert.Zero(t, applied.Failed)
	assert.Empty(t, applied.Error)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sites := decode[SitesResponse](t, rec)
	require.Equal(t, 1, sites.Count)
	assert.Equal(t, "s", sites.Sites[0].Name)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites/s", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	site := decode[SiteResponse](t, rec)
	assert.Equal(t, 2, site.Pages)
	assert.Equal(t, 1, site.Templates)
	assert.Equal(t, 2, site.Content)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites/s/pages?limit=1&offset=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pages := decode[PagesResponse](t, rec)
	assert.Equal(t, 1, pages.Count)
	assert.Equal(t, 2, pages.Total)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites/s/content?kind=link", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	content := decode[ContentListResponse](t, rec)
	require.Equal(t, 1, content.Total)
	assert.Equal(t, "back", content.Content[0].Name)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites/s/content/hello", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"hello"`)
}

func TestApplyIsIdempotent(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code)

	store.ResetCalls()
	rec = do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.Creates())
}

func TestApplyDryRun(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/apply?dry_run=true", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[ApplyResponse](t, rec)
	assert.True(t, applied.DryRun)

	rec = do(t, srv, http.MethodGet, "/api/v1/sites", "", "")
	assert.Zero(t, decode[SitesResponse](t, rec).Count)
}

func TestMalformedBooleanParams(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"apply dry_run", "/api/v1/apply?dry_run=yes"},
		{"validate simulate", "/api/v1/validate?simulate=on"},
		{"audit repair", "/api/v1/audit?repair=please"},
		{"audit dry_run", "/api/v1/audit?repair=true&dry_run=no"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, nil)
			method := http.MethodPost
			body := siteDocument
			if strings.HasPrefix(tt.path, "/api/v1/audit") {
				method, body = http.MethodGet, ""
			}

			rec := do(t, srv, method, tt.path, "application/yaml", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Zero(t, store.Creates())
		})
	}
}

func TestApplyConfiguredPaths(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/apply?site=main", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/sites/main", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantStatus  int
	}{
		{
			name:        "unsupported content type",
			target:      "/api/v1/apply",
			contentType: "text/plain",
			body:        "sites: []",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "malformed yaml",
			target:      "/api/v1/apply",
			contentType: "application/yaml",
			body:        "sites: [",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "field validation",
			target:      "/api/v1/apply",
			contentType: "application/yaml",
			body:        "sites: [{id: s, pages: [{id: P, path: relative, template: t}]}]",
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "unknown site filter",
			target:      "/api/v1/apply?site=nope",
			contentType: "application/yaml",
			body:        siteDocument,
			wantStatus:  http.StatusUnprocessableEntity,
		},
		{
			name:        "unresolved link fails the site",
			target:      "/api/v1/apply",
			contentType: "application/yaml",
			body:        strings.Replace(siteDocument, "page: Home}", "page: Missing}", 1),
			wantStatus:  http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, nil)
			rec := do(t, srv, http.MethodPost, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestApplyRejectsConcurrentApply(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.applying.Lock()
	defer srv.applying.Unlock()

	rec := do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApplyRequiresAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.APIKeys = []string{"secret"}
	})

	rec := do(t, srv, http.MethodGet, "/api/v1/sites", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays public
	rec = do(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateDeclarations(t *testing.T) {
	srv, store := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/validate", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ValidateResponse](t, rec)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Sites)
	assert.Zero(t, store.TotalCalls(), "validation must not touch the server store")

	broken := strings.Replace(siteDocument, "page: Home}", "page: Missing}", 1)
	rec = do(t, srv, http.MethodPost, "/api/v1/validate", "application/yaml", broken)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	result = decode[ValidateResponse](t, rec)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "Missing")

	rec = do(t, srv, http.MethodPost, "/api/v1/validate?simulate=false", "application/yaml", broken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateHCL(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	body := `
site "h" {
  layout "l" {
    box "body" {}
  }
  template "t" {
    layout = "l"
  }
  page "Home" {
    path     = "/"
    template = "t"
  }
}
`
	rec := do(t, srv, http.MethodPost, "/api/v1/validate", "application/hcl", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[ValidateResponse](t, rec).Valid)
}

func TestSiteNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, target := range []string{
		"/api/v1/sites/nope",
		"/api/v1/sites/nope/pages",
		"/api/v1/sites/nope/content",
		"/api/v1/sites/nope/content/x",
	} {
		rec := do(t, srv, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestAudit(t *testing.T) {
	auditLog := filepath.Join(t.TempDir(), "audit.jsonl")
	cfg := config.Default()
	cfg.Integrity.AuditLog = auditLog
	audit, err := integrity.NewAuditLogger(auditLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	store := memory.New()
	srv := New(cfg, store, zerolog.Nop(), audit)

	rec := do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/audit?repair=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AuditResponse](t, rec)
	require.NotNil(t, resp.Scan)
	assert.Equal(t, 100, resp.Scan.Summary.HealthScore)
	require.NotNil(t, resp.Repair)
	assert.True(t, resp.Repair.DryRun)

	rec = do(t, srv, http.MethodGet, "/api/v1/audit/history?limit=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[AuditHistoryResponse](t, rec)
	require.Equal(t, 1, history.Count)
	assert.Equal(t, "execution", history.Entries[0].OperationType)
}

func TestAuditHistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/audit/history", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConcurrentReads(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/apply", "application/yaml", siteDocument)
	require.Equal(t, http.StatusOK, rec.Code)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sites/s/pages", nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
}
