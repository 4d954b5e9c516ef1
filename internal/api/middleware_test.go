package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{
			name:        "POST with application/json - valid",
			method:      "POST",
			contentType: "application/json",
			body:        `{"test":"data"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "POST with text/plain - invalid",
			method:      "POST",
			contentType: "text/plain",
			body:        "test data",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "GET request - skip validation",
			method:      "GET",
			contentType: "text/html",
			body:        "",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "POST with empty body - valid",
			method:      "POST",
			contentType: "",
			body:        "",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "PUT with application/json - valid",
			method:      "PUT",
			contentType: "application/json; charset=utf-8",
			body:        `{"test":"data"}`,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "POST with application/yaml - valid",
			method:      "POST",
			contentType: "application/yaml",
			body:        "sites: []",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "POST with application/hcl - valid",
			method:      "POST",
			contentType: "application/hcl",
			body:        `site "main" {}`,
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := ValidateContentType(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			err := handler(c)

			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Errorf("ValidateContentType() error = %v, want nil", err)
				}
			} else {
				if err == nil {
					t.Error("ValidateContentType() error = nil, want error")
				}
				if apiErr, ok := err.(*APIError); ok {
					if apiErr.Code != tt.wantStatus {
						t.Errorf("ValidateContentType() status = %v, want %v", apiErr.Code, tt.wantStatus)
					}
				}
			}
		})
	}
}

func TestValidateAcceptHeader(t *testing.T) {
	tests := []struct {
		name       string
		accept     string
		wantStatus int
	}{
		{
			name:       "application/json - valid",
			accept:     "application/json",
			wantStatus: http.StatusOK,
		},
		{
			name:       "*/* - valid",
			accept:     "*/*",
			wantStatus: http.StatusOK,
		},
		{
			name:       "application/* - valid",
			accept:     "application/*",
			wantStatus: http.StatusOK,
		},
		{
			name:       "no accept header - valid",
			accept:     "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "text/html - invalid",
			accept:     "text/html",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "complex accept with json - valid",
			accept:     "text/html,application/json;q=0.9,*/*;q=0.8",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest("GET", "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := ValidateAcceptHeader(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			err := handler(c)

			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Errorf("ValidateAcceptHeader() error = %v, want nil", err)
				}
			} else {
				if err == nil {
					t.Error("ValidateAcceptHeader() error = nil, want error")
				}
			}
		})
	}
}

func TestValidateSiteName(t *testing.T) {
	tests := []struct {
		name       string
		site       string
		page       string
		wantStatus int
	}{
		{
			name:       "valid site",
			site:       "main",
			wantStatus: http.StatusOK,
		},
		{
			name:       "single character site",
			site:       "s",
			wantStatus: http.StatusOK,
		},
		{
			name:       "site with space - invalid",
			site:       "main site",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty site - skip validation",
			site:       "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "very long site - exceeds max",
			site:       strings.Repeat("a", 300),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "name with newline - invalid",
			site:       "main",
			page:       "home\n",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest("GET", "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("site", "name")
			c.SetParamValues(tt.site, tt.page)

			handler := ValidateSiteName(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			err := handler(c)

			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Errorf("ValidateSiteName() error = %v, want nil", err)
				}
			} else {
				if err == nil {
					t.Error("ValidateSiteName() error = nil, want error")
				}
			}
		})
	}
}

func TestValidateQueryParams(t *testing.T) {
	tests := []struct {
		name        string
		queryParams map[string]string
		wantStatus  int
	}{
		{
			name:        "no query params",
			queryParams: map[string]string{},
			wantStatus:  http.StatusOK,
		},
		{
			name: "valid limit and offset",
			queryParams: map[string]string{
				"limit":  "50",
				"offset": "10",
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "negative offset",
			queryParams: map[string]string{
				"offset": "-1",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "non-numeric limit",
			queryParams: map[string]string{
				"limit": "many",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "valid dry_run",
			queryParams: map[string]string{
				"dry_run": "true",
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "invalid dry_run",
			queryParams: map[string]string{
				"dry_run": "maybe",
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest("GET", "/", nil)
			q := req.URL.Query()
			for k, v := range tt.queryParams {
				q.Add(k, v)
			}
			req.URL.RawQuery = q.Encode()
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := ValidateQueryParams(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			err := handler(c)

			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Errorf("ValidateQueryParams() error = %v, want nil", err)
				}
			} else {
				if err == nil {
					t.Error("ValidateQueryParams() error = nil, want error")
				}
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		header     string
		value      string
		wantStatus int
	}{
		{
			name:       "no keys configured",
			wantStatus: http.StatusOK,
		},
		{
			name:       "X-API-Key header",
			keys:       []string{"secret"},
			header:     "X-API-Key",
			value:      "secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer token",
			keys:       []string{"other", "secret"},
			header:     "Authorization",
			value:      "Bearer secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			keys:       []string{"secret"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			keys:       []string{"secret"},
			header:     "X-API-Key",
			value:      "guess",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "basic auth is not a key",
			keys:       []string{"secret"},
			header:     "Authorization",
			value:      "Basic secret",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest("POST", "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := RequireAPIKey(tt.keys)(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			err := handler(c)

			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Errorf("RequireAPIKey() error = %v, want nil", err)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("RequireAPIKey() error = %v, want *echo.HTTPError", err)
			}
			if he.Code != tt.wantStatus {
				t.Errorf("RequireAPIKey() status = %v, want %v", he.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeaders(func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	err := handler(c)
	if err != nil {
		t.Fatalf("SecurityHeaders() error = %v, want nil", err)
	}

	// Check security headers
	headers := c.Response().Header()

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-Xss-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	for header, expectedValue := range expectedHeaders {
		gotValue := headers.Get(header)
		if gotValue != expectedValue {
			t.Errorf("SecurityHeaders() %s = %v, want %v", header, gotValue, expectedValue)
		}
	}
}
