package api

import (
	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/integrity"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Sites   int    `json:"sites"`
	Error   string `json:"error,omitempty"`
}

// SitesResponse represents a list of sites.
type SitesResponse struct {
	Count int             `json:"count"`
	Sites []*backend.Site `json:"sites"`
}

// SiteResponse describes one site with its hostnames and record counts.
type SiteResponse struct {
	*backend.Site
	Hostnames []*backend.Hostname `json:"hostnames"`
	Pages     int                 `json:"pages"`
	Templates int                 `json:"templates"`
	Content   int                 `json:"content"`
}

// PagesResponse represents a page of pages.
type PagesResponse struct {
	Count  int             `json:"count"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Pages  []*backend.Page `json:"pages"`
}

// ContentListResponse represents a page of content records.
type ContentListResponse struct {
	Count   int                `json:"count"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	Content []*backend.Content `json:"content"`
}

// ApplyResponse wraps an apply report with the error that ended it, if any.
type ApplyResponse struct {
	*apply.Report
	Error string `json:"error,omitempty"`
}

// ValidateResponse reports whether a declaration document is usable.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Sites  int      `json:"sites"`
	Errors []string `json:"errors,omitempty"`
}

// AuditResponse is a scan report with the repair that followed it, if any.
type AuditResponse struct {
	Scan   *integrity.ScanReport   `json:"scan"`
	Repair *integrity.RepairResult `json:"repair,omitempty"`
}

// AuditHistoryResponse represents a list of audit log entries.
type AuditHistoryResponse struct {
	Count   int                    `json:"count"`
	Entries []integrity.AuditEntry `json:"entries"`
}
