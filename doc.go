// Package sitesync converges a site store onto declarative site descriptions.
//
// # Overview
//
// A site is declared once, in YAML or HCL, as layouts (box trees), templates,
// pages, content and hostnames. SiteSync compares the declaration with what
// the store holds and creates, updates, revises or trashes records until the
// two agree. Applying the same declarations twice changes nothing.
//
// The main components are:
//   - Declarative model: sites, pages, templates, layouts and the content
//     variants placed in their boxes
//   - Reconciliation engine: applies one site per unit of work in phases
//     (removals, skeletons, content, links)
//   - Backend adapter: the persistence contract, implemented in memory and
//     on SQLite
//   - Integrity audit: scans the store for duplicates, dangling keys and
//     orphaned content, and repairs what can be trashed
//   - Admin API: read access to stored sites, remote applies and audits
//
// # Embedding
//
// The models, deferred, reconcile and backend packages are importable. An
// application can declare sites in Go, supply its own content variants by
// embedding models.ContentBase, and run reconcile.Engine against its own
// backend.Store. backend/memory is a ready in-process store.
//
// # Architecture
//
//	┌──────────────────┐
//	│ Declaration files│
//	│  (YAML / HCL)    │
//	└────────┬─────────┘
//	         │ declfile
//	┌────────▼─────────┐       ┌─────────────────┐
//	│  Site model      │       │  Admin API      │
//	│  (models)        │       │  (Echo REST)    │
//	└────────┬─────────┘       └────────┬────────┘
//	         │ reconcile                │
//	┌────────▼─────────┐                │
//	│  Backend adapter │◄───────────────┘
//	│ (SQLite / memory)│
//	└──────────────────┘
//
// # Two-pass application
//
// Pages may refer to pages declared later (a login form's landing page, a
// menu item, a hostname's welcome page). The model queues such references as
// deferred descriptors. The engine first creates every page and template
// without content, then fills their boxes, and finally resolves the queued
// references against the pages it just persisted.
//
// # Usage
//
// Apply the configured declarations:
//
//	sitesync apply --config configs/config.yaml
//
// Preview an apply without persisting anything:
//
//	sitesync apply sites/main.yaml --dry-run
//
// Check declarations against an in-memory store:
//
//	sitesync validate sites/
//
// Audit the store and repair low risk issues:
//
//	sitesync audit --repair --dry-run=false
//
// Start the admin API:
//
//	sitesync serve
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (config.yaml, configs/config.yaml, ~/.sitesync/, /etc/sitesync/)
//   - Environment variables (SITESYNC_ prefix)
//   - .env file
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	database:
//	  path: ./data/sitesync.db
//	declarations:
//	  paths: [./sites]
//	placeholders:
//	  domain: example.org
//	reconcile:
//	  continue_on_error: true
//	integrity:
//	  audit_log: ./data/audit.jsonl
//
// # API Endpoints
//
//   - GET  /health                              - Store reachability and version
//   - GET  /api/v1/sites                        - List stored sites
//   - GET  /api/v1/sites/:site                  - Site with hostnames and counts
//   - GET  /api/v1/sites/:site/pages            - Pages (paginated)
//   - GET  /api/v1/sites/:site/content          - Content (paginated, ?kind=)
//   - GET  /api/v1/sites/:site/content/:name    - One content record
//   - POST /api/v1/apply                        - Apply a document or the configured paths
//   - POST /api/v1/validate                     - Validate a document
//   - GET  /api/v1/audit                        - Integrity scan, optional repair
//   - GET  /api/v1/audit/history                - Audit log entries
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Build the binary:
//
//	go build -o sitesync ./cmd/sitesync
//
// # Technology Stack
//
//   - Go 1.25+
//   - Cobra and Viper (CLI and configuration)
//   - Echo v4 (admin API)
//   - SQLite via modernc.org/sqlite (storage)
//   - yaml.v3, HCL v2 and go-cty (declaration files)
//   - zerolog (logging)
package sitesync
