// Package storage provides the persistent backend for SiteSync on SQLite.
//
// Every record is stored as a JSON document next to the columns used to look
// it up, so the record types of the backend package stay the single source
// of truth for the persisted shape. A unit of work is one SQL transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/internal/config"
)

// ErrNotFound is returned when an update or trash addresses a key that does
// not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS sites (
    name TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hostnames (
    address TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layouts (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    name TEXT NOT NULL,
    data TEXT NOT NULL,
    UNIQUE(site, name)
);

CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    name TEXT NOT NULL,
    live INTEGER NOT NULL DEFAULT 1,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    name TEXT NOT NULL,
    live INTEGER NOT NULL DEFAULT 1,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    name TEXT NOT NULL,
    live INTEGER NOT NULL DEFAULT 1,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS permissions (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    name TEXT NOT NULL,
    data TEXT NOT NULL,
    UNIQUE(site, name)
);

CREATE TABLE IF NOT EXISTS resources (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    path TEXT NOT NULL,
    content_type TEXT
);

CREATE TABLE IF NOT EXISTS placements (
    owner_kind TEXT NOT NULL,
    owner_key TEXT NOT NULL,
    box TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY(owner_kind, owner_key, box)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_live ON templates(site, name) WHERE live = 1;
CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_live ON pages(site, name) WHERE live = 1;
CREATE UNIQUE INDEX IF NOT EXISTS idx_content_live ON content(site, name) WHERE live = 1;
CREATE INDEX IF NOT EXISTS idx_hostnames_site ON hostnames(site);
CREATE INDEX IF NOT EXISTS idx_resources_site ON resources(site);
`

// Storage is the SQLite backend store.
type Storage struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// New opens the database configured in cfg.
func New(cfg *config.Config) (*Storage, error) {
	return Open(cfg.Database.Path, cfg.Database.BusyTimeout)
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string, busyTimeout time.Duration) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps units of work from
	// tripping over each other's locks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Storage{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Storage) Path() string {
	return s.path
}

// WithinUnit runs fn inside a transaction. The transaction commits only if
// fn succeeds; a panic in fn rolls it back before propagating, so the single
// connection is released.
func (s *Storage) WithinUnit(ctx context.Context, fn func(b backend.Backend) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback()
		}
	}()

	err = fn(&txBackend{q: tx, now: s.now})
	finished = true
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddResource registers an uploaded file for a site.
func (s *Storage) AddResource(ctx context.Context, site, path, contentType string) (*backend.Resource, error) {
	r := &backend.Resource{Key: uuid.NewString(), Site: site, Path: path, ContentType: contentType}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (id, site, path, content_type) VALUES (?, ?, ?, ?)`,
		r.Key, r.Site, r.Path, r.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to add resource %s: %w", path, err)
	}
	return r, nil
}

// FindResources looks resources up outside a unit of work.
func (s *Storage) FindResources(ctx context.Context, site, path string) ([]backend.Resource, error) {
	return findResources(ctx, s.db, site, path)
}

var _ backend.Store = (*Storage)(nil)
var _ backend.Lister = (*Storage)(nil)
