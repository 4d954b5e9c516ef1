// Package memory is an in-process backend.Store. Engine tests use it as the
// test double and `sitesync validate` simulates a first apply against it.
//
// A unit of work snapshots the whole state on entry and restores it when
// the unit fails, which gives the same all-or-nothing behavior as the SQL
// store.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalgo.org/sitesync/backend"
)

var (
	// ErrNotFound is returned when an update or trash addresses a key that
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a create would give a site two live
	// records with the same name.
	ErrDuplicate = errors.New("duplicate record")
)

// state is the whole store. It is exported field by field only so a unit of
// work can snapshot it through encoding/json.
type state struct {
	Sites       []*backend.Site       `json:"sites"`
	Hostnames   []*backend.Hostname   `json:"hostnames"`
	Layouts     []*backend.Layout     `json:"layouts"`
	Templates   []*backend.Template   `json:"templates"`
	Pages       []*backend.Page       `json:"pages"`
	Content     []*backend.Content    `json:"content"`
	Permissions []*backend.Permission `json:"permissions"`
	Resources   []*backend.Resource   `json:"resources"`
	Placements  []backend.Placement   `json:"placements"`
}

// Store keeps every record in memory. It is safe for concurrent use; units
// of work are serialized.
type Store struct {
	mu    sync.Mutex
	data  *state
	calls map[string]int
	now   func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{data: &state{}, calls: make(map[string]int), now: time.Now}
}

// WithinUnit runs fn with exclusive access to the store. When fn fails or
// panics the store is put back the way it was.
func (s *Store) WithinUnit(ctx context.Context, fn func(b backend.Backend) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to snapshot store: %w", err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = s.restore(snapshot)
		}
	}()

	err = fn(&unit{store: s})
	finished = true
	if err != nil {
		if uerr := s.restore(snapshot); uerr != nil {
			return errors.Join(err, fmt.Errorf("failed to restore store: %w", uerr))
		}
		return err
	}
	return nil
}

func (s *Store) restore(snapshot []byte) error {
	restored := &state{}
	if err := json.Unmarshal(snapshot, restored); err != nil {
		return err
	}
	s.data = restored
	return nil
}

// Calls returns how often each backend operation ran, keyed like
// "create page" or "find content".
func (s *Store) Calls() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		out[k] = v
	}
	return out
}

// Creates sums every create operation, revisions included.
func (s *Store) Creates() int {
	n := 0
	for op, count := range s.Calls() {
		if strings.HasPrefix(op, "create ") {
			n += count
		}
	}
	return n
}

// TotalCalls sums every operation.
func (s *Store) TotalCalls() int {
	n := 0
	for _, count := range s.Calls() {
		n += count
	}
	return n
}

// ResetCalls clears the counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// AddResource registers an uploaded file.
func (s *Store) AddResource(site, path, contentType string) *backend.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &backend.Resource{Key: uuid.NewString(), Site: site, Path: path, ContentType: contentType}
	s.data.Resources = append(s.data.Resources, r)
	cp := *r
	return &cp
}

// FindResources is the lookup content variants use while building.
func (s *Store) FindResources(ctx context.Context, site, path string) ([]backend.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findResources(site, path), nil
}

func (d *state) findResources(site, path string) []backend.Resource {
	var out []backend.Resource
	for _, r := range d.Resources {
		if r.Site == site && backend.MatchResourcePath(r.Path, path) {
			out = append(out, *r)
		}
	}
	return out
}

// Lister

func (s *Store) ListSites(ctx context.Context) ([]*backend.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*backend.Site, 0, len(s.data.Sites))
	for _, site := range s.data.Sites {
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListHostnames(ctx context.Context, site string) ([]*backend.Hostname, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*backend.Hostname
	for _, h := range s.data.Hostnames {
		if h.Site == site {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListPages(ctx context.Context, site string) ([]*backend.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*backend.Page
	for _, p := range s.data.Pages {
		if p.Site == site && !p.Trashed {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListTemplates(ctx context.Context, site string) ([]*backend.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*backend.Template
	for _, t := range s.data.Templates {
		if t.Site == site && !t.Trashed {
			out = append(out, cloneTemplate(t))
		}
	}
	return out, nil
}

func (s *Store) ListContent(ctx context.Context, site string) ([]*backend.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*backend.Content
	for _, c := range s.data.Content {
		if c.Site == site && live(c) {
			out = append(out, cloneContent(c))
		}
	}
	return out, nil
}

func (s *Store) ListPlacements(ctx context.Context, site string) ([]backend.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []backend.Placement
	for _, p := range s.data.Placements {
		if s.data.ownerSite(p.Owner) == site {
			out = append(out, backend.Placement{Owner: p.Owner, Box: p.Box, Content: append([]string(nil), p.Content...)})
		}
	}
	return out, nil
}

func (d *state) ownerSite(o backend.Owner) string {
	switch o.Kind {
	case backend.OwnerPage:
		for _, p := range d.Pages {
			if p.Key == o.Key {
				return p.Site
			}
		}
	case backend.OwnerTemplate:
		for _, t := range d.Templates {
			if t.Key == o.Key {
				return t.Site
			}
		}
	}
	return ""
}

func live(c *backend.Content) bool {
	return !c.Trashed && !c.Superseded
}

func cloneTemplate(t *backend.Template) *backend.Template {
	cp := *t
	cp.Resources = append([]string(nil), t.Resources...)
	return &cp
}

func cloneContent(c *backend.Content) *backend.Content {
	cp := *c
	cp.Resources = append([]string(nil), c.Resources...)
	cp.Delegates = append([]backend.Delegate(nil), c.Delegates...)
	if c.Config != nil {
		cp.Config = make(map[string]string, len(c.Config))
		for k, v := range c.Config {
			cp.Config[k] = v
		}
	}
	if c.Links != nil {
		cp.Links = make(map[string]string, len(c.Links))
		for k, v := range c.Links {
			cp.Links[k] = v
		}
	}
	return &cp
}

var _ backend.Store = (*Store)(nil)
var _ backend.Lister = (*Store)(nil)
