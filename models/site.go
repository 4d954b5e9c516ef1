package models

import (
	"fmt"
	"strings"
)

// PlaceholderFunc expands placeholder tokens in paths and hostnames.
type PlaceholderFunc func(string) (string, error)

// Hostname binds an address to the page served for it.
type Hostname struct {
	Address     string
	WelcomePage *Page
}

// Site is the root of a declared model. It is mutated only while it is being
// constructed and is read-only once handed to the reconciliation engine.
type Site struct {
	Node

	Locale   string
	Timezone string

	Hostnames []*Hostname
	Layouts   []*Layout
	Templates []*Template
	Pages     []*Page

	// Content is top-level content not placed in any box (web services,
	// directly addressable endpoints)
	Content []Content

	// RemovedPages and RemovedContent hold ids to trash in the backend
	RemovedPages   []string
	RemovedContent []string

	// RemovedHostnames are addresses this site gives up
	RemovedHostnames []string

	deferred     []Reference
	placeholders PlaceholderFunc
}

// SiteOption configures a site at construction.
type SiteOption func(*Site)

func WithLocale(locale string) SiteOption {
	return func(s *Site) { s.Locale = locale }
}

func WithTimezone(tz string) SiteOption {
	return func(s *Site) { s.Timezone = tz }
}

// WithPlaceholders sets the function used to expand ${name} tokens.
func WithPlaceholders(fn PlaceholderFunc) SiteOption {
	return func(s *Site) { s.placeholders = fn }
}

// NewSite declares a site.
func NewSite(id string, opts ...SiteOption) *Site {
	s := &Site{Node: Node{ID: id}, Locale: "en", Timezone: "UTC"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePlaceholders expands tokens in v. Any token left in the result is
// an error.
func (s *Site) ResolvePlaceholders(v string) (string, error) {
	out := v
	if s.placeholders != nil {
		var err error
		out, err = s.placeholders(v)
		if err != nil {
			return "", err
		}
	}
	if strings.Contains(out, "${") {
		return "", fmt.Errorf("unresolved placeholder in %q", out)
	}
	return out, nil
}

// AddLayout appends a layout.
func (s *Site) AddLayout(l *Layout) (*Layout, error) {
	if s.Layout(l.ID) != nil {
		return nil, invalid("layout", l.ID, "declared more than once")
	}
	l.site = s
	s.Layouts = append(s.Layouts, l)
	return l, nil
}

// AddTemplate appends a template.
func (s *Site) AddTemplate(t *Template) (*Template, error) {
	if s.Template(t.ID) != nil {
		return nil, invalid("template", t.ID, "declared more than once")
	}
	t.site = s
	s.Templates = append(s.Templates, t)
	return t, nil
}

// AddPage resolves the page path and appends the page.
func (s *Site) AddPage(p *Page) (*Page, error) {
	if s.Page(p.ID) != nil {
		return nil, invalid("page", p.ID, "declared more than once")
	}
	path, err := s.ResolvePlaceholders(p.Path)
	if err != nil {
		return nil, invalid("page", p.ID, "path: %v", err)
	}
	if strings.TrimSpace(path) == "" {
		return nil, invalid("page", p.ID, "path is blank")
	}
	p.Path = path
	p.site = s
	s.Pages = append(s.Pages, p)
	return p, nil
}

// AddContent appends top-level content, resolving its path.
func (s *Site) AddContent(c Content) (Content, error) {
	base := c.Base()
	if base.Path != "" {
		path, err := s.ResolvePlaceholders(base.Path)
		if err != nil {
			return nil, invalid("content", c.Identifier(), "path: %v", err)
		}
		base.Path = path
	}
	base.parent = SiteParent(s)
	s.Content = append(s.Content, c)
	return c, nil
}

// AddHostname binds an address to an already declared welcome page.
func (s *Site) AddHostname(address, welcomePageID string) (*Hostname, error) {
	addr, err := s.ResolvePlaceholders(address)
	if err != nil {
		return nil, invalid("hostname", address, "%v", err)
	}
	page := s.Page(welcomePageID)
	if page == nil {
		return nil, &ReferenceNotFoundError{Kind: "page", ID: welcomePageID, Referrer: addr}
	}
	for _, h := range s.Hostnames {
		if h.Address == addr {
			return nil, invalid("hostname", addr, "declared more than once")
		}
	}
	h := &Hostname{Address: addr, WelcomePage: page}
	s.Hostnames = append(s.Hostnames, h)
	return h, nil
}

// RemovePage moves a page to the removal list. An id that was never declared
// is recorded as is so a page persisted by an earlier run is trashed.
func (s *Site) RemovePage(id string) {
	kept := s.Pages[:0]
	for _, p := range s.Pages {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.Pages = kept
	s.RemovedPages = appendUnique(s.RemovedPages, id)
}

// RemoveHostname releases an address so another site can claim it. A
// declared hostname with the same address is dropped.
func (s *Site) RemoveHostname(address string) error {
	addr, err := s.ResolvePlaceholders(address)
	if err != nil {
		return invalid("hostname", address, "%v", err)
	}
	kept := s.Hostnames[:0]
	for _, h := range s.Hostnames {
		if h.Address != addr {
			kept = append(kept, h)
		}
	}
	s.Hostnames = kept
	s.RemovedHostnames = appendUnique(s.RemovedHostnames, addr)
	return nil
}

// RemoveContent marks top-level content for removal.
func (s *Site) RemoveContent(id string) {
	kept := s.Content[:0]
	for _, c := range s.Content {
		if c.Identifier() != id {
			kept = append(kept, c)
		}
	}
	s.Content = kept
	s.RemovedContent = appendUnique(s.RemovedContent, id)
}

func (s *Site) Page(id string) *Page {
	for _, p := range s.Pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Site) Template(id string) *Template {
	for _, t := range s.Templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Site) Layout(id string) *Layout {
	for _, l := range s.Layouts {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// FindContent looks a content id up anywhere in the tree.
func (s *Site) FindContent(id string) Content {
	var found Content
	_ = s.WalkContent(func(c Content) error {
		if found == nil && c.Identifier() == id {
			found = c
		}
		return nil
	})
	return found
}

// WalkContent visits every declared content once, in pre-order: template
// content, page content, then top-level content. Delegates follow their
// composite.
func (s *Site) WalkContent(fn func(c Content) error) error {
	seen := make(map[string]bool)
	var visit func(c Content) error
	visit = func(c Content) error {
		if seen[c.Identifier()] {
			return nil
		}
		seen[c.Identifier()] = true
		if err := fn(c); err != nil {
			return err
		}
		if d, ok := c.(Delegating); ok {
			for _, child := range d.Delegates() {
				if err := visit(child.Content); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, t := range s.Templates {
		for _, c := range t.boxes.all() {
			if err := visit(c); err != nil {
				return err
			}
		}
	}
	for _, p := range s.Pages {
		for _, c := range p.boxes.all() {
			if err := visit(c); err != nil {
				return err
			}
		}
	}
	for _, c := range s.Content {
		if err := visit(c); err != nil {
			return err
		}
	}
	return nil
}

// Defer queues a reference for resolution after construction.
func (s *Site) Defer(r Reference) {
	s.deferred = append(s.deferred, r)
}

// Deferred returns the queued references in order.
func (s *Site) Deferred() []Reference {
	return s.deferred
}

// ClearDeferred empties the queue.
func (s *Site) ClearDeferred() {
	s.deferred = nil
}

// RemovalContent collects every content id marked for removal: site level,
// page, template and, transitively, composite removal lists.
func (s *Site) RemovalContent() []string {
	var out []string
	out = append(out, s.RemovedContent...)
	for _, t := range s.Templates {
		out = append(out, t.Removed()...)
	}
	for _, p := range s.Pages {
		out = append(out, p.Removed()...)
	}
	_ = s.WalkContent(func(c Content) error {
		if d, ok := c.(Delegating); ok {
			out = append(out, d.Removed()...)
		}
		return nil
	})

	var uniq []string
	for _, id := range out {
		uniq = appendUnique(uniq, id)
	}
	return uniq
}

// Validate checks the structural invariants the engine relies on. It makes
// no backend calls.
func (s *Site) Validate() error {
	if len(s.Hostnames) == 0 {
		return invalid("site", s.ID, "at least one hostname is required")
	}
	for _, h := range s.Hostnames {
		if h.WelcomePage == nil || s.Page(h.WelcomePage.ID) != h.WelcomePage {
			return invalid("hostname", h.Address, "welcome page is not a declared page")
		}
	}
	for _, l := range s.Layouts {
		seen := make(map[string]bool)
		var dup string
		l.Walk(func(b *Box) {
			if seen[b.ID] && dup == "" {
				dup = b.ID
			}
			seen[b.ID] = true
		})
		if dup != "" {
			return invalid("layout", l.ID, "box %q declared more than once", dup)
		}
	}
	for _, t := range s.Templates {
		if t.Layout == nil {
			return invalid("template", t.ID, "no layout")
		}
		if s.Layout(t.Layout.ID) != t.Layout {
			return &ReferenceNotFoundError{Kind: "layout", ID: t.Layout.ID, Referrer: t.ID}
		}
		for _, bc := range t.Boxes() {
			if t.Layout.FindBox(bc.Box) == nil {
				return invalid("template", t.ID, "box %q is not part of layout %q", bc.Box, t.Layout.ID)
			}
		}
	}
	for _, p := range s.Pages {
		if strings.TrimSpace(p.Path) == "" {
			return invalid("page", p.ID, "path is blank")
		}
		if p.Template == nil {
			return invalid("page", p.ID, "no template")
		}
		if s.Template(p.Template.ID) != p.Template {
			return &ReferenceNotFoundError{Kind: "template", ID: p.Template.ID, Referrer: p.ID}
		}
		if p.Permission != nil && p.Permission.Name == "" {
			return invalid("page", p.ID, "permission without a name")
		}
		if p.AuthenticationPage != nil && s.Page(p.AuthenticationPage.ID) != p.AuthenticationPage {
			return &ReferenceNotFoundError{Kind: "page", ID: p.AuthenticationPage.ID, Referrer: p.ID}
		}
		for _, bc := range p.Boxes() {
			if p.Template.Layout != nil && p.Template.Layout.FindBox(bc.Box) == nil {
				return invalid("page", p.ID, "box %q is not part of layout %q", bc.Box, p.Template.Layout.ID)
			}
		}
	}
	return s.validateContent()
}

// validateContent rejects two different content declarations sharing an id
// and composites that contain themselves.
func (s *Site) validateContent() error {
	byID := make(map[string]Content)
	var check func(c Content, path map[string]bool) error
	check = func(c Content, path map[string]bool) error {
		id := c.Identifier()
		if id == "" {
			return invalid("content", "", "content without an id")
		}
		if path[id] {
			return invalid("content", id, "composite contains itself")
		}
		if prev, ok := byID[id]; ok && prev != c {
			return invalid("content", id, "declared more than once")
		}
		byID[id] = c
		d, ok := c.(Delegating)
		if !ok {
			return nil
		}
		path[id] = true
		defer delete(path, id)
		for _, child := range d.Delegates() {
			if err := check(child.Content, path); err != nil {
				return err
			}
		}
		return nil
	}

	var roots []Content
	for _, t := range s.Templates {
		roots = append(roots, t.boxes.all()...)
	}
	for _, p := range s.Pages {
		roots = append(roots, p.boxes.all()...)
	}
	roots = append(roots, s.Content...)
	for _, c := range roots {
		if err := check(c, make(map[string]bool)); err != nil {
			return err
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
