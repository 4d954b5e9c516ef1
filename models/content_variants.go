package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"evalgo.org/sitesync/backend"
)

// Text is static HTML.
type Text struct {
	ContentBase
	HTML string
}

func NewText(id, html string) *Text {
	return &Text{ContentBase: ContentBase{Node: Node{ID: id}}, HTML: html}
}

func (t *Text) Kind() string { return KindText }

func (t *Text) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return t.data(KindText, map[string]string{"html": t.HTML}), nil
}

func (t *Text) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, t, res, entity)
}

// Link points at an application function: a declared page or an external URL.
type Link struct {
	ContentBase
	Label  string
	URL    string
	Target *Page
}

func NewLink(id, label, url string) *Link {
	return &Link{ContentBase: ContentBase{Node: Node{ID: id}}, Label: label, URL: url}
}

func (l *Link) Kind() string { return KindLink }

func (l *Link) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return l.data(KindLink, map[string]string{"label": l.Label, "url": l.URL}), nil
}

func (l *Link) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, l, res, entity)
}

func (l *Link) SetPageRef(slot Slot, _ int, target *Page) error {
	if slot != SlotLinkTarget {
		return invalid("content", l.ID, "cannot take a %s reference", slot)
	}
	l.Target = target
	return nil
}

func (l *Link) PageLinks() []PageLink {
	if l.Target == nil {
		return nil
	}
	return []PageLink{{Role: "target", Page: l.Target}}
}

// landing is shared by the authentication variants that send the user to a
// page after they are done.
type landing struct {
	LandingPage *Page
}

func (l *landing) setLanding(id string, slot Slot, target *Page) error {
	if slot != SlotLandingPage {
		return invalid("content", id, "cannot take a %s reference", slot)
	}
	l.LandingPage = target
	return nil
}

func (l *landing) PageLinks() []PageLink {
	if l.LandingPage == nil {
		return nil
	}
	return []PageLink{{Role: "landing-page", Page: l.LandingPage}}
}

// Login renders the login form.
type Login struct {
	ContentBase
	landing
	RememberMe bool
}

func NewLogin(id string) *Login {
	return &Login{ContentBase: ContentBase{Node: Node{ID: id}}}
}

func (l *Login) Kind() string { return KindLogin }

func (l *Login) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return l.data(KindLogin, map[string]string{"remember-me": strconv.FormatBool(l.RememberMe)}), nil
}

func (l *Login) SetPageRef(slot Slot, _ int, target *Page) error {
	return l.setLanding(l.ID, slot, target)
}

// Logout ends the session.
type Logout struct {
	ContentBase
	landing
}

func NewLogout(id string) *Logout {
	return &Logout{ContentBase: ContentBase{Node: Node{ID: id}}}
}

func (l *Logout) Kind() string { return KindLogout }

func (l *Logout) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return l.data(KindLogout, nil), nil
}

func (l *Logout) SetPageRef(slot Slot, _ int, target *Page) error {
	return l.setLanding(l.ID, slot, target)
}

// ResetPassword renders the password reset flow.
type ResetPassword struct {
	ContentBase
	landing

	// TokenTTL is how long a reset link stays valid, e.g. "24h"
	TokenTTL string
}

func NewResetPassword(id, tokenTTL string) *ResetPassword {
	return &ResetPassword{ContentBase: ContentBase{Node: Node{ID: id}}, TokenTTL: tokenTTL}
}

func (r *ResetPassword) Kind() string { return KindResetPassword }

func (r *ResetPassword) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return r.data(KindResetPassword, map[string]string{"token-ttl": r.TokenTTL}), nil
}

func (r *ResetPassword) SetPageRef(slot Slot, _ int, target *Page) error {
	return r.setLanding(r.ID, slot, target)
}

// SocialLogin offers login through external identity providers.
type SocialLogin struct {
	ContentBase
	landing
	Providers []string
}

func NewSocialLogin(id string, providers ...string) *SocialLogin {
	return &SocialLogin{ContentBase: ContentBase{Node: Node{ID: id}}, Providers: providers}
}

func (s *SocialLogin) Kind() string { return KindSocialLogin }

func (s *SocialLogin) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return s.data(KindSocialLogin, map[string]string{"providers": strings.Join(s.Providers, ",")}), nil
}

func (s *SocialLogin) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, s, res, entity)
}

func (s *SocialLogin) SetPageRef(slot Slot, _ int, target *Page) error {
	return s.setLanding(s.ID, slot, target)
}

// FileServer serves files below a directory.
type FileServer struct {
	ContentBase
	Directory string
	Listing   bool
}

func NewFileServer(id, directory string) *FileServer {
	return &FileServer{ContentBase: ContentBase{Node: Node{ID: id}}, Directory: directory}
}

func (f *FileServer) Kind() string { return KindFileServer }

func (f *FileServer) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return f.data(KindFileServer, map[string]string{
		"directory": f.Directory,
		"listing":   strconv.FormatBool(f.Listing),
	}), nil
}

func (f *FileServer) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, f, res, entity)
}

// MenuItem is one entry of a menu. Page is filled in by deferred resolution.
type MenuItem struct {
	Label string
	Page  *Page
}

// Menu is a list of links to pages.
type Menu struct {
	ContentBase
	Items []MenuItem
}

func NewMenu(id string) *Menu {
	return &Menu{ContentBase: ContentBase{Node: Node{ID: id}}}
}

// AddItem appends an entry and returns its index, used as the reference
// index when the target page is resolved later.
func (m *Menu) AddItem(label string) int {
	m.Items = append(m.Items, MenuItem{Label: label})
	return len(m.Items) - 1
}

func (m *Menu) Kind() string { return KindMenu }

func (m *Menu) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	cfg := map[string]string{"items": strconv.Itoa(len(m.Items))}
	for i, item := range m.Items {
		cfg[fmt.Sprintf("item.%d.label", i)] = item.Label
	}
	return m.data(KindMenu, cfg), nil
}

func (m *Menu) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, m, res, entity)
}

func (m *Menu) SetPageRef(slot Slot, index int, target *Page) error {
	if slot != SlotMenuItem {
		return invalid("content", m.ID, "cannot take a %s reference", slot)
	}
	if index < 0 || index >= len(m.Items) {
		return invalid("content", m.ID, "menu item %d does not exist", index)
	}
	m.Items[index].Page = target
	return nil
}

func (m *Menu) PageLinks() []PageLink {
	var links []PageLink
	for i, item := range m.Items {
		if item.Page != nil {
			links = append(links, PageLink{Role: fmt.Sprintf("item.%d", i), Page: item.Page})
		}
	}
	return links
}

// Scripted is generator content driven by an uploaded script.
type Scripted struct {
	ContentBase

	// Script is the resource path of the script
	Script     string
	Parameters map[string]string
}

func NewScripted(id, script string, params map[string]string) *Scripted {
	return &Scripted{ContentBase: ContentBase{Node: Node{ID: id}}, Script: script, Parameters: params}
}

func (s *Scripted) Kind() string { return KindScripted }

func (s *Scripted) Build(ctx context.Context, res backend.ResourceLookup, _ *backend.Content) (backend.ContentData, error) {
	site := s.parent.Site()
	if site == nil {
		return backend.ContentData{}, invalid("content", s.ID, "not attached to a site")
	}
	found, err := res.FindResources(ctx, site.ID, s.Script)
	if err != nil {
		return backend.ContentData{}, &BackendError{Op: "find resources", ID: s.Script, Err: err}
	}
	switch len(found) {
	case 0:
		return backend.ContentData{}, &ReferenceNotFoundError{Kind: "resource", ID: s.Script, Referrer: s.ID}
	case 1:
	default:
		return backend.ContentData{}, invalid("content", s.ID, "script path %q matches %d resources", s.Script, len(found))
	}

	cfg := map[string]string{"script": found[0].Key, "script.path": found[0].Path}
	for k, v := range s.Parameters {
		cfg["param."+k] = v
	}
	return s.data(KindScripted, cfg), nil
}

func (s *Scripted) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	return digestModified(ctx, s, res, entity)
}

// Composite owns child content, each attached under a purpose tag. It has
// no boxes of its own.
type Composite struct {
	ContentBase

	delegates []Delegate
	removed   []string
}

func NewComposite(id string) *Composite {
	return &Composite{ContentBase: ContentBase{Node: Node{ID: id}}}
}

// Delegate appends a child under a purpose and returns it.
func (c *Composite) Delegate(purpose string, child Content) Content {
	child.Base().parent = ContentParent(c)
	c.delegates = append(c.delegates, Delegate{Content: child, Purpose: purpose})
	return child
}

// Remove drops a child and marks its id for removal.
func (c *Composite) Remove(id string) {
	kept := c.delegates[:0]
	for _, d := range c.delegates {
		if d.Content.Identifier() != id {
			kept = append(kept, d)
		}
	}
	c.delegates = kept
	c.removed = appendUnique(c.removed, id)
}

func (c *Composite) Delegates() []Delegate { return c.delegates }
func (c *Composite) Removed() []string     { return c.removed }
func (c *Composite) Kind() string          { return KindComposite }

func (c *Composite) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	return c.data(KindComposite, nil), nil
}
