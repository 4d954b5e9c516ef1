package models

import "strings"

// WildcardSuffix marks a page path that matches every path under its prefix.
const WildcardSuffix = "*"

// Permission describes the access right a page requires. Name is the
// programmatic name; permissions are shared across pages by name.
type Permission struct {
	Name  string
	Title string
}

// Page is one addressable page of a site.
type Page struct {
	Node

	// Path is resolved against the site's placeholders when the page is added
	Path string

	Title    string
	Template *Template

	// Permission is the right required to view the page, if any
	Permission *Permission

	// AuthenticationPage is where access-denied requests are sent. It is
	// normally filled in by deferred resolution.
	AuthenticationPage *Page

	boxes boxSet
	site  *Site
}

// NewPage declares a page. It becomes part of a site through Site.AddPage.
func NewPage(id, path, title string, template *Template) *Page {
	return &Page{Node: Node{ID: id}, Path: path, Title: title, Template: template}
}

// Site returns the owning site.
func (p *Page) Site() *Site {
	return p.site
}

// Add places content at the end of a box and returns it.
func (p *Page) Add(box string, c Content) Content {
	c.Base().parent = PageParent(p)
	p.boxes.add(box, c)
	return c
}

// Remove marks a content id for removal from this page.
func (p *Page) Remove(contentID string) {
	p.boxes.remove(contentID)
}

// Boxes returns the declared box contents in order.
func (p *Page) Boxes() []*BoxContent {
	return p.boxes.boxes
}

// BoxContent returns the content declared on the page itself for a box.
func (p *Page) BoxContent(box string) []Content {
	return p.boxes.box(box)
}

// EffectiveContent returns what renders in a box: the template's content
// followed by the page's own.
func (p *Page) EffectiveContent(box string) []Content {
	var out []Content
	if p.Template != nil {
		out = append(out, p.Template.BoxContent(box)...)
	}
	return append(out, p.boxes.box(box)...)
}

// Removed returns the content ids marked for removal.
func (p *Page) Removed() []string {
	return p.boxes.removed
}

// RequirePermission sets the permission needed to view the page.
func (p *Page) RequirePermission(name, title string) {
	p.Permission = &Permission{Name: name, Title: title}
}

// UseAuthenticationPage queues a deferred reference to the page shown when
// access is denied. The target may be declared later.
func (p *Page) UseAuthenticationPage(id string) error {
	if p.site == nil {
		return invalid("page", p.ID, "authentication page %q referenced before the page was added to a site", id)
	}
	p.site.Defer(Reference{Slot: SlotAuthenticationPage, TargetID: id, Referrer: p})
	return nil
}

// SetPageRef implements PageReferrer.
func (p *Page) SetPageRef(slot Slot, _ int, target *Page) error {
	if slot != SlotAuthenticationPage {
		return invalid("page", p.ID, "cannot take a %s reference", slot)
	}
	p.AuthenticationPage = target
	return nil
}

// IsWildcard reports whether the path is a prefix match.
func (p *Page) IsWildcard() bool {
	return strings.HasSuffix(p.Path, WildcardSuffix)
}

// Prefix returns the path without the wildcard marker.
func (p *Page) Prefix() string {
	return strings.TrimSuffix(p.Path, WildcardSuffix)
}

// Matches reports whether a request path is served by this page.
func (p *Page) Matches(path string) bool {
	if p.IsWildcard() {
		return strings.HasPrefix(path, p.Prefix())
	}
	return path == p.Path
}
