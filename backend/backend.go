// Package backend defines the persistence contract the reconciliation engine
// drives. Records here describe what is stored; the declarative model lives in
// the models package and is correlated with these records only through the
// pair (site name, declared id).
//
// Lookups return (nil, nil) when nothing live exists under the requested key.
// Trashed and superseded records are never returned by Find methods.
package backend

import (
	"context"
	"strings"
	"time"
)

// Kind names a persisted entity type.
type Kind string

const (
	KindSite       Kind = "site"
	KindHostname   Kind = "hostname"
	KindLayout     Kind = "layout"
	KindTemplate   Kind = "template"
	KindPage       Kind = "page"
	KindContent    Kind = "content"
	KindPermission Kind = "permission"
)

// Site is the persisted root of one declared site.
type Site struct {
	Name      string    `json:"name"`
	Locale    string    `json:"locale,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Hostname binds an address to a site and its welcome page.
type Hostname struct {
	Address string `json:"address"`
	Site    string `json:"site"`

	// WelcomePage is the key of the page served for the bare address.
	WelcomePage string `json:"welcomePage,omitempty"`
}

// Box is one node of a persisted layout tree.
type Box struct {
	Name        string `json:"name"`
	Enclosing   bool   `json:"enclosing,omitempty"`
	ContentArea string `json:"contentArea,omitempty"`
	Class       string `json:"class,omitempty"`
	Children    []Box  `json:"children,omitempty"`
}

// Layout is a persisted box tree. Its boxes are fixed at creation.
type Layout struct {
	Key       string    `json:"key"`
	Site      string    `json:"site"`
	Name      string    `json:"name"`
	Boxes     []Box     `json:"boxes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasBox reports whether the layout tree contains a box with the given name.
func (l *Layout) HasBox(name string) bool {
	var walk func(boxes []Box) bool
	walk = func(boxes []Box) bool {
		for _, b := range boxes {
			if b.Name == name || walk(b.Children) {
				return true
			}
		}
		return false
	}
	return walk(l.Boxes)
}

// Template is a persisted page template.
type Template struct {
	Key       string    `json:"key"`
	Site      string    `json:"site"`
	Name      string    `json:"name"`
	Layout    string    `json:"layout"`
	Resources []string  `json:"resources,omitempty"`
	Trashed   bool      `json:"trashed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is a persisted page. Template, Permission and AuthenticationPage hold
// keys of other records.
type Page struct {
	Key                string    `json:"key"`
	Site               string    `json:"site"`
	Name               string    `json:"name"`
	Path               string    `json:"path"`
	Title              string    `json:"title,omitempty"`
	Template           string    `json:"template"`
	Permission         string    `json:"permission,omitempty"`
	AuthenticationPage string    `json:"authenticationPage,omitempty"`
	Trashed            bool      `json:"trashed,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Delegate attaches a child content record to a composite under a purpose tag.
type Delegate struct {
	Content string `json:"content"`
	Purpose string `json:"purpose"`
}

// ContentData is what a content variant produces when it is built. The
// engine stores it on a new record or a new revision.
type ContentData struct {
	Kind       string            `json:"kind"`
	Path       string            `json:"path,omitempty"`
	HTMLID     string            `json:"htmlId,omitempty"`
	HTMLClass  string            `json:"htmlClass,omitempty"`
	Resources  []string          `json:"resources,omitempty"`
	Visibility string            `json:"visibility,omitempty"`
	Config     map[string]string `json:"config,omitempty"`
	Digest     string            `json:"digest,omitempty"`
}

// Content is one revision of a persisted content entity.
type Content struct {
	ContentData

	Key      string `json:"key"`
	Site     string `json:"site"`
	Name     string `json:"name"`
	Revision int    `json:"revision"`

	// Delegates is the ordered child list of a composite.
	Delegates []Delegate `json:"delegates,omitempty"`

	// Links maps a role (landing-page, menu item, link target) to a page key.
	Links map[string]string `json:"links,omitempty"`

	Superseded bool      `json:"superseded,omitempty"`
	Trashed    bool      `json:"trashed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Permission is a programmatically named access right.
type Permission struct {
	Key   string `json:"key"`
	Site  string `json:"site"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Resource is an uploaded file (script, library, stylesheet) content may use.
type Resource struct {
	Key         string `json:"key"`
	Site        string `json:"site"`
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
}

// OwnerKind tells which record type owns a box content list.
type OwnerKind string

const (
	OwnerPage     OwnerKind = "page"
	OwnerTemplate OwnerKind = "template"
)

// Owner identifies the page or template whose box list is addressed.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	Key  string    `json:"key"`
}

// Placement is one box content list, as returned by listings.
type Placement struct {
	Owner   Owner    `json:"owner"`
	Box     string   `json:"box"`
	Content []string `json:"content"`
}

// MatchResourcePath reports whether a stored resource path is addressed by
// a declared one: either exactly or by its trailing path segments, so
// "app.js" matches "scripts/app.js".
func MatchResourcePath(stored, declared string) bool {
	declared = strings.TrimPrefix(declared, "/")
	stored = strings.TrimPrefix(stored, "/")
	return stored == declared || strings.HasSuffix(stored, "/"+declared)
}

// ResourceLookup finds uploaded resources. Content variants use it while
// building; it is the only backend access they get.
type ResourceLookup interface {
	FindResources(ctx context.Context, site, path string) ([]Resource, error)
}

// Backend is the adapter the reconciliation engine calls. All names are
// scoped by site.
type Backend interface {
	ResourceLookup

	FindSite(ctx context.Context, name string) (*Site, error)
	CreateSite(ctx context.Context, site *Site) error
	UpdateSite(ctx context.Context, site *Site) error

	FindHostname(ctx context.Context, address string) (*Hostname, error)
	CreateHostname(ctx context.Context, host *Hostname) error
	UpdateHostname(ctx context.Context, host *Hostname) error

	FindLayout(ctx context.Context, site, name string) (*Layout, error)
	CreateLayout(ctx context.Context, layout *Layout) error

	FindTemplate(ctx context.Context, site, name string) (*Template, error)
	CreateTemplate(ctx context.Context, tmpl *Template) error
	UpdateTemplate(ctx context.Context, tmpl *Template) error

	FindPage(ctx context.Context, site, name string) (*Page, error)
	CreatePage(ctx context.Context, page *Page) error
	UpdatePage(ctx context.Context, page *Page) error

	FindContent(ctx context.Context, site, name string) (*Content, error)
	CreateContent(ctx context.Context, content *Content) error
	UpdateContent(ctx context.Context, content *Content) error

	// CreateContentRevision stores data as the next revision of existing,
	// carries delegates and links over, marks existing superseded and points
	// every box list and delegate list that referenced existing at the
	// revision.
	CreateContentRevision(ctx context.Context, existing *Content, data ContentData) (*Content, error)

	FindPermission(ctx context.Context, site, name string) (*Permission, error)
	CreatePermission(ctx context.Context, perm *Permission) error

	// BoxContent returns the ordered content keys placed in a box.
	BoxContent(ctx context.Context, owner Owner, box string) ([]string, error)
	SetBoxContent(ctx context.Context, owner Owner, box string, keys []string) error

	// Trash soft-deletes a page, template or content record. Trashed content
	// is detached from box and delegate lists. Trashing a hostname, keyed by
	// address, deletes it so the address can be claimed again.
	Trash(ctx context.Context, kind Kind, key string) error
}

// Store hands out a Backend bound to one unit of work. If fn returns an
// error nothing it did is kept.
type Store interface {
	WithinUnit(ctx context.Context, fn func(b Backend) error) error
}

// Lister enumerates live records for audits and the admin API.
type Lister interface {
	ListSites(ctx context.Context) ([]*Site, error)
	ListPages(ctx context.Context, site string) ([]*Page, error)
	ListTemplates(ctx context.Context, site string) ([]*Template, error)
	ListContent(ctx context.Context, site string) ([]*Content, error)
	ListPlacements(ctx context.Context, site string) ([]Placement, error)
	ListHostnames(ctx context.Context, site string) ([]*Hostname, error)
}
