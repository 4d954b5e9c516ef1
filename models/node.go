// Package models holds the declarative site model: the tree an application
// declares (sites, pages, templates, layouts, content) before it is applied
// to a backend store by the reconciliation engine.
//
// Every declared entity carries a stable identifier. That identifier, scoped
// by the owning site, is the only key used to correlate a declared entity
// with its persisted counterpart.
package models

// Identifiable is implemented by every declared entity.
type Identifiable interface {
	Identifier() string
}

// Node is the identity embedded by every declared entity.
type Node struct {
	ID string `json:"id"`
}

// Identifier returns the declared id.
func (n Node) Identifier() string {
	return n.ID
}

// SameID reports whether two identifiables denote the same entity.
func SameID(a, b Identifiable) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Identifier() == b.Identifier()
}

// ParentKind discriminates the variants of ParentRef.
type ParentKind int

const (
	ParentNone ParentKind = iota
	ParentSite
	ParentPage
	ParentTemplate
	ParentContent
)

func (k ParentKind) String() string {
	switch k {
	case ParentSite:
		return "site"
	case ParentPage:
		return "page"
	case ParentTemplate:
		return "template"
	case ParentContent:
		return "content"
	}
	return "none"
}

// ParentRef is the structural parent of a piece of content. It is a
// non-owning back reference used to walk up to the owning page or site;
// children are only ever destroyed through explicit removal lists.
type ParentRef struct {
	kind     ParentKind
	site     *Site
	page     *Page
	template *Template
	content  Content
}

func SiteParent(s *Site) ParentRef         { return ParentRef{kind: ParentSite, site: s} }
func PageParent(p *Page) ParentRef         { return ParentRef{kind: ParentPage, page: p} }
func TemplateParent(t *Template) ParentRef { return ParentRef{kind: ParentTemplate, template: t} }
func ContentParent(c Content) ParentRef    { return ParentRef{kind: ParentContent, content: c} }

// Kind returns which variant is set.
func (r ParentRef) Kind() ParentKind {
	return r.kind
}

// Site walks upward to the owning site. It returns nil while the chain is
// not yet attached to a site.
func (r ParentRef) Site() *Site {
	switch r.kind {
	case ParentSite:
		return r.site
	case ParentPage:
		return r.page.site
	case ParentTemplate:
		return r.template.site
	case ParentContent:
		return r.content.Base().parent.Site()
	}
	return nil
}

// Page walks upward to the nearest page, or nil when the content hangs off a
// template or the site itself.
func (r ParentRef) Page() *Page {
	switch r.kind {
	case ParentPage:
		return r.page
	case ParentContent:
		return r.content.Base().parent.Page()
	}
	return nil
}

// Template returns the template when the parent is one.
func (r ParentRef) Template() *Template {
	if r.kind == ParentTemplate {
		return r.template
	}
	return nil
}

// Content returns the delegating content when the parent is one.
func (r ParentRef) Content() Content {
	if r.kind == ParentContent {
		return r.content
	}
	return nil
}
