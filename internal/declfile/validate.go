package declfile

import (
	"fmt"

	"evalgo.org/sitesync/internal/validation"
)

// Validate checks a document's field constraints, then the rules that span
// fields: unique ids, layout and template references, and the attributes
// each content kind needs. Page references are left to deferred
// resolution, which reports them with the referrer attached.
func Validate(doc *Document) *validation.ValidationResult {
	result := validation.New().Validate(doc)

	seen := make(map[string]bool)
	for i := range doc.Sites {
		site := &doc.Sites[i]
		field := fmt.Sprintf("sites[%d]", i)
		if seen[site.ID] {
			result.Add(field+".id", "site declared more than once", site.ID)
		}
		seen[site.ID] = true
		validateSite(site, field, result)
	}
	return result
}

type checker struct {
	result  *validation.ValidationResult
	content map[string]string
}

func validateSite(site *SiteDoc, field string, result *validation.ValidationResult) {
	c := &checker{result: result, content: make(map[string]string)}

	layouts := make(map[string]map[string]bool)
	for i, l := range site.Layouts {
		f := fmt.Sprintf("%s.layouts[%d]", field, i)
		if _, dup := layouts[l.ID]; dup {
			result.Add(f+".id", "layout declared more than once", l.ID)
		}
		boxes := make(map[string]bool)
		collectBoxes(l.Boxes, boxes, f, result)
		layouts[l.ID] = boxes
	}

	templates := make(map[string]string)
	for i, t := range site.Templates {
		f := fmt.Sprintf("%s.templates[%d]", field, i)
		if _, dup := templates[t.ID]; dup {
			result.Add(f+".id", "template declared more than once", t.ID)
		}
		templates[t.ID] = t.Layout
		boxes, ok := layouts[t.Layout]
		if !ok && t.Layout != "" {
			result.Add(f+".layout", "references an undeclared layout", t.Layout)
		}
		c.placements(t.Boxes, boxes, f)
	}

	pages := make(map[string]bool)
	for i, p := range site.Pages {
		f := fmt.Sprintf("%s.pages[%d]", field, i)
		if pages[p.ID] {
			result.Add(f+".id", "page declared more than once", p.ID)
		}
		pages[p.ID] = true
		layout, ok := templates[p.Template]
		if !ok && p.Template != "" {
			result.Add(f+".template", "references an undeclared template", p.Template)
		}
		c.placements(p.Boxes, layouts[layout], f)
	}

	for i := range site.Content {
		c.checkContent(&site.Content[i], fmt.Sprintf("%s.content[%d]", field, i))
	}

	hosts := make(map[string]bool)
	for i, h := range site.Hostnames {
		f := fmt.Sprintf("%s.hostnames[%d]", field, i)
		if hosts[h.Address] {
			result.Add(f+".address", "hostname declared more than once", h.Address)
		}
		hosts[h.Address] = true
		if h.WelcomePage != "" && !pages[h.WelcomePage] {
			result.Add(f+".welcome_page", "references an undeclared page", h.WelcomePage)
		}
	}
}

func collectBoxes(boxes []BoxDoc, into map[string]bool, field string, result *validation.ValidationResult) {
	for i, b := range boxes {
		f := fmt.Sprintf("%s.boxes[%d]", field, i)
		if into[b.ID] {
			result.Add(f+".id", "box declared more than once in the layout", b.ID)
		}
		into[b.ID] = true
		collectBoxes(b.Children, into, f, result)
	}
}

// placements checks that every box exists in the layout. A nil layout means
// the layout reference itself was already reported.
func (c *checker) placements(placements []PlacementDoc, layout map[string]bool, field string) {
	for i, p := range placements {
		f := fmt.Sprintf("%s.boxes[%d]", field, i)
		if layout != nil && !layout[p.Box] {
			c.result.Add(f+".box", "box is not part of the layout", p.Box)
		}
		for j := range p.Content {
			c.checkContent(&p.Content[j], fmt.Sprintf("%s.content[%d]", f, j))
		}
	}
}

// checkContent checks one content declaration and its delegates. A content id
// may appear more than once only when every occurrence has the same kind,
// which declares the same shared instance.
func (c *checker) checkContent(d *ContentDoc, field string) {
	if kind, ok := c.content[d.ID]; ok && kind != d.Kind {
		c.result.Add(field+".id", fmt.Sprintf("content id already declared as %s", kind), d.ID)
	}
	c.content[d.ID] = d.Kind

	require := func(ok bool, attr string) {
		if !ok {
			c.result.Add(field+"."+attr, fmt.Sprintf("is required for %s content", d.Kind), nil)
		}
	}
	switch d.Kind {
	case "text":
		require(d.HTML != "", "html")
	case "link":
		require(d.URL != "" || d.Page != "", "url")
	case "scripted":
		require(d.Script != "", "script")
	case "file-server":
		require(d.Directory != "", "directory")
	case "social-login":
		require(len(d.Providers) > 0, "providers")
	case "menu":
		require(len(d.Items) > 0, "items")
	case "composite":
		for i := range d.Delegates {
			c.checkContent(&d.Delegates[i].Content, fmt.Sprintf("%s.delegates[%d].content", field, i))
		}
	}
	if d.Kind != "composite" && len(d.Delegates) > 0 {
		c.result.Add(field+".delegates", "only composite content has delegates", nil)
	}
}
