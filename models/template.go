package models

// Template binds a layout to resources and content common to every page
// using it.
type Template struct {
	Node

	Layout *Layout

	// Resources are CSS/JS resource paths, in declaration order
	Resources []string

	boxes boxSet
	site  *Site
}

// NewTemplate declares a template on a layout.
func NewTemplate(id string, layout *Layout, resources ...string) *Template {
	return &Template{Node: Node{ID: id}, Layout: layout, Resources: resources}
}

// Site returns the owning site.
func (t *Template) Site() *Site {
	return t.site
}

// Add places content at the end of a box and returns it.
func (t *Template) Add(box string, c Content) Content {
	c.Base().parent = TemplateParent(t)
	t.boxes.add(box, c)
	return c
}

// Remove marks a content id for removal from this template.
func (t *Template) Remove(contentID string) {
	t.boxes.remove(contentID)
}

// Boxes returns the declared box contents in order.
func (t *Template) Boxes() []*BoxContent {
	return t.boxes.boxes
}

// BoxContent returns the content declared for one box.
func (t *Template) BoxContent(box string) []Content {
	return t.boxes.box(box)
}

// Removed returns the content ids marked for removal.
func (t *Template) Removed() []string {
	return t.boxes.removed
}
