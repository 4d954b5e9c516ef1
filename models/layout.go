package models

// Content areas a box can default to.
const (
	AreaNone       = "none"
	AreaPrimary    = "primary"
	AreaSecondary  = "secondary"
	AreaNavigation = "navigation"
	AreaHeader     = "header"
	AreaFooter     = "footer"
)

// Layout is a tree of boxes shared by the templates that reference it.
//
// Once a layout exists in the backend its box tree is left alone; boxes
// declared later are not added to the persisted layout.
type Layout struct {
	Node

	// Boxes are the top level boxes, in order
	Boxes []*Box

	site *Site
}

// NewLayout declares a layout with the given top level boxes.
func NewLayout(id string, boxes ...*Box) *Layout {
	return &Layout{Node: Node{ID: id}, Boxes: boxes}
}

// Box is one region of a layout. Enclosing boxes wrap their children; leaf
// boxes hold content.
type Box struct {
	Node

	Enclosing   bool
	ContentArea string
	Class       string
	Children    []*Box
}

// NewBox declares a leaf box in the given content area.
func NewBox(id, area string) *Box {
	return &Box{Node: Node{ID: id}, ContentArea: area}
}

// NewEnclosingBox declares a box that wraps children.
func NewEnclosingBox(id string, children ...*Box) *Box {
	return &Box{Node: Node{ID: id}, Enclosing: true, ContentArea: AreaNone, Children: children}
}

// Site returns the owning site.
func (l *Layout) Site() *Site {
	return l.site
}

// FindBox searches the layout tree depth first.
func (l *Layout) FindBox(id string) *Box {
	return findBox(l.Boxes, id)
}

// Walk visits every box in depth-first pre-order.
func (l *Layout) Walk(fn func(b *Box)) {
	var walk func(boxes []*Box)
	walk = func(boxes []*Box) {
		for _, b := range boxes {
			fn(b)
			walk(b.Children)
		}
	}
	walk(l.Boxes)
}

func findBox(boxes []*Box, id string) *Box {
	for _, b := range boxes {
		if b.ID == id {
			return b
		}
		if found := findBox(b.Children, id); found != nil {
			return found
		}
	}
	return nil
}
