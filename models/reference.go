package models

// Slot names the field a deferred reference fills in on its referrer.
type Slot int

const (
	SlotAuthenticationPage Slot = iota
	SlotLandingPage
	SlotMenuItem
	SlotLinkTarget
)

func (s Slot) String() string {
	switch s {
	case SlotAuthenticationPage:
		return "authentication-page"
	case SlotLandingPage:
		return "landing-page"
	case SlotMenuItem:
		return "menu-item"
	case SlotLinkTarget:
		return "link-target"
	}
	return "unknown"
}

// Reference is a deferred link from a declared entity to a page that may be
// declared later. References are queued on the site during construction and
// resolved, in order, once the whole site exists.
type Reference struct {
	Slot     Slot
	TargetID string
	Referrer PageReferrer

	// Index selects the entry for slots that address a list (menu items)
	Index int
}

// PageReferrer is implemented by entities that accept resolved page
// references.
type PageReferrer interface {
	Identifiable
	SetPageRef(slot Slot, index int, target *Page) error
}
