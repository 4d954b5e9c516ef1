// Package deferred resolves the forward references queued on a site while it
// was being constructed.
//
// References are plain descriptors (slot, target id, referrer) rather than
// callbacks, so resolution can be run and tested on its own. Targets are
// looked up among the site's declared pages; pages marked for removal are
// not valid targets.
package deferred

import (
	"fmt"

	"evalgo.org/sitesync/models"
)

// Schedule queues a reference on the site.
func Schedule(site *models.Site, ref models.Reference) {
	site.Defer(ref)
}

// Resolve runs every queued reference in FIFO order and then clears the
// queue. The first reference whose target is missing aborts resolution with
// a *models.ReferenceNotFoundError; the queue is left as it was so the
// failure can be reported again.
//
// Running Resolve on a site whose queue is already empty does nothing, so a
// resolved site keeps its resolution.
func Resolve(site *models.Site) error {
	refs := site.Deferred()
	for i, ref := range refs {
		if ref.Referrer == nil {
			return fmt.Errorf("deferred reference %d to %q has no referrer", i, ref.TargetID)
		}
		target := site.Page(ref.TargetID)
		if target == nil {
			return &models.ReferenceNotFoundError{
				Kind:     "page",
				ID:       ref.TargetID,
				Referrer: ref.Referrer.Identifier(),
			}
		}
		if err := ref.Referrer.SetPageRef(ref.Slot, ref.Index, target); err != nil {
			return fmt.Errorf("resolve %s of %q: %w", ref.Slot, ref.Referrer.Identifier(), err)
		}
	}
	site.ClearDeferred()
	return nil
}

// Pending returns how many references are still queued.
func Pending(site *models.Site) int {
	return len(site.Deferred())
}
