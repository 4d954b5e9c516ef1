package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"evalgo.org/sitesync/models"
)

// Registry holds the sites constructed for one apply run. It is created by
// the caller, filled while declarations are loaded and dropped afterwards.
type Registry struct {
	sites []*models.Site
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a site. Site ids are unique within a registry.
func (r *Registry) Register(site *models.Site) error {
	if r.Site(site.ID) != nil {
		return &models.InvalidDeclarationError{Kind: "site", ID: site.ID, Reason: "declared more than once"}
	}
	r.sites = append(r.sites, site)
	return nil
}

// Site returns the registered site with the given id, or nil.
func (r *Registry) Site(id string) *models.Site {
	for _, s := range r.sites {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Sites returns the registered sites in registration order.
func (r *Registry) Sites() []*models.Site {
	return r.sites
}

// Len returns the number of registered sites.
func (r *Registry) Len() int {
	return len(r.sites)
}

// ApplyOptions controls a multi-site apply.
type ApplyOptions struct {
	// Sites limits the apply to these site ids; empty means all
	Sites []string

	// StopOnError skips the remaining sites after the first failure
	StopOnError bool
}

// Result is the outcome of one site.
type Result struct {
	Site string `json:"site"`
	Run  *Run   `json:"run"`
	Err  error  `json:"-"`
}

// ApplyAll applies every registered site as an independent unit of work.
// A failing site does not undo sites applied before it. The returned error
// joins every site failure.
func (e *Engine) ApplyAll(ctx context.Context, reg *Registry, opts ApplyOptions) ([]Result, error) {
	for _, id := range opts.Sites {
		if reg.Site(id) == nil {
			return nil, &models.ReferenceNotFoundError{Kind: "site", ID: id}
		}
	}

	var results []Result
	var errs []error
	for _, site := range reg.Sites() {
		if len(opts.Sites) > 0 && !slices.Contains(opts.Sites, site.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("apply site %q: %w", site.ID, err))
			break
		}
		run, err := e.Apply(ctx, site)
		results = append(results, Result{Site: site.ID, Run: run, Err: err})
		if err != nil {
			errs = append(errs, err)
			if opts.StopOnError {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}
