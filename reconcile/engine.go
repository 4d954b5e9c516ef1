// Package reconcile applies declared sites to a backend store.
//
// Each site is applied in its own unit of work and walks an explicit state
// machine:
//
//	pending -> removing -> creating-skeletons -> populating-content
//	        -> linking-cross-references -> done
//
// with failed reachable from every phase. Skeletons for every layout,
// template and page exist before any content is placed, so content may link
// to any page regardless of declaration order.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/deferred"
	"evalgo.org/sitesync/models"
)

// errMissing reports a record that disappeared inside the unit of work.
var errMissing = errors.New("record vanished during the unit of work")

// Engine reconciles sites against a store.
type Engine struct {
	store  backend.Store
	logger zerolog.Logger
	now    func() time.Time
	dryRun bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDryRun runs every unit of work and rolls it back afterwards. Runs
// report what would have changed and are marked DryRun.
func WithDryRun() EngineOption {
	return func(e *Engine) {
		e.store = backend.DryRun(e.store)
		e.dryRun = true
	}
}

// NewEngine creates an engine on store.
func NewEngine(store backend.Store, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply validates the site, resolves its deferred references and converges
// the store onto it. Validation and resolution failures happen before any
// backend call. Any failure rolls the site's unit of work back.
//
// The returned run is never nil and describes how far the apply got.
func (e *Engine) Apply(ctx context.Context, site *models.Site) (*Run, error) {
	run := newRun(site.ID, e.now())
	run.DryRun = e.dryRun
	logger := e.logger.With().Str("site", site.ID).Str("run", run.ID).Logger()
	ctx = logger.WithContext(ctx)

	if err := site.Validate(); err != nil {
		return e.failRun(ctx, run, err)
	}
	if err := deferred.Resolve(site); err != nil {
		return e.failRun(ctx, run, err)
	}

	run.addEvent(EventInfo, "site", site.ID, "Starting reconciliation")
	err := e.store.WithinUnit(ctx, func(b backend.Backend) error {
		s := newSession(b, site, run, logger)
		return s.execute(ctx)
	})
	if err != nil {
		return e.failRun(ctx, run, err)
	}

	run.complete(e.now())
	run.addEvent(EventInfo, "site", site.ID, "Reconciliation completed")
	logger.Info().
		Int("created", run.Stats.Created).
		Int("updated", run.Stats.Updated).
		Int("revised", run.Stats.Revised).
		Int("trashed", run.Stats.Trashed).
		Msg("Site reconciled")
	return run, nil
}

func (e *Engine) failRun(ctx context.Context, run *Run, err error) (*Run, error) {
	run.fail(e.now(), err)
	zerolog.Ctx(ctx).Error().Err(err).Str("phase", string(run.FailedIn)).Msg("Reconciliation failed")
	return run, fmt.Errorf("apply site %q: %w", run.Site, err)
}

// session is one site's reconciliation inside one unit of work. It tracks
// the backend identity of everything it has already handled so each entity
// is found or created once.
type session struct {
	b    backend.Backend
	site *models.Site
	run  *Run
	log  zerolog.Logger

	layouts   map[string]*backend.Layout
	templates map[string]*backend.Template
	pages     map[string]*backend.Page
	content   map[string]*backend.Content

	// removed holds content ids trashed in this run; they are never synced
	removed map[string]bool
}

func newSession(b backend.Backend, site *models.Site, run *Run, logger zerolog.Logger) *session {
	return &session{
		b:         b,
		site:      site,
		run:       run,
		log:       logger,
		layouts:   make(map[string]*backend.Layout),
		templates: make(map[string]*backend.Template),
		pages:     make(map[string]*backend.Page),
		content:   make(map[string]*backend.Content),
		removed:   make(map[string]bool),
	}
}

func (s *session) execute(ctx context.Context) error {
	if err := s.ensureSite(ctx); err != nil {
		return err
	}
	steps := []struct {
		phase Phase
		fn    func(context.Context) error
	}{
		{PhaseRemoving, s.removeEntities},
		{PhaseCreatingSkeletons, s.createSkeletons},
		{PhasePopulatingContent, s.populateContent},
		{PhaseLinking, s.linkReferences},
	}
	for _, step := range steps {
		if err := s.run.enter(step.phase); err != nil {
			return err
		}
		s.log.Debug().Str("phase", string(step.phase)).Msg("Entering phase")
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.phase, err)
		}
	}
	return s.run.enter(PhaseDone)
}

// backendErr wraps an adapter failure with the operation and declared id.
func backendErr(op, id string, err error) error {
	return &models.BackendError{Op: op, ID: id, Err: err}
}

func (s *session) created(entity, id string) {
	s.run.Stats.Created++
	s.run.addEvent(EventInfo, entity, id, "created")
	s.log.Debug().Str("phase", string(s.run.Phase)).Str("entity", entity).Str("id", id).Msg("Created")
}

func (s *session) updated(entity, id, what string) {
	s.run.Stats.Updated++
	s.run.addEvent(EventInfo, entity, id, "updated "+what)
	s.log.Debug().Str("phase", string(s.run.Phase)).Str("entity", entity).Str("id", id).Str("field", what).Msg("Updated")
}

func (s *session) warn(entity, id, message string) {
	s.run.addEvent(EventWarning, entity, id, message)
	s.log.Warn().Str("phase", string(s.run.Phase)).Str("entity", entity).Str("id", id).Msg(message)
}

// ensureSite finds or creates the site record and claims its hostnames.
// Hostname welcome pages are written during linking.
func (s *session) ensureSite(ctx context.Context) error {
	rec, err := s.b.FindSite(ctx, s.site.ID)
	if err != nil {
		return backendErr("find site", s.site.ID, err)
	}
	if rec == nil {
		rec = &backend.Site{Name: s.site.ID, Locale: s.site.Locale, Timezone: s.site.Timezone}
		if err := s.b.CreateSite(ctx, rec); err != nil {
			return backendErr("create site", s.site.ID, err)
		}
		s.created("site", s.site.ID)
	} else {
		s.run.Stats.Found++
		if rec.Locale != s.site.Locale || rec.Timezone != s.site.Timezone {
			rec.Locale, rec.Timezone = s.site.Locale, s.site.Timezone
			if err := s.b.UpdateSite(ctx, rec); err != nil {
				return backendErr("update site", s.site.ID, err)
			}
			s.updated("site", s.site.ID, "locale")
		}
	}

	for _, h := range s.site.Hostnames {
		host, err := s.b.FindHostname(ctx, h.Address)
		if err != nil {
			return backendErr("find hostname", h.Address, err)
		}
		if host != nil {
			if host.Site != s.site.ID {
				return &models.ModificationConflictError{Kind: "hostname", ID: h.Address, Site: s.site.ID, Owner: host.Site}
			}
			s.run.Stats.Found++
			continue
		}
		if err := s.b.CreateHostname(ctx, &backend.Hostname{Address: h.Address, Site: s.site.ID}); err != nil {
			return backendErr("create hostname", h.Address, err)
		}
		s.created("hostname", h.Address)
	}
	return nil
}

// removeEntities trashes every removed content and page that exists.
// Removing something that was never created is a no-op.
func (s *session) removeEntities(ctx context.Context) error {
	for _, id := range s.site.RemovalContent() {
		s.removed[id] = true
		rec, err := s.b.FindContent(ctx, s.site.ID, id)
		if err != nil {
			return backendErr("find content", id, err)
		}
		if rec == nil {
			s.run.Stats.Skipped++
			continue
		}
		if err := s.b.Trash(ctx, backend.KindContent, rec.Key); err != nil {
			return backendErr("trash content", id, err)
		}
		s.run.Stats.Trashed++
		s.run.addEvent(EventInfo, "content", id, "trashed")
	}

	for _, id := range s.site.RemovedPages {
		rec, err := s.b.FindPage(ctx, s.site.ID, id)
		if err != nil {
			return backendErr("find page", id, err)
		}
		if rec == nil {
			s.run.Stats.Skipped++
			continue
		}
		if err := s.b.Trash(ctx, backend.KindPage, rec.Key); err != nil {
			return backendErr("trash page", id, err)
		}
		s.run.Stats.Trashed++
		s.run.addEvent(EventInfo, "page", id, "trashed")
	}

	// A hostname is only released by the site that owns it.
	for _, addr := range s.site.RemovedHostnames {
		host, err := s.b.FindHostname(ctx, addr)
		if err != nil {
			return backendErr("find hostname", addr, err)
		}
		if host == nil || host.Site != s.site.ID {
			s.run.Stats.Skipped++
			continue
		}
		if err := s.b.Trash(ctx, backend.KindHostname, addr); err != nil {
			return backendErr("release hostname", addr, err)
		}
		s.run.Stats.Trashed++
		s.run.addEvent(EventInfo, "hostname", addr, "released")
	}
	return nil
}

// createSkeletons gives every declared layout, template and page a backend
// identity.
func (s *session) createSkeletons(ctx context.Context) error {
	for _, l := range s.site.Layouts {
		if _, err := s.ensureLayout(ctx, l); err != nil {
			return err
		}
	}
	for _, t := range s.site.Templates {
		if _, err := s.ensureTemplate(ctx, t); err != nil {
			return err
		}
	}
	for _, p := range s.site.Pages {
		if _, err := s.ensurePage(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) ensureLayout(ctx context.Context, l *models.Layout) (*backend.Layout, error) {
	if rec, ok := s.layouts[l.ID]; ok {
		return rec, nil
	}
	rec, err := s.b.FindLayout(ctx, s.site.ID, l.ID)
	if err != nil {
		return nil, backendErr("find layout", l.ID, err)
	}
	if rec == nil {
		rec = &backend.Layout{Site: s.site.ID, Name: l.ID, Boxes: toBackendBoxes(l.Boxes)}
		if err := s.b.CreateLayout(ctx, rec); err != nil {
			return nil, backendErr("create layout", l.ID, err)
		}
		s.created("layout", l.ID)
	} else {
		s.run.Stats.Found++
		l.Walk(func(b *models.Box) {
			if !rec.HasBox(b.ID) {
				s.warn("layout", l.ID, fmt.Sprintf("box %q is not part of the persisted layout", b.ID))
			}
		})
	}
	s.layouts[l.ID] = rec
	return rec, nil
}

func toBackendBoxes(boxes []*models.Box) []backend.Box {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]backend.Box, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, backend.Box{
			Name:        b.ID,
			Enclosing:   b.Enclosing,
			ContentArea: b.ContentArea,
			Class:       b.Class,
			Children:    toBackendBoxes(b.Children),
		})
	}
	return out
}

func (s *session) ensureTemplate(ctx context.Context, t *models.Template) (*backend.Template, error) {
	if rec, ok := s.templates[t.ID]; ok {
		return rec, nil
	}
	layout, err := s.ensureLayout(ctx, t.Layout)
	if err != nil {
		return nil, err
	}
	rec, err := s.b.FindTemplate(ctx, s.site.ID, t.ID)
	if err != nil {
		return nil, backendErr("find template", t.ID, err)
	}
	if rec == nil {
		rec = &backend.Template{Site: s.site.ID, Name: t.ID, Layout: layout.Key, Resources: t.Resources}
		if err := s.b.CreateTemplate(ctx, rec); err != nil {
			return nil, backendErr("create template", t.ID, err)
		}
		s.created("template", t.ID)
	} else {
		s.run.Stats.Found++
	}
	s.templates[t.ID] = rec
	return rec, nil
}

func (s *session) ensurePage(ctx context.Context, p *models.Page) (*backend.Page, error) {
	if rec, ok := s.pages[p.ID]; ok {
		return rec, nil
	}
	tmpl, err := s.ensureTemplate(ctx, p.Template)
	if err != nil {
		return nil, err
	}
	rec, err := s.b.FindPage(ctx, s.site.ID, p.ID)
	if err != nil {
		return nil, backendErr("find page", p.ID, err)
	}
	if rec == nil {
		rec = &backend.Page{Site: s.site.ID, Name: p.ID, Path: p.Path, Title: p.Title, Template: tmpl.Key}
		if err := s.b.CreatePage(ctx, rec); err != nil {
			return nil, backendErr("create page", p.ID, err)
		}
		s.created("page", p.ID)
	} else {
		s.run.Stats.Found++
	}
	s.pages[p.ID] = rec
	return rec, nil
}
