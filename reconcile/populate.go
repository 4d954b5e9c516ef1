package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/models"
)

// populateContent brings page and template attributes up to date and
// synchronizes every box. Templates go first so their content is in place
// before the pages that compose on top of it.
func (s *session) populateContent(ctx context.Context) error {
	for _, t := range s.site.Templates {
		if err := s.updateTemplate(ctx, t); err != nil {
			return err
		}
		owner := backend.Owner{Kind: backend.OwnerTemplate, Key: s.templates[t.ID].Key}
		for _, bc := range t.Boxes() {
			if err := s.syncBox(ctx, owner, t.Layout, bc); err != nil {
				return err
			}
		}
	}

	for _, p := range s.site.Pages {
		if err := s.updatePage(ctx, p); err != nil {
			return err
		}
		owner := backend.Owner{Kind: backend.OwnerPage, Key: s.pages[p.ID].Key}
		for _, bc := range p.Boxes() {
			if err := s.syncBox(ctx, owner, p.Template.Layout, bc); err != nil {
				return err
			}
		}
	}

	for _, c := range s.site.Content {
		if _, err := s.syncContent(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) updateTemplate(ctx context.Context, t *models.Template) error {
	rec := s.templates[t.ID]
	layout := s.layouts[t.Layout.ID]

	var changed []string
	if rec.Layout != layout.Key {
		rec.Layout = layout.Key
		changed = append(changed, "layout")
	}
	if !slices.Equal(rec.Resources, t.Resources) {
		rec.Resources = t.Resources
		changed = append(changed, "resources")
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.b.UpdateTemplate(ctx, rec); err != nil {
		return backendErr("update template", t.ID, err)
	}
	s.updated("template", t.ID, fmt.Sprint(changed))
	return nil
}

func (s *session) updatePage(ctx context.Context, p *models.Page) error {
	rec := s.pages[p.ID]
	tmpl := s.templates[p.Template.ID]

	var changed []string
	if rec.Path != p.Path {
		rec.Path = p.Path
		changed = append(changed, "path")
	}
	if rec.Title != p.Title {
		rec.Title = p.Title
		changed = append(changed, "title")
	}
	if rec.Template != tmpl.Key {
		rec.Template = tmpl.Key
		changed = append(changed, "template")
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.b.UpdatePage(ctx, rec); err != nil {
		return backendErr("update page", p.ID, err)
	}
	s.updated("page", p.ID, fmt.Sprint(changed))
	return nil
}

// syncBox synchronizes the content declared for one box and puts the
// backend list in declared order. Boxes are resolved through the layout of
// the owning template; a box the persisted layout does not have is skipped.
func (s *session) syncBox(ctx context.Context, owner backend.Owner, layout *models.Layout, bc *models.BoxContent) error {
	persisted := s.layouts[layout.ID]
	if !persisted.HasBox(bc.Box) {
		s.warn("box", bc.Box, fmt.Sprintf("layout %q has no persisted box %q, content not placed", layout.ID, bc.Box))
		return nil
	}

	var declared []string
	for _, c := range bc.Content {
		rec, err := s.syncContent(ctx, c)
		if err != nil {
			return err
		}
		if rec != nil && !slices.Contains(declared, rec.Key) {
			declared = append(declared, rec.Key)
		}
	}

	current, err := s.b.BoxContent(ctx, owner, bc.Box)
	if err != nil {
		return backendErr("find box content", bc.Box, err)
	}
	ordered := orderKeys(current, declared)
	if slices.Equal(current, ordered) {
		return nil
	}
	if err := s.b.SetBoxContent(ctx, owner, bc.Box, ordered); err != nil {
		return backendErr("update box content", bc.Box, err)
	}
	s.updated("box", bc.Box, "content")
	return nil
}

// orderKeys merges the declared keys into the current list and sorts it
// stably by declared index. Entries that were not declared keep their
// relative order after all declared ones.
func orderKeys(current, declared []string) []string {
	rank := make(map[string]int, len(declared))
	for i, k := range declared {
		rank[k] = i
	}
	out := make([]string, 0, len(current)+len(declared))
	seen := make(map[string]bool, len(current))
	for _, k := range current {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range declared {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	undeclared := len(declared)
	sort.SliceStable(out, func(i, j int) bool {
		ri, ok := rank[out[i]]
		if !ok {
			ri = undeclared
		}
		rj, ok := rank[out[j]]
		if !ok {
			rj = undeclared
		}
		return ri < rj
	})
	return out
}

// syncContent finds or creates the record for c, revises it when the
// variant reports a modification and recurses into delegates. Content that
// was removed in this run is skipped and yields a nil record.
func (s *session) syncContent(ctx context.Context, c models.Content) (*backend.Content, error) {
	id := c.Identifier()
	if rec, ok := s.content[id]; ok {
		return rec, nil
	}
	if s.removed[id] {
		s.warn("content", id, "declared and removed in the same site, not placed")
		return nil, nil
	}

	rec, err := s.b.FindContent(ctx, s.site.ID, id)
	if err != nil {
		return nil, backendErr("find content", id, err)
	}
	if rec == nil {
		data, err := c.Build(ctx, s.b, nil)
		if err != nil {
			return nil, fmt.Errorf("build content %q: %w", id, err)
		}
		rec = &backend.Content{ContentData: data, Site: s.site.ID, Name: id}
		if err := s.b.CreateContent(ctx, rec); err != nil {
			return nil, backendErr("create content", id, err)
		}
		s.created("content", id)
	} else {
		s.run.Stats.Found++
		modified, err := c.IsModified(ctx, s.b, rec)
		if err != nil {
			return nil, fmt.Errorf("compare content %q: %w", id, err)
		}
		if modified {
			data, err := c.Build(ctx, s.b, rec)
			if err != nil {
				return nil, fmt.Errorf("build content %q: %w", id, err)
			}
			rec, err = s.b.CreateContentRevision(ctx, rec, data)
			if err != nil {
				return nil, backendErr("create content revision", id, err)
			}
			s.run.Stats.Revised++
			s.run.addEvent(EventInfo, "content", id, fmt.Sprintf("revised to revision %d", rec.Revision))
		}
	}
	s.content[id] = rec

	if d, ok := c.(models.Delegating); ok {
		if err := s.syncDelegates(ctx, d, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// syncDelegates synchronizes a composite's children and stores them as
// (child, purpose) pairs in declared order.
func (s *session) syncDelegates(ctx context.Context, d models.Delegating, rec *backend.Content) error {
	var delegates []backend.Delegate
	for _, child := range d.Delegates() {
		crec, err := s.syncContent(ctx, child.Content)
		if err != nil {
			return err
		}
		if crec == nil {
			continue
		}
		delegates = append(delegates, backend.Delegate{Content: crec.Key, Purpose: child.Purpose})
	}
	if slices.Equal(rec.Delegates, delegates) {
		return nil
	}

	// a child revision may have rewritten the stored delegate list
	fresh, err := s.b.FindContent(ctx, s.site.ID, d.Identifier())
	if err != nil {
		return backendErr("find content", d.Identifier(), err)
	}
	if fresh == nil {
		return backendErr("find content", d.Identifier(), errMissing)
	}
	if slices.Equal(fresh.Delegates, delegates) {
		s.content[d.Identifier()] = fresh
		return nil
	}
	fresh.Delegates = delegates
	if err := s.b.UpdateContent(ctx, fresh); err != nil {
		return backendErr("update content", d.Identifier(), err)
	}
	s.content[d.Identifier()] = fresh
	s.updated("content", d.Identifier(), "delegates")
	return nil
}
