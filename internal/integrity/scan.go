package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"evalgo.org/sitesync/backend"
)

// siteSnapshot holds the live records of one site, indexed by key.
type siteSnapshot struct {
	pages      []*backend.Page
	templates  []*backend.Template
	content    []*backend.Content
	placements []backend.Placement
	hostnames  []*backend.Hostname

	pageKeys     map[string]*backend.Page
	templateKeys map[string]*backend.Template
	contentKeys  map[string]*backend.Content
}

func (s *Service) snapshot(ctx context.Context, site string) (*siteSnapshot, error) {
	snap := &siteSnapshot{
		pageKeys:     make(map[string]*backend.Page),
		templateKeys: make(map[string]*backend.Template),
		contentKeys:  make(map[string]*backend.Content),
	}
	var err error
	if snap.pages, err = s.lister.ListPages(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to list pages of %s: %w", site, err)
	}
	if snap.templates, err = s.lister.ListTemplates(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to list templates of %s: %w", site, err)
	}
	if snap.content, err = s.lister.ListContent(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to list content of %s: %w", site, err)
	}
	if snap.placements, err = s.lister.ListPlacements(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to list placements of %s: %w", site, err)
	}
	if snap.hostnames, err = s.lister.ListHostnames(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to list hostnames of %s: %w", site, err)
	}

	for _, p := range snap.pages {
		snap.pageKeys[p.Key] = p
	}
	for _, t := range snap.templates {
		snap.templateKeys[t.Key] = t
	}
	for _, c := range snap.content {
		snap.contentKeys[c.Key] = c
	}
	return snap, nil
}

func (snap *siteSnapshot) records() int {
	return len(snap.pages) + len(snap.templates) + len(snap.content) + len(snap.hostnames)
}

type named struct {
	key     string
	name    string
	updated time.Time
}

// duplicates finds names held by more than one live record of a kind. The
// engine looks records up by name, so only one of them is ever reconciled;
// the most recently written one is kept.
func (snap *siteSnapshot) duplicates() []Issue {
	var issues []Issue

	pages := make([]named, len(snap.pages))
	for i, p := range snap.pages {
		pages[i] = named{p.Key, p.Name, p.UpdatedAt}
	}
	issues = append(issues, duplicatesOf(backend.KindPage, SeverityHigh, pages)...)

	templates := make([]named, len(snap.templates))
	for i, t := range snap.templates {
		templates[i] = named{t.Key, t.Name, t.UpdatedAt}
	}
	issues = append(issues, duplicatesOf(backend.KindTemplate, SeverityHigh, templates)...)

	content := make([]named, len(snap.content))
	for i, c := range snap.content {
		content[i] = named{c.Key, c.Name, c.CreatedAt}
	}
	issues = append(issues, duplicatesOf(backend.KindContent, SeverityMedium, content)...)

	return issues
}

func duplicatesOf(kind backend.Kind, severity Severity, records []named) []Issue {
	groups := make(map[string][]named)
	var order []string
	for _, r := range records {
		if _, ok := groups[r.name]; !ok {
			order = append(order, r.name)
		}
		groups[r.name] = append(groups[r.name], r)
	}

	var issues []Issue
	for _, name := range order {
		group := groups[name]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].updated.After(group[j].updated) })
		keys := make([]string, len(group))
		for i, r := range group {
			keys[i] = r.key
		}
		issues = append(issues, Issue{
			Type:        IssueTypeDuplicate,
			Severity:    severity,
			Kind:        kind,
			Key:         keys[0],
			Name:        name,
			Keys:        keys,
			Description: fmt.Sprintf("%d live %s records named %q", len(group), kind, name),
			Details:     map[string]interface{}{"count": len(group)},
		})
	}
	return issues
}

// danglingReferences finds keys stored on live records that name no live
// record of the expected kind.
func (snap *siteSnapshot) danglingReferences() []Issue {
	var issues []Issue
	dangling := func(severity Severity, kind backend.Kind, key, name, field, target string) {
		issues = append(issues, Issue{
			Type:        IssueTypeDanglingReference,
			Severity:    severity,
			Kind:        kind,
			Key:         key,
			Name:        name,
			Keys:        []string{target},
			Description: fmt.Sprintf("%s %q: %s refers to missing record %s", kind, name, field, target),
			Details:     map[string]interface{}{"field": field, "target": target},
		})
	}

	for _, p := range snap.pages {
		if _, ok := snap.templateKeys[p.Template]; !ok {
			dangling(SeverityHigh, backend.KindPage, p.Key, p.Name, "template", p.Template)
		}
		if p.AuthenticationPage != "" {
			if _, ok := snap.pageKeys[p.AuthenticationPage]; !ok {
				dangling(SeverityMedium, backend.KindPage, p.Key, p.Name, "authentication page", p.AuthenticationPage)
			}
		}
	}

	for _, h := range snap.hostnames {
		if h.WelcomePage == "" {
			continue
		}
		if _, ok := snap.pageKeys[h.WelcomePage]; !ok {
			dangling(SeverityMedium, backend.KindHostname, "", h.Address, "welcome page", h.WelcomePage)
		}
	}

	for _, c := range snap.content {
		roles := make([]string, 0, len(c.Links))
		for role := range c.Links {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			if _, ok := snap.pageKeys[c.Links[role]]; !ok {
				dangling(SeverityMedium, backend.KindContent, c.Key, c.Name, role, c.Links[role])
			}
		}
		for _, d := range c.Delegates {
			if _, ok := snap.contentKeys[d.Content]; !ok {
				dangling(SeverityMedium, backend.KindContent, c.Key, c.Name, "delegate "+d.Purpose, d.Content)
			}
		}
	}

	for _, pl := range snap.placements {
		kind, name, ok := snap.owner(pl.Owner)
		if !ok {
			continue
		}
		for _, key := range pl.Content {
			if _, ok := snap.contentKeys[key]; !ok {
				dangling(SeverityMedium, kind, pl.Owner.Key, name, "box "+pl.Box, key)
			}
		}
	}
	return issues
}

// owner resolves a placement owner to a live page or template.
func (snap *siteSnapshot) owner(o backend.Owner) (backend.Kind, string, bool) {
	switch o.Kind {
	case backend.OwnerPage:
		if p, ok := snap.pageKeys[o.Key]; ok {
			return backend.KindPage, p.Name, true
		}
	case backend.OwnerTemplate:
		if t, ok := snap.templateKeys[o.Key]; ok {
			return backend.KindTemplate, t.Name, true
		}
	}
	return "", "", false
}

// orphans finds live content that no live box places, no composite
// delegates to and that has no path of its own to be mounted under.
func (snap *siteSnapshot) orphans() []Issue {
	used := make(map[string]bool)
	for _, pl := range snap.placements {
		if _, _, ok := snap.owner(pl.Owner); !ok {
			continue
		}
		for _, key := range pl.Content {
			used[key] = true
		}
	}
	for _, c := range snap.content {
		for _, d := range c.Delegates {
			used[d.Content] = true
		}
	}

	var issues []Issue
	for _, c := range snap.content {
		if used[c.Key] || c.Path != "" {
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueTypeOrphaned,
			Severity:    SeverityLow,
			Kind:        backend.KindContent,
			Key:         c.Key,
			Name:        c.Name,
			Keys:        []string{c.Key},
			Description: fmt.Sprintf("content %q is not placed, delegated or mounted", c.Name),
			Details:     map[string]interface{}{"content_kind": c.Kind, "revision": c.Revision},
		})
	}
	return issues
}
