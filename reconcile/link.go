package reconcile

import (
	"context"
	"maps"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/models"
)

// linkReferences writes the references that need a backend identity on both
// ends: permissions, authentication pages, welcome pages and page links
// carried by content. Every page has a key by now.
func (s *session) linkReferences(ctx context.Context) error {
	permissions := make(map[string]*backend.Permission)
	for _, p := range s.site.Pages {
		rec := s.pages[p.ID]

		var permKey string
		if p.Permission != nil {
			perm, err := s.ensurePermission(ctx, permissions, p.Permission)
			if err != nil {
				return err
			}
			permKey = perm.Key
		}

		var authKey string
		if p.AuthenticationPage != nil {
			auth, ok := s.pages[p.AuthenticationPage.ID]
			if !ok {
				return &models.ReferenceNotFoundError{Kind: "page", ID: p.AuthenticationPage.ID, Referrer: p.ID}
			}
			authKey = auth.Key
		}

		if rec.Permission == permKey && rec.AuthenticationPage == authKey {
			continue
		}
		rec.Permission = permKey
		rec.AuthenticationPage = authKey
		if err := s.b.UpdatePage(ctx, rec); err != nil {
			return backendErr("update page", p.ID, err)
		}
		s.updated("page", p.ID, "access")
	}

	for _, h := range s.site.Hostnames {
		if err := s.linkHostname(ctx, h); err != nil {
			return err
		}
	}

	return s.site.WalkContent(func(c models.Content) error {
		linker, ok := c.(models.Linker)
		if !ok {
			return nil
		}
		return s.linkContent(ctx, c.Identifier(), linker.PageLinks())
	})
}

func (s *session) ensurePermission(ctx context.Context, cache map[string]*backend.Permission, decl *models.Permission) (*backend.Permission, error) {
	if perm, ok := cache[decl.Name]; ok {
		return perm, nil
	}
	perm, err := s.b.FindPermission(ctx, s.site.ID, decl.Name)
	if err != nil {
		return nil, backendErr("find permission", decl.Name, err)
	}
	if perm == nil {
		perm = &backend.Permission{Site: s.site.ID, Name: decl.Name, Title: decl.Title}
		if err := s.b.CreatePermission(ctx, perm); err != nil {
			return nil, backendErr("create permission", decl.Name, err)
		}
		s.created("permission", decl.Name)
	} else {
		s.run.Stats.Found++
	}
	cache[decl.Name] = perm
	return perm, nil
}

func (s *session) linkHostname(ctx context.Context, h *models.Hostname) error {
	host, err := s.b.FindHostname(ctx, h.Address)
	if err != nil {
		return backendErr("find hostname", h.Address, err)
	}
	if host == nil {
		return backendErr("find hostname", h.Address, errMissing)
	}
	page, ok := s.pages[h.WelcomePage.ID]
	if !ok {
		return &models.ReferenceNotFoundError{Kind: "page", ID: h.WelcomePage.ID, Referrer: h.Address}
	}
	welcome := page.Key
	if host.WelcomePage == welcome {
		return nil
	}
	host.WelcomePage = welcome
	if err := s.b.UpdateHostname(ctx, host); err != nil {
		return backendErr("update hostname", h.Address, err)
	}
	s.updated("hostname", h.Address, "welcome page")
	return nil
}

// linkContent stores a content's page links keyed by role. Content that was
// skipped during population has no record and is left alone.
func (s *session) linkContent(ctx context.Context, id string, links []models.PageLink) error {
	rec, ok := s.content[id]
	if !ok || rec == nil {
		return nil
	}
	want := make(map[string]string, len(links))
	for _, l := range links {
		page, ok := s.pages[l.Page.ID]
		if !ok {
			return &models.ReferenceNotFoundError{Kind: "page", ID: l.Page.ID, Referrer: id}
		}
		want[l.Role] = page.Key
	}
	if maps.Equal(rec.Links, want) {
		return nil
	}

	fresh, err := s.b.FindContent(ctx, s.site.ID, id)
	if err != nil {
		return backendErr("find content", id, err)
	}
	if fresh == nil {
		return backendErr("find content", id, errMissing)
	}
	fresh.Links = want
	if err := s.b.UpdateContent(ctx, fresh); err != nil {
		return backendErr("update content", id, err)
	}
	s.content[id] = fresh
	s.updated("content", id, "links")
	return nil
}
