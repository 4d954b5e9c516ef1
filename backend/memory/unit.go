package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"evalgo.org/sitesync/backend"
)

// unit is the backend.Backend handed to a unit of work. The store lock is
// held for its whole lifetime. Records are copied in and out so callers
// only change the store through explicit updates.
type unit struct {
	store *Store
}

func (u *unit) count(op string) {
	u.store.calls[op]++
}

func (u *unit) data() *state {
	return u.store.data
}

func (u *unit) FindResources(ctx context.Context, site, path string) ([]backend.Resource, error) {
	u.count("find resources")
	return u.data().findResources(site, path), nil
}

// Sites

func (u *unit) FindSite(ctx context.Context, name string) (*backend.Site, error) {
	u.count("find site")
	for _, s := range u.data().Sites {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (u *unit) CreateSite(ctx context.Context, site *backend.Site) error {
	u.count("create site")
	for _, s := range u.data().Sites {
		if s.Name == site.Name {
			return fmt.Errorf("site %q: %w", site.Name, ErrDuplicate)
		}
	}
	now := u.store.now()
	site.CreatedAt, site.UpdatedAt = now, now
	cp := *site
	u.data().Sites = append(u.data().Sites, &cp)
	return nil
}

func (u *unit) UpdateSite(ctx context.Context, site *backend.Site) error {
	u.count("update site")
	for i, s := range u.data().Sites {
		if s.Name == site.Name {
			site.UpdatedAt = u.store.now()
			cp := *site
			u.data().Sites[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("site %q: %w", site.Name, ErrNotFound)
}

// Hostnames

func (u *unit) FindHostname(ctx context.Context, address string) (*backend.Hostname, error) {
	u.count("find hostname")
	for _, h := range u.data().Hostnames {
		if h.Address == address {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (u *unit) CreateHostname(ctx context.Context, host *backend.Hostname) error {
	u.count("create hostname")
	for _, h := range u.data().Hostnames {
		if h.Address == host.Address {
			return fmt.Errorf("hostname %q: %w", host.Address, ErrDuplicate)
		}
	}
	cp := *host
	u.data().Hostnames = append(u.data().Hostnames, &cp)
	return nil
}

func (u *unit) UpdateHostname(ctx context.Context, host *backend.Hostname) error {
	u.count("update hostname")
	for i, h := range u.data().Hostnames {
		if h.Address == host.Address {
			cp := *host
			u.data().Hostnames[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("hostname %q: %w", host.Address, ErrNotFound)
}

// Layouts

func (u *unit) FindLayout(ctx context.Context, site, name string) (*backend.Layout, error) {
	u.count("find layout")
	for _, l := range u.data().Layouts {
		if l.Site == site && l.Name == name {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (u *unit) CreateLayout(ctx context.Context, layout *backend.Layout) error {
	u.count("create layout")
	for _, l := range u.data().Layouts {
		if l.Site == layout.Site && l.Name == layout.Name {
			return fmt.Errorf("layout %q: %w", layout.Name, ErrDuplicate)
		}
	}
	layout.Key = uuid.NewString()
	layout.CreatedAt = u.store.now()
	cp := *layout
	u.data().Layouts = append(u.data().Layouts, &cp)
	return nil
}

// Templates

func (u *unit) FindTemplate(ctx context.Context, site, name string) (*backend.Template, error) {
	u.count("find template")
	for _, t := range u.data().Templates {
		if t.Site == site && t.Name == name && !t.Trashed {
			return cloneTemplate(t), nil
		}
	}
	return nil, nil
}

func (u *unit) CreateTemplate(ctx context.Context, tmpl *backend.Template) error {
	u.count("create template")
	for _, t := range u.data().Templates {
		if t.Site == tmpl.Site && t.Name == tmpl.Name && !t.Trashed {
			return fmt.Errorf("template %q: %w", tmpl.Name, ErrDuplicate)
		}
	}
	now := u.store.now()
	tmpl.Key = uuid.NewString()
	tmpl.CreatedAt, tmpl.UpdatedAt = now, now
	u.data().Templates = append(u.data().Templates, cloneTemplate(tmpl))
	return nil
}

func (u *unit) UpdateTemplate(ctx context.Context, tmpl *backend.Template) error {
	u.count("update template")
	for i, t := range u.data().Templates {
		if t.Key == tmpl.Key {
			tmpl.UpdatedAt = u.store.now()
			u.data().Templates[i] = cloneTemplate(tmpl)
			return nil
		}
	}
	return fmt.Errorf("template %q: %w", tmpl.Key, ErrNotFound)
}

// Pages

func (u *unit) FindPage(ctx context.Context, site, name string) (*backend.Page, error) {
	u.count("find page")
	for _, p := range u.data().Pages {
		if p.Site == site && p.Name == name && !p.Trashed {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (u *unit) CreatePage(ctx context.Context, page *backend.Page) error {
	u.count("create page")
	for _, p := range u.data().Pages {
		if p.Site == page.Site && p.Name == page.Name && !p.Trashed {
			return fmt.Errorf("page %q: %w", page.Name, ErrDuplicate)
		}
	}
	now := u.store.now()
	page.Key = uuid.NewString()
	page.CreatedAt, page.UpdatedAt = now, now
	cp := *page
	u.data().Pages = append(u.data().Pages, &cp)
	return nil
}

func (u *unit) UpdatePage(ctx context.Context, page *backend.Page) error {
	u.count("update page")
	for i, p := range u.data().Pages {
		if p.Key == page.Key {
			page.UpdatedAt = u.store.now()
			cp := *page
			u.data().Pages[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("page %q: %w", page.Key, ErrNotFound)
}

// Content

func (u *unit) FindContent(ctx context.Context, site, name string) (*backend.Content, error) {
	u.count("find content")
	for _, c := range u.data().Content {
		if c.Site == site && c.Name == name && live(c) {
			return cloneContent(c), nil
		}
	}
	return nil, nil
}

func (u *unit) CreateContent(ctx context.Context, content *backend.Content) error {
	u.count("create content")
	for _, c := range u.data().Content {
		if c.Site == content.Site && c.Name == content.Name && live(c) {
			return fmt.Errorf("content %q: %w", content.Name, ErrDuplicate)
		}
	}
	content.Key = uuid.NewString()
	content.Revision = 1
	content.CreatedAt = u.store.now()
	u.data().Content = append(u.data().Content, cloneContent(content))
	return nil
}

func (u *unit) UpdateContent(ctx context.Context, content *backend.Content) error {
	u.count("update content")
	for i, c := range u.data().Content {
		if c.Key == content.Key {
			u.data().Content[i] = cloneContent(content)
			return nil
		}
	}
	return fmt.Errorf("content %q: %w", content.Key, ErrNotFound)
}

func (u *unit) CreateContentRevision(ctx context.Context, existing *backend.Content, data backend.ContentData) (*backend.Content, error) {
	u.count("create content revision")
	var old *backend.Content
	for _, c := range u.data().Content {
		if c.Key == existing.Key {
			old = c
			break
		}
	}
	if old == nil || !live(old) {
		return nil, fmt.Errorf("content %q: %w", existing.Key, ErrNotFound)
	}

	rev := cloneContent(old)
	rev.ContentData = data
	rev.Key = uuid.NewString()
	rev.Revision = old.Revision + 1
	rev.CreatedAt = u.store.now()
	old.Superseded = true
	u.data().Content = append(u.data().Content, rev)
	u.data().replaceKey(old.Key, rev.Key)
	return cloneContent(rev), nil
}

// Permissions

func (u *unit) FindPermission(ctx context.Context, site, name string) (*backend.Permission, error) {
	u.count("find permission")
	for _, p := range u.data().Permissions {
		if p.Site == site && p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (u *unit) CreatePermission(ctx context.Context, perm *backend.Permission) error {
	u.count("create permission")
	for _, p := range u.data().Permissions {
		if p.Site == perm.Site && p.Name == perm.Name {
			return fmt.Errorf("permission %q: %w", perm.Name, ErrDuplicate)
		}
	}
	perm.Key = uuid.NewString()
	cp := *perm
	u.data().Permissions = append(u.data().Permissions, &cp)
	return nil
}

// Box lists

func (u *unit) BoxContent(ctx context.Context, owner backend.Owner, box string) ([]string, error) {
	u.count("find box content")
	for _, p := range u.data().Placements {
		if p.Owner == owner && p.Box == box {
			return append([]string(nil), p.Content...), nil
		}
	}
	return nil, nil
}

func (u *unit) SetBoxContent(ctx context.Context, owner backend.Owner, box string, keys []string) error {
	u.count("update box content")
	keys = append([]string(nil), keys...)
	for i, p := range u.data().Placements {
		if p.Owner == owner && p.Box == box {
			u.data().Placements[i].Content = keys
			return nil
		}
	}
	u.data().Placements = append(u.data().Placements, backend.Placement{Owner: owner, Box: box, Content: keys})
	return nil
}

// Trash

func (u *unit) Trash(ctx context.Context, kind backend.Kind, key string) error {
	u.count("trash " + string(kind))
	d := u.data()
	switch kind {
	case backend.KindPage:
		for _, p := range d.Pages {
			if p.Key == key {
				p.Trashed = true
				return nil
			}
		}
	case backend.KindTemplate:
		for _, t := range d.Templates {
			if t.Key == key {
				t.Trashed = true
				return nil
			}
		}
	case backend.KindContent:
		for _, c := range d.Content {
			if c.Key == key {
				c.Trashed = true
				d.detach(key)
				return nil
			}
		}
	case backend.KindHostname:
		for i, h := range d.Hostnames {
			if h.Address == key {
				d.Hostnames = append(d.Hostnames[:i], d.Hostnames[i+1:]...)
				return nil
			}
		}
	default:
		return fmt.Errorf("cannot trash %s records", kind)
	}
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}

// replaceKey points every box list and delegate list at a new revision.
func (d *state) replaceKey(oldKey, newKey string) {
	for i := range d.Placements {
		for j, k := range d.Placements[i].Content {
			if k == oldKey {
				d.Placements[i].Content[j] = newKey
			}
		}
	}
	for _, c := range d.Content {
		for j := range c.Delegates {
			if c.Delegates[j].Content == oldKey {
				c.Delegates[j].Content = newKey
			}
		}
	}
}

// detach drops a key from every box list and delegate list.
func (d *state) detach(key string) {
	for i := range d.Placements {
		kept := d.Placements[i].Content[:0]
		for _, k := range d.Placements[i].Content {
			if k != key {
				kept = append(kept, k)
			}
		}
		d.Placements[i].Content = kept
	}
	for _, c := range d.Content {
		kept := c.Delegates[:0]
		for _, del := range c.Delegates {
			if del.Content != key {
				kept = append(kept, del)
			}
		}
		c.Delegates = kept
	}
}

var _ backend.Backend = (*unit)(nil)
