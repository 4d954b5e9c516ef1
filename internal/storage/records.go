package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"evalgo.org/sitesync/backend"
)

// txBackend implements backend.Backend on one transaction.
type txBackend struct {
	q   querier
	now func() time.Time
}

func (b *txBackend) FindResources(ctx context.Context, site, path string) ([]backend.Resource, error) {
	return findResources(ctx, b.q, site, path)
}

// Sites

func (b *txBackend) FindSite(ctx context.Context, name string) (*backend.Site, error) {
	return findDoc[backend.Site](ctx, b.q, `SELECT data FROM sites WHERE name = ?`, name)
}

func (b *txBackend) CreateSite(ctx context.Context, site *backend.Site) error {
	now := b.now()
	site.CreatedAt, site.UpdatedAt = now, now
	data, err := encode(site)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO sites (name, data) VALUES (?, ?)`, site.Name, data)
	return err
}

func (b *txBackend) UpdateSite(ctx context.Context, site *backend.Site) error {
	site.UpdatedAt = b.now()
	data, err := encode(site)
	if err != nil {
		return err
	}
	return execOne(ctx, b.q, `UPDATE sites SET data = ? WHERE name = ?`, data, site.Name)
}

// Hostnames

func (b *txBackend) FindHostname(ctx context.Context, address string) (*backend.Hostname, error) {
	return findDoc[backend.Hostname](ctx, b.q, `SELECT data FROM hostnames WHERE address = ?`, address)
}

func (b *txBackend) CreateHostname(ctx context.Context, host *backend.Hostname) error {
	data, err := encode(host)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO hostnames (address, site, data) VALUES (?, ?, ?)`,
		host.Address, host.Site, data)
	return err
}

func (b *txBackend) UpdateHostname(ctx context.Context, host *backend.Hostname) error {
	data, err := encode(host)
	if err != nil {
		return err
	}
	return execOne(ctx, b.q, `UPDATE hostnames SET site = ?, data = ? WHERE address = ?`,
		host.Site, data, host.Address)
}

// Layouts

func (b *txBackend) FindLayout(ctx context.Context, site, name string) (*backend.Layout, error) {
	return findDoc[backend.Layout](ctx, b.q, `SELECT data FROM layouts WHERE site = ? AND name = ?`, site, name)
}

func (b *txBackend) CreateLayout(ctx context.Context, layout *backend.Layout) error {
	layout.Key = uuid.NewString()
	layout.CreatedAt = b.now()
	data, err := encode(layout)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO layouts (id, site, name, data) VALUES (?, ?, ?, ?)`,
		layout.Key, layout.Site, layout.Name, data)
	return err
}

// Templates

func (b *txBackend) FindTemplate(ctx context.Context, site, name string) (*backend.Template, error) {
	return findDoc[backend.Template](ctx, b.q,
		`SELECT data FROM templates WHERE site = ? AND name = ? AND live = 1`, site, name)
}

func (b *txBackend) CreateTemplate(ctx context.Context, tmpl *backend.Template) error {
	now := b.now()
	tmpl.Key = uuid.NewString()
	tmpl.CreatedAt, tmpl.UpdatedAt = now, now
	data, err := encode(tmpl)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO templates (id, site, name, live, data) VALUES (?, ?, ?, ?, ?)`,
		tmpl.Key, tmpl.Site, tmpl.Name, boolInt(!tmpl.Trashed), data)
	return err
}

func (b *txBackend) UpdateTemplate(ctx context.Context, tmpl *backend.Template) error {
	tmpl.UpdatedAt = b.now()
	data, err := encode(tmpl)
	if err != nil {
		return err
	}
	return execOne(ctx, b.q, `UPDATE templates SET live = ?, data = ? WHERE id = ?`,
		boolInt(!tmpl.Trashed), data, tmpl.Key)
}

// Pages

func (b *txBackend) FindPage(ctx context.Context, site, name string) (*backend.Page, error) {
	return findDoc[backend.Page](ctx, b.q,
		`SELECT data FROM pages WHERE site = ? AND name = ? AND live = 1`, site, name)
}

func (b *txBackend) CreatePage(ctx context.Context, page *backend.Page) error {
	now := b.now()
	page.Key = uuid.NewString()
	page.CreatedAt, page.UpdatedAt = now, now
	data, err := encode(page)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO pages (id, site, name, live, data) VALUES (?, ?, ?, ?, ?)`,
		page.Key, page.Site, page.Name, boolInt(!page.Trashed), data)
	return err
}

func (b *txBackend) UpdatePage(ctx context.Context, page *backend.Page) error {
	page.UpdatedAt = b.now()
	data, err := encode(page)
	if err != nil {
		return err
	}
	return execOne(ctx, b.q, `UPDATE pages SET live = ?, data = ? WHERE id = ?`,
		boolInt(!page.Trashed), data, page.Key)
}

// Content

func (b *txBackend) FindContent(ctx context.Context, site, name string) (*backend.Content, error) {
	return findDoc[backend.Content](ctx, b.q,
		`SELECT data FROM content WHERE site = ? AND name = ? AND live = 1`, site, name)
}

func (b *txBackend) CreateContent(ctx context.Context, content *backend.Content) error {
	content.Key = uuid.NewString()
	content.Revision = 1
	content.CreatedAt = b.now()
	return b.insertContent(ctx, content)
}

func (b *txBackend) insertContent(ctx context.Context, content *backend.Content) error {
	data, err := encode(content)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO content (id, site, name, live, data) VALUES (?, ?, ?, ?, ?)`,
		content.Key, content.Site, content.Name, boolInt(!content.Trashed && !content.Superseded), data)
	return err
}

func (b *txBackend) UpdateContent(ctx context.Context, content *backend.Content) error {
	data, err := encode(content)
	if err != nil {
		return err
	}
	return execOne(ctx, b.q, `UPDATE content SET live = ?, data = ? WHERE id = ?`,
		boolInt(!content.Trashed && !content.Superseded), data, content.Key)
}

func (b *txBackend) CreateContentRevision(ctx context.Context, existing *backend.Content, data backend.ContentData) (*backend.Content, error) {
	old, err := findDoc[backend.Content](ctx, b.q, `SELECT data FROM content WHERE id = ? AND live = 1`, existing.Key)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("content %s: %w", existing.Key, ErrNotFound)
	}

	rev := *old
	rev.ContentData = data
	rev.Key = uuid.NewString()
	rev.Revision = old.Revision + 1
	rev.CreatedAt = b.now()

	old.Superseded = true
	if err := b.UpdateContent(ctx, old); err != nil {
		return nil, err
	}
	if err := b.insertContent(ctx, &rev); err != nil {
		return nil, err
	}
	if err := b.rewriteReferences(ctx, old.Key, rev.Key); err != nil {
		return nil, err
	}
	return &rev, nil
}

// rewriteReferences points every box list and delegate list holding oldKey
// at newKey, or drops the entry when newKey is empty.
func (b *txBackend) rewriteReferences(ctx context.Context, oldKey, newKey string) error {
	placements, err := placementsReferencing(ctx, b.q, oldKey)
	if err != nil {
		return fmt.Errorf("failed to find box content: %w", err)
	}
	for _, p := range placements {
		if err := b.SetBoxContent(ctx, p.owner, p.box, replaceKey(p.keys, oldKey, newKey)); err != nil {
			return err
		}
	}

	delegators, err := delegatorsOf(ctx, b.q, oldKey)
	if err != nil {
		return fmt.Errorf("failed to find delegators: %w", err)
	}
	for _, c := range delegators {
		kept := c.Delegates[:0]
		for _, d := range c.Delegates {
			switch {
			case d.Content != oldKey:
				kept = append(kept, d)
			case newKey != "":
				kept = append(kept, backend.Delegate{Content: newKey, Purpose: d.Purpose})
			}
		}
		c.Delegates = kept
		if err := b.UpdateContent(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func replaceKey(keys []string, oldKey, newKey string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		switch {
		case k != oldKey:
			out = append(out, k)
		case newKey != "":
			out = append(out, newKey)
		}
	}
	return out
}

// Permissions

func (b *txBackend) FindPermission(ctx context.Context, site, name string) (*backend.Permission, error) {
	return findDoc[backend.Permission](ctx, b.q, `SELECT data FROM permissions WHERE site = ? AND name = ?`, site, name)
}

func (b *txBackend) CreatePermission(ctx context.Context, perm *backend.Permission) error {
	perm.Key = uuid.NewString()
	data, err := encode(perm)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `INSERT INTO permissions (id, site, name, data) VALUES (?, ?, ?, ?)`,
		perm.Key, perm.Site, perm.Name, data)
	return err
}

// Box lists

func (b *txBackend) BoxContent(ctx context.Context, owner backend.Owner, box string) ([]string, error) {
	var raw string
	err := b.q.QueryRowContext(ctx,
		`SELECT content FROM placements WHERE owner_kind = ? AND owner_key = ? AND box = ?`,
		string(owner.Kind), owner.Key, box).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode box content: %w", err)
	}
	return keys, nil
}

func (b *txBackend) SetBoxContent(ctx context.Context, owner backend.Owner, box string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	raw, err := encode(keys)
	if err != nil {
		return err
	}
	_, err = b.q.ExecContext(ctx, `
		INSERT INTO placements (owner_kind, owner_key, box, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_kind, owner_key, box) DO UPDATE SET content = excluded.content`,
		string(owner.Kind), owner.Key, box, raw)
	return err
}

// Trash

func (b *txBackend) Trash(ctx context.Context, kind backend.Kind, key string) error {
	switch kind {
	case backend.KindPage:
		p, err := findDoc[backend.Page](ctx, b.q, `SELECT data FROM pages WHERE id = ?`, key)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("page %s: %w", key, ErrNotFound)
		}
		p.Trashed = true
		return b.UpdatePage(ctx, p)
	case backend.KindTemplate:
		t, err := findDoc[backend.Template](ctx, b.q, `SELECT data FROM templates WHERE id = ?`, key)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("template %s: %w", key, ErrNotFound)
		}
		t.Trashed = true
		return b.UpdateTemplate(ctx, t)
	case backend.KindContent:
		c, err := findDoc[backend.Content](ctx, b.q, `SELECT data FROM content WHERE id = ?`, key)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("content %s: %w", key, ErrNotFound)
		}
		c.Trashed = true
		if err := b.UpdateContent(ctx, c); err != nil {
			return err
		}
		return b.rewriteReferences(ctx, key, "")
	case backend.KindHostname:
		if err := execOne(ctx, b.q, `DELETE FROM hostnames WHERE address = ?`, key); err != nil {
			return fmt.Errorf("hostname %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("cannot trash %s records", kind)
}

var _ backend.Backend = (*txBackend)(nil)
