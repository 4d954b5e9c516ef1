package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"evalgo.org/sitesync/backend"
)

func (s *Storage) ListSites(ctx context.Context) ([]*backend.Site, error) {
	sites, err := listDocs[backend.Site](ctx, s.db, `SELECT data FROM sites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

func (s *Storage) ListHostnames(ctx context.Context, site string) ([]*backend.Hostname, error) {
	hosts, err := listDocs[backend.Hostname](ctx, s.db,
		`SELECT data FROM hostnames WHERE site = ? ORDER BY rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list hostnames: %w", err)
	}
	return hosts, nil
}

func (s *Storage) ListPages(ctx context.Context, site string) ([]*backend.Page, error) {
	pages, err := listDocs[backend.Page](ctx, s.db,
		`SELECT data FROM pages WHERE site = ? AND live = 1 ORDER BY rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

func (s *Storage) ListTemplates(ctx context.Context, site string) ([]*backend.Template, error) {
	tmpls, err := listDocs[backend.Template](ctx, s.db,
		`SELECT data FROM templates WHERE site = ? AND live = 1 ORDER BY rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return tmpls, nil
}

func (s *Storage) ListContent(ctx context.Context, site string) ([]*backend.Content, error) {
	content, err := listDocs[backend.Content](ctx, s.db,
		`SELECT data FROM content WHERE site = ? AND live = 1 ORDER BY rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	return content, nil
}

func (s *Storage) ListPlacements(ctx context.Context, site string) ([]backend.Placement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pl.owner_kind, pl.owner_key, pl.box, pl.content
		FROM placements pl
		LEFT JOIN pages p ON pl.owner_kind = 'page' AND p.id = pl.owner_key
		LEFT JOIN templates t ON pl.owner_kind = 'template' AND t.id = pl.owner_key
		WHERE COALESCE(p.site, t.site) = ?
		ORDER BY pl.rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	var out []backend.Placement
	for rows.Next() {
		var p backend.Placement
		var kind, raw string
		if err := rows.Scan(&kind, &p.Owner.Key, &p.Box, &raw); err != nil {
			return nil, err
		}
		p.Owner.Kind = backend.OwnerKind(kind)
		if err := json.Unmarshal([]byte(raw), &p.Content); err != nil {
			return nil, fmt.Errorf("failed to decode box content: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
