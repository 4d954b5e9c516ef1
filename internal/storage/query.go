package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"evalgo.org/sitesync/backend"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// findDoc decodes the JSON document selected by query. It returns nil when
// no row matches.
func findDoc[T any](ctx context.Context, q querier, query string, args ...any) (*T, error) {
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &v, nil
}

// listDocs decodes every JSON document selected by query.
func listDocs[T any](ctx context.Context, q querier, query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(raw), nil
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, q querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func findResources(ctx context.Context, q querier, site, path string) ([]backend.Resource, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, site, path, COALESCE(content_type, '') FROM resources WHERE site = ? ORDER BY rowid`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var out []backend.Resource
	for rows.Next() {
		var r backend.Resource
		if err := rows.Scan(&r.Key, &r.Site, &r.Path, &r.ContentType); err != nil {
			return nil, err
		}
		if backend.MatchResourcePath(r.Path, path) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

type placementRow struct {
	owner backend.Owner
	box   string
	keys  []string
}

// placementsReferencing returns every box list containing key. Rows are read
// completely before the caller issues updates on the same connection.
func placementsReferencing(ctx context.Context, q querier, key string) ([]placementRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT owner_kind, owner_key, box, content FROM placements
		WHERE EXISTS (SELECT 1 FROM json_each(placements.content) WHERE json_each.value = ?)`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []placementRow
	for rows.Next() {
		var p placementRow
		var kind, raw string
		if err := rows.Scan(&kind, &p.owner.Key, &p.box, &raw); err != nil {
			return nil, err
		}
		p.owner.Kind = backend.OwnerKind(kind)
		if err := json.Unmarshal([]byte(raw), &p.keys); err != nil {
			return nil, fmt.Errorf("failed to decode box content: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// delegatorsOf returns every content record delegating to key.
func delegatorsOf(ctx context.Context, q querier, key string) ([]*backend.Content, error) {
	return listDocs[backend.Content](ctx, q, `
		SELECT data FROM content
		WHERE live = 1 AND EXISTS (
			SELECT 1 FROM json_each(content.data, '$.delegates') AS d
			WHERE json_extract(d.value, '$.content') = ?
		)`, key)
}
