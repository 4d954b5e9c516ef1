package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/models"
	"evalgo.org/sitesync/reconcile"
)

func openTest(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "sitesync.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesDirectoryAndSchema(t *testing.T) {
	s := openTest(t)
	assert.FileExists(t, s.Path())

	// Re-running the schema against an existing file is harmless.
	again, err := Open(s.Path(), time.Second)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestWithinUnit_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	boom := errors.New("boom")
	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.CreateSite(ctx, &backend.Site{Name: "S"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sites, err := s.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestWithinUnit_PanicReleasesConnection(t *testing.T) {
	s := openTest(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.WithinUnit(context.Background(), func(b backend.Backend) error {
			require.NoError(t, b.CreateSite(context.Background(), &backend.Site{Name: "S"}))
			panic("boom")
		})
	})

	// The only connection must be free again, or this unit waits until the
	// deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		site, err := b.FindSite(ctx, "S")
		require.NoError(t, err)
		assert.Nil(t, site)
		return b.CreateSite(ctx, &backend.Site{Name: "T"})
	})
	require.NoError(t, err)

	sites, err := s.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "T", sites[0].Name)
}

func TestWithinUnit_Commits(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		if err := b.CreateSite(ctx, &backend.Site{Name: "S", Locale: "en"}); err != nil {
			return err
		}
		return b.CreatePage(ctx, &backend.Page{Site: "S", Name: "Home", Path: "/"})
	})
	require.NoError(t, err)

	err = s.WithinUnit(ctx, func(b backend.Backend) error {
		site, err := b.FindSite(ctx, "S")
		require.NoError(t, err)
		require.NotNil(t, site)
		assert.Equal(t, "en", site.Locale)
		assert.False(t, site.CreatedAt.IsZero())

		page, err := b.FindPage(ctx, "S", "Home")
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.NotEmpty(t, page.Key)

		missing, err := b.FindPage(ctx, "S", "Nope")
		assert.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestTxBackend_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		return b.UpdatePage(ctx, &backend.Page{Key: "nope", Site: "S", Name: "X"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTxBackend_RevisionSwapsReferences(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	page := backend.Owner{Kind: backend.OwnerPage}

	var child, parent, rev *backend.Content
	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		p := &backend.Page{Site: "S", Name: "Home", Path: "/"}
		require.NoError(t, b.CreatePage(ctx, p))
		page.Key = p.Key

		child = &backend.Content{Site: "S", Name: "child", ContentData: backend.ContentData{Kind: "text", Digest: "a"}}
		require.NoError(t, b.CreateContent(ctx, child))
		parent = &backend.Content{Site: "S", Name: "parent", ContentData: backend.ContentData{Kind: "composite"},
			Delegates: []backend.Delegate{{Content: child.Key, Purpose: "main"}}}
		require.NoError(t, b.CreateContent(ctx, parent))
		require.NoError(t, b.SetBoxContent(ctx, page, "body", []string{parent.Key, child.Key}))

		var err error
		rev, err = b.CreateContentRevision(ctx, child, backend.ContentData{Kind: "text", Digest: "b"})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, rev.Revision)
	assert.NotEqual(t, child.Key, rev.Key)

	err = s.WithinUnit(ctx, func(b backend.Backend) error {
		keys, err := b.BoxContent(ctx, page, "body")
		require.NoError(t, err)
		assert.Equal(t, []string{parent.Key, rev.Key}, keys)

		current, err := b.FindContent(ctx, "S", "child")
		require.NoError(t, err)
		assert.Equal(t, rev.Key, current.Key)
		assert.Equal(t, "b", current.Digest)

		p, err := b.FindContent(ctx, "S", "parent")
		require.NoError(t, err)
		assert.Equal(t, []backend.Delegate{{Content: rev.Key, Purpose: "main"}}, p.Delegates)
		return nil
	})
	require.NoError(t, err)
}

func TestTxBackend_TrashHostnameReleasesAddress(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.WithinUnit(ctx, func(b backend.Backend) error {
		return b.CreateHostname(ctx, &backend.Hostname{Address: "www.example.com", Site: "A"})
	}))
	require.NoError(t, s.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.Trash(ctx, backend.KindHostname, "www.example.com"))
		host, err := b.FindHostname(ctx, "www.example.com")
		require.NoError(t, err)
		assert.Nil(t, host)
		return b.CreateHostname(ctx, &backend.Hostname{Address: "www.example.com", Site: "B"})
	}))

	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		return b.Trash(ctx, backend.KindHostname, "missing.example.com")
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTxBackend_TrashDetachesContent(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	owner := backend.Owner{Kind: backend.OwnerTemplate}

	err := s.WithinUnit(ctx, func(b backend.Backend) error {
		tmpl := &backend.Template{Site: "S", Name: "T", Layout: "main"}
		require.NoError(t, b.CreateTemplate(ctx, tmpl))
		owner.Key = tmpl.Key

		a := &backend.Content{Site: "S", Name: "a"}
		c := &backend.Content{Site: "S", Name: "c"}
		require.NoError(t, b.CreateContent(ctx, a))
		require.NoError(t, b.CreateContent(ctx, c))
		require.NoError(t, b.SetBoxContent(ctx, owner, "header", []string{a.Key, c.Key}))

		require.NoError(t, b.Trash(ctx, backend.KindContent, a.Key))

		keys, err := b.BoxContent(ctx, owner, "header")
		require.NoError(t, err)
		assert.Equal(t, []string{c.Key}, keys)

		gone, err := b.FindContent(ctx, "S", "a")
		require.NoError(t, err)
		assert.Nil(t, gone)

		// The name is free for a new live record.
		return b.CreateContent(ctx, &backend.Content{Site: "S", Name: "a"})
	})
	require.NoError(t, err)

	err = s.WithinUnit(ctx, func(b backend.Backend) error {
		return b.Trash(ctx, backend.KindPermission, "x")
	})
	assert.ErrorContains(t, err, "cannot trash permission")
}

func TestFindResources(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	_, err := s.AddResource(ctx, "S", "scripts/app.js", "text/javascript")
	require.NoError(t, err)
	_, err = s.AddResource(ctx, "S", "other/app.js", "text/javascript")
	require.NoError(t, err)
	_, err = s.AddResource(ctx, "X", "scripts/app.js", "text/javascript")
	require.NoError(t, err)

	tests := []struct {
		path string
		want int
	}{
		{"scripts/app.js", 1},
		{"/scripts/app.js", 1},
		{"app.js", 2},
		{"pp.js", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			found, err := s.FindResources(ctx, "S", tt.path)
			require.NoError(t, err)
			assert.Len(t, found, tt.want)
		})
	}
}

func declareSite(t *testing.T) *models.Site {
	t.Helper()
	site := models.NewSite("S")
	layout, err := site.AddLayout(models.NewLayout("main", models.NewBox("body", models.AreaPrimary)))
	require.NoError(t, err)
	tmpl, err := site.AddTemplate(models.NewTemplate("T", layout))
	require.NoError(t, err)
	home, err := site.AddPage(models.NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)
	home.Add("body", models.NewText("welcome", "<p>hi</p>"))
	home.Add("body", models.NewText("footer", "<p>bye</p>"))
	_, err = site.AddHostname("s.example.com", "Home")
	require.NoError(t, err)
	return site
}

func TestStorage_ApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	engine := reconcile.NewEngine(s, zerolog.Nop())

	first, err := engine.Apply(ctx, declareSite(t))
	require.NoError(t, err)
	assert.True(t, first.Stats.Changed())

	second, err := engine.Apply(ctx, declareSite(t))
	require.NoError(t, err)
	assert.False(t, second.Stats.Changed())

	pages, err := s.ListPages(ctx, "S")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	placements, err := s.ListPlacements(ctx, "S")
	require.NoError(t, err)
	var body []string
	for _, p := range placements {
		if p.Owner.Kind == backend.OwnerPage && p.Box == "body" {
			body = p.Content
		}
	}
	assert.Len(t, body, 2)

	hosts, err := s.ListHostnames(ctx, "S")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, pages[0].Key, hosts[0].WelcomePage)
}
