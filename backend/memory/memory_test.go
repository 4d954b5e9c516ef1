package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend"
)

func TestWithinUnit_RestoresOnError(t *testing.T) {
	ctx := context.Background()
	store := New()

	boom := errors.New("boom")
	err := store.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.CreateSite(ctx, &backend.Site{Name: "s"}))
		require.NoError(t, b.CreatePage(ctx, &backend.Page{Site: "s", Name: "home", Path: "/"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestWithinUnit_RestoresOnPanic(t *testing.T) {
	ctx := context.Background()
	store := New()

	assert.Panics(t, func() {
		_ = store.WithinUnit(ctx, func(b backend.Backend) error {
			require.NoError(t, b.CreateSite(ctx, &backend.Site{Name: "s"}))
			panic("boom")
		})
	})

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)

	// The unit lock was released.
	require.NoError(t, store.WithinUnit(ctx, func(b backend.Backend) error {
		return b.CreateSite(ctx, &backend.Site{Name: "t"})
	}))
}

func TestWithinUnit_Commits(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.WithinUnit(ctx, func(b backend.Backend) error {
		if err := b.CreateSite(ctx, &backend.Site{Name: "s"}); err != nil {
			return err
		}
		return b.CreatePage(ctx, &backend.Page{Site: "s", Name: "home", Path: "/"})
	})
	require.NoError(t, err)

	pages, err := store.ListPages(ctx, "s")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotEmpty(t, pages[0].Key)
	assert.Equal(t, 2, store.Creates())
}

func TestCreatePage_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.CreatePage(ctx, &backend.Page{Site: "s", Name: "home"}))
		return b.CreatePage(ctx, &backend.Page{Site: "s", Name: "home"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.CreatePage(ctx, &backend.Page{Site: "s", Name: "home", Title: "Home"}))
		p, err := b.FindPage(ctx, "s", "home")
		require.NoError(t, err)
		p.Title = "changed"

		again, err := b.FindPage(ctx, "s", "home")
		require.NoError(t, err)
		assert.Equal(t, "Home", again.Title)
		return nil
	}))
}

func TestCreateContentRevision_SwapsReferences(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.WithinUnit(ctx, func(b backend.Backend) error {
		child := &backend.Content{Site: "s", Name: "logo", ContentData: backend.ContentData{Kind: "text", Digest: "a"}}
		require.NoError(t, b.CreateContent(ctx, child))
		parent := &backend.Content{
			Site:        "s",
			Name:        "header",
			ContentData: backend.ContentData{Kind: "composite"},
			Delegates:   []backend.Delegate{{Content: child.Key, Purpose: "logo"}},
		}
		require.NoError(t, b.CreateContent(ctx, parent))

		owner := backend.Owner{Kind: backend.OwnerTemplate, Key: "t1"}
		require.NoError(t, b.SetBoxContent(ctx, owner, "header", []string{child.Key}))

		rev, err := b.CreateContentRevision(ctx, child, backend.ContentData{Kind: "text", Digest: "b"})
		require.NoError(t, err)
		assert.Equal(t, 2, rev.Revision)
		assert.NotEqual(t, child.Key, rev.Key)

		found, err := b.FindContent(ctx, "s", "logo")
		require.NoError(t, err)
		assert.Equal(t, rev.Key, found.Key)
		assert.Equal(t, "b", found.Digest)

		keys, err := b.BoxContent(ctx, owner, "header")
		require.NoError(t, err)
		assert.Equal(t, []string{rev.Key}, keys)

		p, err := b.FindContent(ctx, "s", "header")
		require.NoError(t, err)
		assert.Equal(t, rev.Key, p.Delegates[0].Content)
		return nil
	}))
}

func TestTrashContent_Detaches(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.WithinUnit(ctx, func(b backend.Backend) error {
		c := &backend.Content{Site: "s", Name: "x", ContentData: backend.ContentData{Kind: "text"}}
		require.NoError(t, b.CreateContent(ctx, c))
		owner := backend.Owner{Kind: backend.OwnerPage, Key: "p1"}
		require.NoError(t, b.SetBoxContent(ctx, owner, "body", []string{c.Key}))

		require.NoError(t, b.Trash(ctx, backend.KindContent, c.Key))

		found, err := b.FindContent(ctx, "s", "x")
		require.NoError(t, err)
		assert.Nil(t, found)

		keys, err := b.BoxContent(ctx, owner, "body")
		require.NoError(t, err)
		assert.Empty(t, keys)

		assert.ErrorIs(t, b.Trash(ctx, backend.KindContent, "missing"), ErrNotFound)
		return nil
	}))
}

func TestFindResources(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.AddResource("s", "scripts/app.js", "text/javascript")
	store.AddResource("s", "lib/app.js", "text/javascript")
	store.AddResource("s", "lib/util.js", "text/javascript")
	store.AddResource("other", "util.js", "text/javascript")

	tests := []struct {
		path string
		want int
	}{
		{"app.js", 2},
		{"lib/app.js", 1},
		{"/lib/util.js", 1},
		{"util.js", 1},
		{"missing.js", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			found, err := store.FindResources(ctx, "s", tt.path)
			require.NoError(t, err)
			assert.Len(t, found, tt.want)
		})
	}
}
