package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/backend/memory"
)

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	dry := backend.DryRun(store)

	err := dry.WithinUnit(ctx, func(b backend.Backend) error {
		require.NoError(t, b.CreateSite(ctx, &backend.Site{Name: "s"}))
		site, err := b.FindSite(ctx, "s")
		require.NoError(t, err)
		assert.NotNil(t, site)
		return nil
	})
	require.NoError(t, err)

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)

	boom := errors.New("boom")
	err = dry.WithinUnit(ctx, func(b backend.Backend) error { return boom })
	assert.ErrorIs(t, err, boom)
}
