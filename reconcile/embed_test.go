package reconcile_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/backend/memory"
	"evalgo.org/sitesync/models"
	"evalgo.org/sitesync/reconcile"
)

// banner is a content variant defined outside the models package.
type banner struct {
	models.ContentBase
	Message string
}

func (b *banner) Kind() string { return "banner" }

func (b *banner) Build(context.Context, backend.ResourceLookup, *backend.Content) (backend.ContentData, error) {
	d := backend.ContentData{Kind: "banner", Config: map[string]string{"message": b.Message}}
	d.Digest = models.Digest(d)
	return d, nil
}

func (b *banner) IsModified(ctx context.Context, res backend.ResourceLookup, entity *backend.Content) (bool, error) {
	d, err := b.Build(ctx, res, entity)
	if err != nil {
		return false, err
	}
	return d.Digest != entity.Digest, nil
}

func bannerSite(t *testing.T, message string) *models.Site {
	t.Helper()
	site := models.NewSite("shop")
	layout, err := site.AddLayout(models.NewLayout("main", models.NewBox("body", models.AreaPrimary)))
	require.NoError(t, err)
	tmpl, err := site.AddTemplate(models.NewTemplate("T", layout))
	require.NoError(t, err)
	home, err := site.AddPage(models.NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)
	home.Add("body", &banner{ContentBase: models.ContentBase{Node: models.Node{ID: "sale"}}, Message: message})
	_, err = site.AddHostname("shop.example.com", "Home")
	require.NoError(t, err)
	return site
}

func TestEngine_CustomContentVariant(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	engine := reconcile.NewEngine(store, zerolog.Nop())

	run, err := engine.Apply(ctx, bannerSite(t, "10% off"))
	require.NoError(t, err)
	assert.Equal(t, reconcile.PhaseDone, run.Phase)

	run, err = engine.Apply(ctx, bannerSite(t, "20% off"))
	require.NoError(t, err)
	assert.Equal(t, 1, run.Stats.Revised)

	live, err := store.ListContent(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "banner", live[0].Kind)
	assert.Equal(t, "20% off", live[0].Config["message"])
}
