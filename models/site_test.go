package models

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSite(t *testing.T, opts ...SiteOption) (*Site, *Template) {
	t.Helper()
	site := NewSite("S", opts...)
	layout, err := site.AddLayout(NewLayout("main",
		NewBox("header", AreaHeader),
		NewEnclosingBox("content", NewBox("body", AreaPrimary)),
	))
	require.NoError(t, err)
	tmpl, err := site.AddTemplate(NewTemplate("T", layout))
	require.NoError(t, err)
	return site, tmpl
}

func TestNewSite_Defaults(t *testing.T) {
	site := NewSite("S")
	assert.Equal(t, "en", site.Locale)
	assert.Equal(t, "UTC", site.Timezone)

	site = NewSite("S", WithLocale("de"), WithTimezone("Europe/Berlin"))
	assert.Equal(t, "de", site.Locale)
	assert.Equal(t, "Europe/Berlin", site.Timezone)
}

func TestAddPage_ResolvesPlaceholders(t *testing.T) {
	resolver := func(v string) (string, error) {
		return strings.ReplaceAll(v, "${env}", "prod"), nil
	}
	site, tmpl := testSite(t, WithPlaceholders(resolver))

	home, err := site.AddPage(NewPage("Home", "/${env}/home", "Home", tmpl))
	require.NoError(t, err)
	assert.Equal(t, "/prod/home", home.Path)
	assert.Same(t, site, home.Site())
}

func TestAddPage_Errors(t *testing.T) {
	site, tmpl := testSite(t)

	tests := []struct {
		name string
		page *Page
	}{
		{"blank path", NewPage("blank", "  ", "Blank", tmpl)},
		{"unresolved placeholder", NewPage("env", "/${env}/x", "Env", tmpl)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := site.AddPage(tt.page)
			var invalid *InvalidDeclarationError
			assert.ErrorAs(t, err, &invalid)
		})
	}

	_, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)
	_, err = site.AddPage(NewPage("Home", "/again", "Home", tmpl))
	var invalid *InvalidDeclarationError
	assert.ErrorAs(t, err, &invalid)
}

func TestAddPage_PlaceholderFuncError(t *testing.T) {
	site, tmpl := testSite(t, WithPlaceholders(func(string) (string, error) {
		return "", fmt.Errorf("no such placeholder")
	}))
	_, err := site.AddPage(NewPage("Home", "/${x}", "Home", tmpl))
	assert.ErrorContains(t, err, "no such placeholder")
}

func TestAddHostname_FailsFast(t *testing.T) {
	site, tmpl := testSite(t)

	_, err := site.AddHostname("example.com", "Home")
	var notFound *ReferenceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Home", notFound.ID)

	_, err = site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)
	h, err := site.AddHostname("example.com", "Home")
	require.NoError(t, err)
	assert.Equal(t, "Home", h.WelcomePage.ID)

	_, err = site.AddHostname("example.com", "Home")
	var invalid *InvalidDeclarationError
	assert.ErrorAs(t, err, &invalid)
}

func TestRemoveHostname(t *testing.T) {
	site, tmpl := testSite(t, WithPlaceholders(func(v string) (string, error) {
		return strings.ReplaceAll(v, "${domain}", "example.com"), nil
	}))
	_, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)
	_, err = site.AddHostname("www.${domain}", "Home")
	require.NoError(t, err)
	_, err = site.AddHostname("old.${domain}", "Home")
	require.NoError(t, err)

	require.NoError(t, site.RemoveHostname("old.${domain}"))
	require.NoError(t, site.RemoveHostname("old.${domain}"))
	require.Len(t, site.Hostnames, 1)
	assert.Equal(t, "www.example.com", site.Hostnames[0].Address)
	assert.Equal(t, []string{"old.example.com"}, site.RemovedHostnames)
}

func TestValidate(t *testing.T) {
	t.Run("no hostnames", func(t *testing.T) {
		site, tmpl := testSite(t)
		_, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)

		var invalid *InvalidDeclarationError
		require.ErrorAs(t, site.Validate(), &invalid)
		assert.Equal(t, "site", invalid.Kind)
	})

	t.Run("valid", func(t *testing.T) {
		site, tmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		home.Add("body", NewText("hello", "hi"))
		tmpl.Add("header", NewText("logo", "logo"))
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		assert.NoError(t, site.Validate())
	})

	t.Run("box outside layout", func(t *testing.T) {
		site, tmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		home.Add("sidebar", NewText("ad", "ad"))
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		assert.ErrorContains(t, site.Validate(), "sidebar")
	})

	t.Run("welcome page removed", func(t *testing.T) {
		site, tmpl := testSite(t)
		_, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		site.RemovePage("Home")
		assert.Error(t, site.Validate())
	})

	t.Run("authentication page from another site", func(t *testing.T) {
		site, tmpl := testSite(t)
		other, otherTmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		login, err := other.AddPage(NewPage("Login", "/login", "Login", otherTmpl))
		require.NoError(t, err)
		home.AuthenticationPage = login
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)

		var notFound *ReferenceNotFoundError
		require.ErrorAs(t, site.Validate(), &notFound)
		assert.Equal(t, "Login", notFound.ID)
		assert.Equal(t, "Home", notFound.Referrer)
	})

	t.Run("template from another site", func(t *testing.T) {
		site, _ := testSite(t)
		_, foreign := testSite(t)
		_, err := site.AddPage(NewPage("Home", "/", "Home", foreign))
		require.NoError(t, err)
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		var notFound *ReferenceNotFoundError
		assert.ErrorAs(t, site.Validate(), &notFound)
	})

	t.Run("duplicate content id", func(t *testing.T) {
		site, tmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		home.Add("body", NewText("dup", "a"))
		home.Add("header", NewText("dup", "b"))
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		assert.ErrorContains(t, site.Validate(), "declared more than once")
	})

	t.Run("shared content instance", func(t *testing.T) {
		site, tmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		shared := NewText("shared", "a")
		home.Add("body", shared)
		home.Add("header", shared)
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		assert.NoError(t, site.Validate())
	})

	t.Run("composite contains itself", func(t *testing.T) {
		site, tmpl := testSite(t)
		home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
		require.NoError(t, err)
		c := NewComposite("loop")
		c.Delegate("self", c)
		home.Add("body", c)
		_, err = site.AddHostname("example.com", "Home")
		require.NoError(t, err)
		assert.ErrorContains(t, site.Validate(), "contains itself")
	})
}

func TestRemovalContent_IsTransitive(t *testing.T) {
	site, tmpl := testSite(t)
	home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)

	outer := NewComposite("outer")
	inner := NewComposite("inner")
	inner.Remove("deep")
	outer.Delegate("nested", inner)
	outer.Remove("shallow")
	home.Add("body", outer)
	home.Remove("page-level")
	tmpl.Remove("template-level")
	site.RemoveContent("site-level")
	site.RemoveContent("page-level")

	assert.ElementsMatch(t,
		[]string{"site-level", "template-level", "page-level", "shallow", "deep"},
		site.RemovalContent())
}

func TestWalkContent_Order(t *testing.T) {
	site, tmpl := testSite(t)
	home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)

	tmpl.Add("header", NewText("logo", ""))
	c := NewComposite("c")
	c.Delegate("a", NewText("child", ""))
	home.Add("body", c)
	home.Add("header", NewText("logo-extra", ""))
	_, err = site.AddContent(NewFileServer("files", "/srv"))
	require.NoError(t, err)

	var ids []string
	require.NoError(t, site.WalkContent(func(c Content) error {
		ids = append(ids, c.Identifier())
		return nil
	}))
	assert.Equal(t, []string{"logo", "c", "child", "logo-extra", "files"}, ids)
	assert.NotNil(t, site.FindContent("child"))
	assert.Nil(t, site.FindContent("nope"))
}

func TestEffectiveContent_ComposesTemplateFirst(t *testing.T) {
	site, tmpl := testSite(t)
	home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)

	tmpl.Add("header", NewText("logo", ""))
	home.Add("header", NewText("banner", ""))

	var ids []string
	for _, c := range home.EffectiveContent("header") {
		ids = append(ids, c.Identifier())
	}
	assert.Equal(t, []string{"logo", "banner"}, ids)
	assert.Len(t, home.BoxContent("header"), 1)
}

func TestParentRef_WalksUp(t *testing.T) {
	site, tmpl := testSite(t)
	home, err := site.AddPage(NewPage("Home", "/", "Home", tmpl))
	require.NoError(t, err)

	c := NewComposite("c")
	leaf := NewText("leaf", "")
	c.Delegate("a", leaf)
	home.Add("body", c)

	parent := leaf.Parent()
	assert.Equal(t, ParentContent, parent.Kind())
	assert.Same(t, home, parent.Page())
	assert.Same(t, site, parent.Site())
	assert.Nil(t, parent.Template())

	logo := NewText("logo", "")
	tmpl.Add("header", logo)
	assert.Equal(t, ParentTemplate, logo.Parent().Kind())
	assert.Same(t, tmpl, logo.Parent().Template())
	assert.Nil(t, logo.Parent().Page())
	assert.Same(t, site, logo.Parent().Site())

	var none ParentRef
	assert.Equal(t, "none", none.Kind().String())
	assert.Nil(t, none.Site())
}

func TestPage_Wildcard(t *testing.T) {
	site, tmpl := testSite(t)
	docs, err := site.AddPage(NewPage("docs", "/docs/*", "Docs", tmpl))
	require.NoError(t, err)

	assert.True(t, docs.IsWildcard())
	assert.Equal(t, "/docs/", docs.Prefix())
	assert.True(t, docs.Matches("/docs/intro"))
	assert.False(t, docs.Matches("/blog"))

	home, err := site.AddPage(NewPage("home", "/", "Home", tmpl))
	require.NoError(t, err)
	assert.True(t, home.Matches("/"))
	assert.False(t, home.Matches("/x"))
}

func TestUseAuthenticationPage_RequiresSite(t *testing.T) {
	_, tmpl := testSite(t)
	p := NewPage("loose", "/", "Loose", tmpl)
	assert.Error(t, p.UseAuthenticationPage("x"))
}

func TestSameID(t *testing.T) {
	assert.True(t, SameID(NewText("a", "x"), NewText("a", "y")))
	assert.False(t, SameID(NewText("a", ""), NewText("b", "")))
	assert.True(t, SameID(nil, nil))
	assert.False(t, SameID(NewText("a", ""), nil))
}
