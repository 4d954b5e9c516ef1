package declfile

import (
	"fmt"

	"evalgo.org/sitesync/deferred"
	"evalgo.org/sitesync/models"
)

// Build validates doc and constructs one site model per declared site.
// Entities are added in dependency order: layouts, templates, pages, site
// content, hostnames, removals. References to pages are queued as deferred
// references and resolved later by the engine, so they may point forward.
func Build(doc *Document, placeholders models.PlaceholderFunc) ([]*models.Site, error) {
	if err := Validate(doc).Err(); err != nil {
		return nil, &models.InvalidDeclarationError{Kind: "document", Reason: err.Error()}
	}

	sites := make([]*models.Site, 0, len(doc.Sites))
	for i := range doc.Sites {
		site, err := BuildSite(&doc.Sites[i], placeholders)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

type builder struct {
	site    *models.Site
	content map[string]models.Content
}

// BuildSite constructs the model of one site document. The document is
// assumed to have passed Validate.
func BuildSite(d *SiteDoc, placeholders models.PlaceholderFunc) (*models.Site, error) {
	opts := []models.SiteOption{models.WithPlaceholders(placeholders)}
	if d.Locale != "" {
		opts = append(opts, models.WithLocale(d.Locale))
	}
	if d.Timezone != "" {
		opts = append(opts, models.WithTimezone(d.Timezone))
	}
	b := &builder{site: models.NewSite(d.ID, opts...), content: make(map[string]models.Content)}

	for _, l := range d.Layouts {
		if _, err := b.site.AddLayout(models.NewLayout(l.ID, buildBoxes(l.Boxes)...)); err != nil {
			return nil, err
		}
	}

	for _, t := range d.Templates {
		tmpl, err := b.site.AddTemplate(models.NewTemplate(t.ID, b.site.Layout(t.Layout), t.Resources...))
		if err != nil {
			return nil, err
		}
		for _, p := range t.Boxes {
			for i := range p.Content {
				c, err := b.buildContent(&p.Content[i])
				if err != nil {
					return nil, err
				}
				tmpl.Add(p.Box, c)
			}
		}
		for _, id := range t.Remove {
			tmpl.Remove(id)
		}
	}

	for _, p := range d.Pages {
		page, err := b.site.AddPage(models.NewPage(p.ID, p.Path, p.Title, b.site.Template(p.Template)))
		if err != nil {
			return nil, err
		}
		if p.Permission != nil {
			page.RequirePermission(p.Permission.Name, p.Permission.Title)
		}
		if p.AuthenticationPage != "" {
			if err := page.UseAuthenticationPage(p.AuthenticationPage); err != nil {
				return nil, err
			}
		}
		for _, placement := range p.Boxes {
			for i := range placement.Content {
				c, err := b.buildContent(&placement.Content[i])
				if err != nil {
					return nil, err
				}
				page.Add(placement.Box, c)
			}
		}
		for _, id := range p.Remove {
			page.Remove(id)
		}
	}

	for i := range d.Content {
		c, err := b.buildContent(&d.Content[i])
		if err != nil {
			return nil, err
		}
		if _, err := b.site.AddContent(c); err != nil {
			return nil, err
		}
	}

	for _, h := range d.Hostnames {
		if _, err := b.site.AddHostname(h.Address, h.WelcomePage); err != nil {
			return nil, err
		}
	}

	for _, id := range d.RemovePages {
		b.site.RemovePage(id)
	}
	for _, id := range d.RemoveContent {
		b.site.RemoveContent(id)
	}
	for _, addr := range d.RemoveHostnames {
		if err := b.site.RemoveHostname(addr); err != nil {
			return nil, err
		}
	}

	return b.site, nil
}

func buildBoxes(docs []BoxDoc) []*models.Box {
	boxes := make([]*models.Box, 0, len(docs))
	for _, d := range docs {
		var box *models.Box
		if len(d.Children) > 0 {
			box = models.NewEnclosingBox(d.ID, buildBoxes(d.Children)...)
		} else {
			area := d.Area
			if area == "" {
				area = models.AreaNone
			}
			box = models.NewBox(d.ID, area)
		}
		box.Class = d.Class
		boxes = append(boxes, box)
	}
	return boxes
}

// buildContent returns the content declared by d. A content id seen before
// yields the instance built the first time, so one entity can be placed in
// several boxes.
func (b *builder) buildContent(d *ContentDoc) (models.Content, error) {
	if c, ok := b.content[d.ID]; ok {
		return c, nil
	}

	var c models.Content
	switch d.Kind {
	case models.KindText:
		c = models.NewText(d.ID, d.HTML)
	case models.KindLink:
		link := models.NewLink(d.ID, d.Label, d.URL)
		b.refer(d.Page, models.SlotLinkTarget, link, 0)
		c = link
	case models.KindLogin:
		login := models.NewLogin(d.ID)
		login.RememberMe = d.RememberMe
		b.refer(d.LandingPage, models.SlotLandingPage, login, 0)
		c = login
	case models.KindLogout:
		logout := models.NewLogout(d.ID)
		b.refer(d.LandingPage, models.SlotLandingPage, logout, 0)
		c = logout
	case models.KindResetPassword:
		reset := models.NewResetPassword(d.ID, d.TokenTTL)
		b.refer(d.LandingPage, models.SlotLandingPage, reset, 0)
		c = reset
	case models.KindSocialLogin:
		social := models.NewSocialLogin(d.ID, d.Providers...)
		b.refer(d.LandingPage, models.SlotLandingPage, social, 0)
		c = social
	case models.KindFileServer:
		fs := models.NewFileServer(d.ID, d.Directory)
		fs.Listing = d.Listing
		c = fs
	case models.KindMenu:
		menu := models.NewMenu(d.ID)
		for _, item := range d.Items {
			b.refer(item.Page, models.SlotMenuItem, menu, menu.AddItem(item.Label))
		}
		c = menu
	case models.KindScripted:
		c = models.NewScripted(d.ID, d.Script, d.Parameters)
	case models.KindComposite:
		composite := models.NewComposite(d.ID)
		for i := range d.Delegates {
			child, err := b.buildContent(&d.Delegates[i].Content)
			if err != nil {
				return nil, err
			}
			composite.Delegate(d.Delegates[i].Purpose, child)
		}
		for _, id := range d.Remove {
			composite.Remove(id)
		}
		c = composite
	default:
		return nil, &models.InvalidDeclarationError{Kind: "content", ID: d.ID, Reason: fmt.Sprintf("unknown kind %q", d.Kind)}
	}

	base := c.Base()
	base.Path = d.Path
	base.HTMLID = d.HTMLID
	base.HTMLClass = d.HTMLClass
	base.Resources = d.Resources
	base.Visibility = d.Visibility

	b.content[d.ID] = c
	return c, nil
}

func (b *builder) refer(pageID string, slot models.Slot, referrer models.PageReferrer, index int) {
	if pageID == "" {
		return
	}
	deferred.Schedule(b.site, models.Reference{Slot: slot, TargetID: pageID, Referrer: referrer, Index: index})
}
