package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/sitesync/backend"
)

// listSites handles GET /api/v1/sites
func (s *Server) listSites(c echo.Context) error {
	sites, err := s.store.ListSites(c.Request().Context())
	if err != nil {
		return InternalError("Failed to list sites", err.Error())
	}

	return c.JSON(http.StatusOK, SitesResponse{
		Count: len(sites),
		Sites: sites,
	})
}

// getSite handles GET /api/v1/sites/:site
func (s *Server) getSite(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := s.findSite(c)
	if err != nil {
		return err
	}

	hostnames, err := s.store.ListHostnames(ctx, site.Name)
	if err != nil {
		return InternalError("Failed to list hostnames", err.Error())
	}
	pages, err := s.store.ListPages(ctx, site.Name)
	if err != nil {
		return InternalError("Failed to list pages", err.Error())
	}
	templates, err := s.store.ListTemplates(ctx, site.Name)
	if err != nil {
		return InternalError("Failed to list templates", err.Error())
	}
	content, err := s.store.ListContent(ctx, site.Name)
	if err != nil {
		return InternalError("Failed to list content", err.Error())
	}

	return c.JSON(http.StatusOK, SiteResponse{
		Site:      site,
		Hostnames: hostnames,
		Pages:     len(pages),
		Templates: len(templates),
		Content:   len(content),
	})
}

// listPages handles GET /api/v1/sites/:site/pages
func (s *Server) listPages(c echo.Context) error {
	site, err := s.findSite(c)
	if err != nil {
		return err
	}

	pages, err := s.store.ListPages(c.Request().Context(), site.Name)
	if err != nil {
		return InternalError("Failed to list pages", err.Error())
	}

	limit, offset := parsePagination(c)
	window := paginate(pages, limit, offset)
	return c.JSON(http.StatusOK, PagesResponse{
		Count:  len(window),
		Total:  len(pages),
		Limit:  limit,
		Offset: offset,
		Pages:  window,
	})
}

// listContent handles GET /api/v1/sites/:site/content
//
// The optional kind query parameter keeps only content of that variant.
func (s *Server) listContent(c echo.Context) error {
	site, err := s.findSite(c)
	if err != nil {
		return err
	}

	content, err := s.store.ListContent(c.Request().Context(), site.Name)
	if err != nil {
		return InternalError("Failed to list content", err.Error())
	}

	if kind := c.QueryParam("kind"); kind != "" {
		filtered := make([]*backend.Content, 0, len(content))
		for _, item := range content {
			if item.Kind == kind {
				filtered = append(filtered, item)
			}
		}
		content = filtered
	}

	limit, offset := parsePagination(c)
	window := paginate(content, limit, offset)
	return c.JSON(http.StatusOK, ContentListResponse{
		Count:   len(window),
		Total:   len(content),
		Limit:   limit,
		Offset:  offset,
		Content: window,
	})
}

// getContent handles GET /api/v1/sites/:site/content/:name
func (s *Server) getContent(c echo.Context) error {
	site, err := s.findSite(c)
	if err != nil {
		return err
	}

	name := c.Param("name")
	content, err := s.store.ListContent(c.Request().Context(), site.Name)
	if err != nil {
		return InternalError("Failed to list content", err.Error())
	}
	for _, item := range content {
		if item.Name == name {
			return c.JSON(http.StatusOK, item)
		}
	}

	return NotFoundError("Content", name)
}

// findSite resolves the :site parameter to a live site.
func (s *Server) findSite(c echo.Context) (*backend.Site, error) {
	name := c.Param("site")
	sites, err := s.store.ListSites(c.Request().Context())
	if err != nil {
		return nil, InternalError("Failed to list sites", err.Error())
	}
	for _, site := range sites {
		if site.Name == name {
			return site, nil
		}
	}
	return nil, NotFoundError("Site", name)
}
