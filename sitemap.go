package panelengine

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) renderSitemap(c echo.Context, posts []blog.Post, templates []catalog.Template) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: views.BuildURL(base)},
		{Loc: views.BuildURL(base, "blog")},
		{Loc: views.BuildURL(base, "templates")},
		{Loc: views.BuildURL(base, "freelancers")},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     views.BuildURL(base, "blog", p.Slug),
			LastMod: p.UpdatedAt.Format("2006-01-02"),
		})
	}
	for _, t := range templates {
		u := sitemapURL{Loc: views.BuildURL(base, "templates", t.Slug)}
		if !t.CreatedAt.IsZero() {
			u.LastMod = t.CreatedAt.Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
