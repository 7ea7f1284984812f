package panelengine

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/views"
)

const (
	homeFeatured  = 3
	homeLatest    = 6
	homeTemplates = 3
	relatedPosts  = 3
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	featured, err := a.Cache.Featured(ctx, homeFeatured)
	if err != nil {
		return err
	}
	latest, err := a.Cache.Posts(ctx, "", "")
	if err != nil {
		return err
	}
	latest, _ = paging.Slice(latest, paging.New(1, homeLatest, len(latest)))
	cats, err := a.Blog.Categories(ctx)
	if err != nil {
		return err
	}
	popular := a.Catalog.QueryTemplates(catalog.TemplateQuery{
		Sort:  catalog.SortPopular,
		Page:  1,
		Limit: homeTemplates,
	})
	p := a.page(c, "")
	p.Meta = views.PageMeta{Description: a.Config.Description, URL: views.BuildURL(a.Config.URL), OGType: "website"}
	return respond(c, views.HomePage{
		Page:       p,
		Featured:   featured,
		Latest:     latest,
		Categories: cats,
		Templates:  popular.Items,
	}, a.Views.Home)
}

func (a *App) handleBlogList(c echo.Context) error {
	ctx := c.Request().Context()
	tag, category := c.QueryParam("tag"), c.QueryParam("category")
	posts, err := a.Cache.Posts(ctx, tag, category)
	if err != nil {
		return err
	}
	tags, err := a.Cache.Tags(ctx)
	if err != nil {
		return err
	}
	cats, err := a.Blog.Categories(ctx)
	if err != nil {
		return err
	}
	return respond(c, views.BlogListPage{
		Page:           a.page(c, ""),
		Posts:          posts,
		Tags:           tags,
		Categories:     cats,
		ActiveTag:      tag,
		ActiveCategory: category,
	}, a.Views.BlogList)
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Cache.Get(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	html, err := blog.Render(post.Content)
	if err != nil {
		return err
	}
	posts, err := a.Cache.Posts(ctx, "", "")
	if err != nil {
		return err
	}
	if err := a.Blog.IncrementViews(ctx, post.Slug); err != nil {
		a.Logger.Warn("increment views", zap.String("slug", post.Slug), zap.Error(err))
	}
	p := a.page(c, "")
	p.Meta = views.PageMeta{
		Title:       post.Title,
		Description: post.Summary,
		URL:         views.BuildURL(a.Config.URL, "blog", post.Slug),
		OGType:      "article",
	}
	return respond(c, views.PostPage{
		Page:    p,
		Post:    post,
		HTML:    html,
		Related: views.FilterRelatedPosts(post, posts, relatedPosts),
	}, a.Views.Post)
}

func (a *App) handleTemplates(c echo.Context) error {
	q := catalog.ParseTemplateQuery(c.QueryParams())
	return respond(c, views.TemplatesPage{
		Page:       a.page(c, ""),
		Query:      q,
		Result:     a.Catalog.QueryTemplates(q),
		Categories: catalog.TemplateCategories,
	}, a.Views.Templates)
}

func (a *App) handleTemplate(c echo.Context) error {
	t, err := a.Catalog.TemplateBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	p := a.page(c, "")
	p.Meta = views.PageMeta{Title: t.Name, Description: t.Description, URL: views.BuildURL(a.Config.URL, "templates", t.Slug)}
	return respond(c, views.TemplatePage{
		Page:     p,
		Template: t,
		Related:  a.Catalog.Related(t, 3),
	}, a.Views.Template)
}

func (a *App) handleFreelancers(c echo.Context) error {
	q := catalog.ParseFreelancerQuery(c.QueryParams())
	return respond(c, views.FreelancersPage{
		Page:       a.page(c, ""),
		Query:      q,
		Result:     a.Catalog.QueryFreelancers(q),
		Categories: catalog.FreelancerCategories,
	}, a.Views.Freelancers)
}

func (a *App) handleFreelancer(c echo.Context) error {
	f, err := a.Catalog.FreelancerBySlug(c.Param("slug"))
	if err != nil {
		return err
	}
	p := a.page(c, "")
	p.Meta = views.PageMeta{Title: f.Name, Description: f.Title, URL: views.BuildURL(a.Config.URL, "freelancers", f.Slug)}
	return respond(c, views.FreelancerPage{Page: p, Freelancer: f}, a.Views.Freelancer)
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.Posts(c.Request().Context(), "", "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, a.Catalog.Templates())
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.Posts(c.Request().Context(), "", "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

type healthResponse struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
	Uptime    string `json:"uptime"`
	Error     string `json:"error,omitempty"`
}

func (a *App) handleHealth(c echo.Context) error {
	health, latency, err := a.Monitor.Health(c.Request().Context())
	resp := healthResponse{
		Status:    health,
		LatencyMS: latency.Milliseconds(),
		Uptime:    a.now().Sub(a.started).Round(time.Second).String(),
	}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

// handleRobots serves the user's robots.txt, or a default that allows
// everything except the admin and console and points at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	body := "User-agent: *\nDisallow: /admin/\nDisallow: /console/\n\nSitemap: " + views.BuildURL(a.Config.URL) + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}
