package panelengine

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/slug"
	"github.com/eringen/panelengine/views"
)

const (
	postPageSize    = 20
	websitePageSize = 20
	scheduleLayout  = "2006-01-02T15:04"
)

func (a *App) handleAdminBlog(c echo.Context) error {
	var editing *blog.Post
	if c.QueryParam("new") != "" {
		editing = &blog.Post{}
	}
	return a.adminBlogPage(c, editing)
}

func (a *App) handleAdminBlogEdit(c echo.Context) error {
	post, err := a.Blog.GetAny(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return a.adminBlogPage(c, &post)
}

func (a *App) adminBlogPage(c echo.Context, editing *blog.Post) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	data := views.AdminBlogPage{
		Page: a.page(c, "blog"),
		Query: blog.Query{
			Status:   blog.Status(q.Get("status")),
			Category: q.Get("category"),
			Tag:      q.Get("tag"),
			Search:   strings.TrimSpace(q.Get("q")),
		},
		Editing: editing,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Posts, data.Paging, err = a.Blog.List(gctx, data.Query, paging.Parse(q, postPageSize, maxPageSize))
		return err
	})
	g.Go(func() (err error) {
		data.Counts, err = a.Blog.StatusCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminBlog)
}

// handleAdminBlogSave creates or updates a post from the editor. Fields the
// editor does not show (status, flags) are kept from the stored post. A
// changed slug renames the post.
func (a *App) handleAdminBlogSave(c echo.Context) error {
	ctx := c.Request().Context()
	original := c.FormValue("original")
	var post blog.Post
	if original != "" {
		var err error
		if post, err = a.Blog.GetAny(ctx, original); err != nil {
			return err
		}
	}
	post.Title = c.FormValue("title")
	post.Slug = strings.TrimSpace(c.FormValue("slug"))
	post.Summary = strings.TrimSpace(c.FormValue("summary"))
	post.Category = c.FormValue("category")
	post.Tags = blog.ParseTags(c.FormValue("tags"))
	post.CoverImage = strings.TrimSpace(c.FormValue("coverImage"))
	post.Content = c.FormValue("content")

	target := slug.Make(post.Slug)
	if target == "" {
		target = slug.Make(post.Title)
	}
	if target != original {
		if _, err := a.Blog.GetAny(ctx, target); err == nil {
			return blog.ErrSlugTaken
		}
	}

	saved, err := a.Blog.Save(ctx, post)
	if err != nil {
		return err
	}
	if original != "" && original != saved.Slug {
		if err := a.Blog.Delete(ctx, original); err != nil && !errors.Is(err, blog.ErrNotFound) {
			return err
		}
	}
	a.Cache.Invalidate()
	a.record(c, audit.PostStatus, saved.Slug, map[string]any{"saved": saved.Status, "renamedFrom": original})
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, saved)
	}
	return redirectMsg(c, "/admin/blog/"+saved.Slug+"/", "Post saved.")
}

func (a *App) handleAdminBlogDelete(c echo.Context) error {
	name := c.Param("slug")
	if err := a.Blog.Delete(c.Request().Context(), name); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.record(c, audit.PostStatus, name, map[string]any{"deleted": true})
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return redirectMsg(c, "/admin/blog/", "Post deleted.")
}

// handleAdminBlogAction applies a lifecycle action or toggles a flag.
func (a *App) handleAdminBlogAction(c echo.Context) error {
	ctx := c.Request().Context()
	name, action := c.Param("slug"), c.Param("action")
	details := map[string]any{"action": action}
	var err error
	switch action {
	case "publish":
		err = a.Blog.Publish(ctx, name)
	case "unpublish":
		err = a.Blog.Unpublish(ctx, name)
	case "archive":
		err = a.Blog.Archive(ctx, name)
	case "schedule":
		var at time.Time
		at, err = a.parseScheduleTime(c, c.FormValue("at"))
		if err == nil {
			err = a.Blog.Schedule(ctx, name, at)
			details["at"] = at
		}
	case "featured":
		details["featured"], err = a.Blog.ToggleFeatured(ctx, name)
	case "pinned":
		details["pinned"], err = a.Blog.TogglePinned(ctx, name)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown post action")
	}
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.record(c, audit.PostStatus, name, details)
	if wantsJSON(c) {
		post, err := a.Blog.GetAny(ctx, name)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, post)
	}
	return redirectMsg(c, "/admin/blog/", "Post updated.")
}

// parseScheduleTime reads a datetime-local value in the configured site
// timezone.
func (a *App) parseScheduleTime(c echo.Context, v string) (time.Time, error) {
	loc, err := time.LoadLocation(a.Settings.String(c.Request().Context(), "general.timezone", "UTC"))
	if err != nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(scheduleLayout, v, loc)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid schedule time")
	}
	return at, nil
}

func (a *App) handleMedia(c echo.Context) error {
	kind := media.Kind(c.QueryParam("kind"))
	if kind != "" && !kind.Valid() {
		return media.ErrInvalidKind
	}
	images, err := a.Media.List(c.Request().Context(), kind)
	if err != nil {
		return err
	}
	return respond(c, views.MediaPage{Page: a.page(c, "media"), Images: images, Kind: kind}, a.Views.AdminMedia)
}

// handleMediaUpload stores the multipart "image" field as kind (post by
// default).
func (a *App) handleMediaUpload(c echo.Context) error {
	kind := media.Kind(c.FormValue("kind"))
	if kind == "" {
		kind = media.KindPost
	}
	img, err := a.saveUpload(c, "image", kind)
	if err != nil {
		return err
	}
	a.record(c, audit.MediaChange, img.Filename, map[string]any{"uploaded": img.OriginalName, "kind": img.Kind})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, img)
	}
	return redirectMsg(c, "/admin/media/", "Image uploaded.")
}

// saveUpload reads the form file field into the media library.
func (a *App) saveUpload(c echo.Context, field string, kind media.Kind) (media.Image, error) {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, media.MaxUploadSize+1<<20)
	fh, err := c.FormFile(field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return media.Image{}, media.ErrTooLarge
		}
		return media.Image{}, echo.NewHTTPError(http.StatusBadRequest, "no image uploaded")
	}
	if fh.Size > media.MaxUploadSize {
		return media.Image{}, media.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return media.Image{}, err
	}
	defer f.Close()
	img, err := a.Media.Save(c.Request().Context(), f, fh.Filename, kind)
	if err != nil {
		return media.Image{}, err
	}
	a.Logger.Info("image uploaded", zap.String("filename", img.Filename), zap.String("kind", string(kind)), zap.Int("size", img.Size))
	return img, nil
}

func (a *App) handleMediaDelete(c echo.Context) error {
	name := c.Param("filename")
	if err := a.Media.Delete(c.Request().Context(), name); err != nil {
		return err
	}
	a.record(c, audit.MediaChange, name, map[string]any{"deleted": true})
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return redirectMsg(c, "/admin/media/", "Image deleted.")
}

func (a *App) handleWizardAnalytics(c echo.Context) error {
	ctx := c.Request().Context()
	data := views.WizardPage{Page: a.page(c, "wizard")}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Analytics, err = a.Wizard.Analytics(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Websites, data.Paging, err = a.Wizard.ListWebsites(gctx, paging.Parse(c.QueryParams(), websitePageSize, maxPageSize))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminWizard)
}
