package views

import "github.com/a-h/templ"

var publicNav = []struct{ href, label string }{
	{"/", "Home"},
	{"/blog/", "Blog"},
	{"/templates/", "Templates"},
	{"/freelancers/", "Freelancers"},
	{"/console/onboarding/", "Create a website"},
}

var adminNav = []struct{ key, href, label string }{
	{"overview", "/admin/", "Overview"},
	{"security", "/admin/security/", "Security"},
	{"logs", "/admin/logs/", "Logs"},
	{"system", "/admin/system/", "System"},
	{"users", "/admin/users/", "Users"},
	{"orgs", "/admin/orgs/", "Organizations"},
	{"billing", "/admin/billing/", "Billing"},
	{"products", "/admin/products/", "Products"},
	{"settings", "/admin/settings/", "Settings"},
	{"blog", "/admin/blog/", "Blog"},
	{"media", "/admin/media/", "Media"},
	{"wizard", "/admin/wizard/", "Onboarding"},
}

func head(h *w, p Page, title string) {
	if p.Meta.Title != "" {
		title = p.Meta.Title
	}
	if title != p.Site.Name && p.Site.Name != "" {
		title += " | " + p.Site.Name
	}
	desc := p.Meta.Description
	if desc == "" {
		desc = p.Site.Description
	}
	ogType := p.Meta.OGType
	if ogType == "" {
		ogType = "website"
	}
	h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.el("title", "", title)
	h.rawf(`<meta name="description" content="%s">`, attr(desc))
	h.rawf(`<meta property="og:title" content="%s"><meta property="og:type" content="%s">`, attr(title), attr(ogType))
	if p.Meta.URL != "" {
		h.rawf(`<link rel="canonical" href="%s"><meta property="og:url" content="%s">`, attr(p.Meta.URL), attr(p.Meta.URL))
	}
	h.rawf(`<meta name="csrf-token" content="%s">`, attr(p.CSRF))
	h.raw(`<link rel="alternate" type="application/rss+xml" title="RSS" href="/feed.xml">`)
	h.raw(`<link rel="stylesheet" href="/public/styles.css"><script defer src="/public/htmx.min.js"></script></head>`)
}

// Layout wraps a public page body.
func Layout(p Page, title string, body templ.Component) templ.Component {
	return component(func(h *w) {
		head(h, p, title)
		h.raw(`<body class="site"><header class="site-header"><a class="brand" href="/">`)
		h.text(p.Site.Name)
		h.raw(`</a><nav>`)
		for _, n := range publicNav {
			h.rawf(`<a href="%s">%s</a>`, n.href, attr(n.label))
		}
		h.raw(`</nav></header><main>`)
		flash(h, p.Flash)
		h.component(body)
		h.raw(`</main><footer class="site-footer">`)
		h.text("© " + p.Site.Name)
		h.raw(` · <a href="/feed.xml">RSS</a> · <a href="/sitemap.xml">Sitemap</a></footer></body></html>`)
	})
}

// AdminLayout wraps an admin page body with the admin navigation.
func AdminLayout(p Page, title string, body templ.Component) templ.Component {
	return component(func(h *w) {
		head(h, p, title)
		h.rawf(`<body class="admin" hx-headers='{"X-CSRF-Token": "%s"}'><aside class="admin-nav"><a class="brand" href="/admin/">`, attr(p.CSRF))
		h.text(p.Site.Name)
		h.raw(`</a><nav>`)
		for _, n := range adminNav {
			cls := ""
			if n.key == p.Nav {
				cls = ` class="active"`
			}
			h.rawf(`<a href="%s"%s>%s</a>`, n.href, cls, attr(n.label))
		}
		h.raw(`</nav>`)
		postButton(h, p.CSRF, "/admin/logout/", "", "Log out", "link")
		h.raw(`</aside><main class="admin-main">`)
		h.el("h1", "", title)
		flash(h, p.Flash)
		h.component(body)
		h.raw(`</main></body></html>`)
	})
}

// NotFound renders the 404 page.
func NotFound(p ErrorPage) templ.Component {
	return Layout(p.Page, "Not found", component(func(h *w) {
		h.raw(`<section class="error-page"><h1>404</h1>`)
		h.el("p", "", "The page you are looking for does not exist.")
		h.raw(`<a href="/">Back home</a></section>`)
	}))
}

// ServerError renders every other error status. 5xx pages never show the
// underlying message.
func ServerError(p ErrorPage) templ.Component {
	return Layout(p.Page, "Something went wrong", component(func(h *w) {
		h.rawf(`<section class="error-page"><h1>%d</h1>`, p.Code)
		msg := p.Message
		if msg == "" || p.Code >= 500 {
			msg = "Something went wrong on our side. Please try again in a moment."
		}
		h.el("p", "", msg)
		h.raw(`<a href="/">Back home</a></section>`)
	}))
}

// Maintenance renders the 503 page shown while maintenance mode is on.
func Maintenance(p ErrorPage) templ.Component {
	return Layout(p.Page, "Down for maintenance", component(func(h *w) {
		h.raw(`<section class="error-page"><h1>We'll be right back</h1>`)
		msg := p.Message
		if msg == "" {
			msg = "The site is undergoing scheduled maintenance."
		}
		h.el("p", "", msg)
		h.raw(`</section>`)
	}))
}
