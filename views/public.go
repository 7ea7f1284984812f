package views

import (
	"fmt"
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/markdown"
)

func postCard(h *w, p blog.Post) {
	h.raw(`<article class="post-card">`)
	if src := markdown.SafeURL(p.CoverImage); src != "" {
		h.rawf(`<img src="%s" alt="" loading="lazy">`, src)
	}
	h.rawf(`<h3><a href="%s">`, attr(p.Link()))
	h.text(p.Title)
	h.raw(`</a></h3><p class="meta">`)
	h.text(p.Date())
	if p.Category != "" {
		h.text(" · " + p.Category)
	}
	h.raw(`</p>`)
	h.el("p", `class="summary"`, p.Summary)
	h.raw(`<ul class="tags">`)
	for _, t := range p.Tags {
		h.rawf(`<li><a class="%s" href="/blog/?tag=%s">`, TagClass(false), attr(url.QueryEscape(t)))
		h.text(t)
		h.raw(`</a></li>`)
	}
	h.raw(`</ul></article>`)
}

func templateCard(h *w, t catalog.Template) {
	h.rawf(`<article class="template-card"><h3><a href="/templates/%s/">`, attr(PathEscape(t.Slug)))
	h.text(t.Name)
	h.raw(`</a></h3>`)
	h.el("p", "", t.Description)
	price := "Free"
	if t.Price > 0 {
		price = billing.FormatMoney(int64(t.Price)*100, "USD")
	}
	h.el("p", `class="meta"`, fmt.Sprintf("%s · ★ %.1f (%d) · %d downloads", price, t.Rating, t.ReviewCount, t.Downloads))
	h.raw(`</article>`)
}

func freelancerCard(h *w, f catalog.Freelancer) {
	h.rawf(`<article class="freelancer-card"><h3><a href="/freelancers/%s/">`, attr(PathEscape(f.Slug)))
	h.text(f.Name)
	h.raw(`</a>`)
	if f.Verified {
		h.raw(` <span class="badge">Verified</span>`)
	}
	if f.TopRated {
		h.raw(` <span class="badge badge-top">Top rated</span>`)
	}
	h.raw(`</h3>`)
	h.el("p", "", f.Title+" · "+f.Location)
	h.el("p", `class="meta"`, fmt.Sprintf("$%d/hr · ★ %.1f (%d) · %d projects", f.HourlyRate, f.Rating, f.ReviewCount, f.CompletedProjects))
	h.el("p", `class="skills"`, joinStrings(f.Skills))
	h.raw(`</article>`)
}

// Home renders the marketing home page.
func Home(p HomePage) templ.Component {
	return Layout(p.Page, p.Site.Name, component(func(h *w) {
		h.rawf(`<script type="application/ld+json">%s</script>`, WebsiteJsonLD(p.Site))
		h.raw(`<section class="hero">`)
		h.el("h1", "", p.Site.Name)
		h.el("p", "", p.Site.Description)
		h.raw(`<a class="button" href="/console/onboarding/">Create your website</a></section>`)
		if len(p.Featured) > 0 {
			h.raw(`<section><h2>Featured</h2><div class="grid">`)
			for _, post := range p.Featured {
				postCard(h, post)
			}
			h.raw(`</div></section>`)
		}
		h.raw(`<section><h2>Latest posts</h2><div class="grid">`)
		for _, post := range p.Latest {
			postCard(h, post)
		}
		h.raw(`</div><ul class="categories">`)
		for _, c := range p.Categories {
			h.rawf(`<li><a href="/blog/?category=%s">%s</a> (%d)</li>`, attr(url.QueryEscape(c.Name)), attr(c.Name), c.Count)
		}
		h.raw(`</ul></section><section><h2>Popular templates</h2><div class="grid">`)
		for _, t := range p.Templates {
			templateCard(h, t)
		}
		h.raw(`</div><a href="/templates/">Browse all templates</a></section>`)
	}))
}

// BlogList renders the post list, filtered by tag or category.
func BlogList(p BlogListPage) templ.Component {
	return Layout(p.Page, "Blog", component(func(h *w) {
		h.raw(`<nav class="tag-filter"><a class="` + TagClass(p.ActiveTag == "") + `" href="/blog/">All</a>`)
		for _, t := range p.Tags {
			h.rawf(`<a class="%s" hx-get="/blog/?tag=%s" hx-target="#posts" hx-select="#posts" href="/blog/?tag=%s">`,
				TagClass(t == p.ActiveTag), attr(url.QueryEscape(t)), attr(url.QueryEscape(t)))
			h.text(t)
			h.raw(`</a>`)
		}
		h.raw(`</nav><div id="posts" class="grid">`)
		if len(p.Posts) == 0 {
			h.raw(`<p class="empty">No posts yet.</p>`)
		}
		for _, post := range p.Posts {
			postCard(h, post)
		}
		h.raw(`</div>`)
	}))
}

// Post renders a single post.
func Post(p PostPage) templ.Component {
	return Layout(p.Page, p.Post.Title, component(func(h *w) {
		h.rawf(`<script type="application/ld+json">%s</script>`, BlogPostingJsonLD(p.Site, p.Post))
		h.raw(`<article class="post">`)
		h.el("h1", "", p.Post.Title)
		h.el("p", `class="meta"`, fmt.Sprintf("%s · %s · %d views", p.Post.Date(), p.Post.Category, p.Post.Views))
		if src := markdown.SafeURL(p.Post.CoverImage); src != "" {
			h.rawf(`<img class="cover" src="%s" alt="">`, src)
		}
		h.raw(`<div class="prose">`)
		h.raw(p.HTML)
		h.raw(`</div></article>`)
		if len(p.Related) > 0 {
			h.raw(`<aside class="related"><h2>Related posts</h2><div class="grid">`)
			for _, r := range p.Related {
				postCard(h, r)
			}
			h.raw(`</div></aside>`)
		}
	}))
}

var templateSorts = []string{catalog.SortPopular, catalog.SortNewest, catalog.SortRating, catalog.SortPriceAsc, catalog.SortPriceDesc}

var freelancerSorts = []string{catalog.SortRecommended, catalog.SortRating, catalog.SortReviews, catalog.SortPriceAsc, catalog.SortPriceDesc}

func categoryLinks(h *w, base string, cats []catalog.Category, counts map[string]int, active string) {
	h.raw(`<nav class="categories">`)
	all := "category"
	if active == "" || active == "all" {
		all += " active"
	}
	h.rawf(`<a class="%s" href="%s">All (%d)</a>`, all, base, counts["all"])
	for _, c := range cats {
		if c.ID == "all" {
			continue
		}
		cls := "category"
		if c.ID == active {
			cls += " active"
		}
		h.rawf(`<a class="%s" href="%s?category=%s">%s (%d)</a>`, cls, base, attr(url.QueryEscape(c.ID)), attr(c.Name), counts[c.ID])
	}
	h.raw(`</nav>`)
}

// Templates renders the template catalog with its filters.
func Templates(p TemplatesPage) templ.Component {
	return Layout(p.Page, "Templates", component(func(h *w) {
		categoryLinks(h, "/templates/", p.Categories, p.Result.Categories, p.Query.Category)
		h.raw(`<form class="filters" method="get" action="/templates/" hx-get="/templates/" hx-target="#results" hx-select="#results" hx-trigger="change, submit">`)
		h.rawf(`<input type="hidden" name="category" value="%s">`, attr(p.Query.Category))
		h.rawf(`<input type="search" name="q" placeholder="Search templates" value="%s">`, attr(p.Query.Search))
		selectField(h, "price", []string{catalog.PriceFree, catalog.PricePremium}, p.Query.Price, "Any price")
		selectField(h, "tags", p.Result.Tags, joinStrings(p.Query.Tags), "Any tag")
		selectField(h, "sort", templateSorts, p.Query.Sort, "")
		h.raw(`<button type="submit">Filter</button></form><div id="results"><div class="grid">`)
		if len(p.Result.Items) == 0 {
			h.raw(`<p class="empty">No templates match these filters.</p>`)
		}
		for _, t := range p.Result.Items {
			templateCard(h, t)
		}
		h.raw(`</div>`)
		pager(h, "/templates/", p.Filters(), p.Result.Page)
		h.raw(`</div>`)
	}))
}

// Template renders one template with related ones.
func Template(p TemplatePage) templ.Component {
	t := p.Template
	return Layout(p.Page, t.Name, component(func(h *w) {
		h.raw(`<article class="template">`)
		h.el("h1", "", t.Name)
		h.el("p", "", t.Description)
		h.raw(`<ul class="features">`)
		for _, f := range t.Features {
			h.el("li", "", f)
		}
		h.raw(`</ul>`)
		h.el("p", `class="meta"`, fmt.Sprintf("★ %.1f from %d reviews · %d downloads · %s", t.Rating, t.ReviewCount, t.Downloads, joinStrings(t.Tags)))
		h.rawf(`<a class="button" href="/console/onboarding/?template=%s">Use this template</a></article>`, attr(url.QueryEscape(t.Slug)))
		if len(p.Related) > 0 {
			h.raw(`<aside class="related"><h2>You may also like</h2><div class="grid">`)
			for _, r := range p.Related {
				templateCard(h, r)
			}
			h.raw(`</div></aside>`)
		}
	}))
}

// Freelancers renders the freelancer marketplace with its filters.
func Freelancers(p FreelancersPage) templ.Component {
	return Layout(p.Page, "Freelancers", component(func(h *w) {
		categoryLinks(h, "/freelancers/", p.Categories, p.Result.Categories, p.Query.Category)
		h.raw(`<form class="filters" method="get" action="/freelancers/" hx-get="/freelancers/" hx-target="#results" hx-select="#results" hx-trigger="change, submit">`)
		h.rawf(`<input type="hidden" name="category" value="%s">`, attr(p.Query.Category))
		h.rawf(`<input type="search" name="q" placeholder="Search freelancers" value="%s">`, attr(p.Query.Search))
		selectField(h, "skills", p.Result.Skills, joinStrings(p.Query.Skills), "Any skill")
		check := func(name, label string, on bool) {
			checked := ""
			if on {
				checked = " checked"
			}
			h.rawf(`<label><input type="checkbox" name="%s" value="true"%s> %s</label>`, name, checked, attr(label))
		}
		check("verified", "Verified", p.Query.VerifiedOnly)
		check("topRated", "Top rated", p.Query.TopRatedOnly)
		selectField(h, "sort", freelancerSorts, p.Query.Sort, "")
		h.raw(`<button type="submit">Filter</button></form><div id="results"><div class="grid">`)
		if len(p.Result.Items) == 0 {
			h.raw(`<p class="empty">No freelancers match these filters.</p>`)
		}
		for _, f := range p.Result.Items {
			freelancerCard(h, f)
		}
		h.raw(`</div>`)
		pager(h, "/freelancers/", p.Filters(), p.Result.Page)
		h.raw(`</div>`)
	}))
}

// Freelancer renders a freelancer profile.
func Freelancer(p FreelancerPage) templ.Component {
	f := p.Freelancer
	return Layout(p.Page, f.Name, component(func(h *w) {
		h.raw(`<article class="freelancer">`)
		freelancerCard(h, f)
		h.el("p", `class="bio"`, f.Bio)
		h.el("p", "", "Languages: "+joinStrings(f.Languages))
		h.el("p", "", "Usually responds "+f.ResponseTime)
		h.raw(`</article>`)
	}))
}

// Filters returns the request query without the page number.
func (p Page) Filters() url.Values {
	q := url.Values{}
	for k, v := range p.Query {
		if k != "page" {
			q[k] = v
		}
	}
	return q
}
