package views

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/products"
)

// categoryOptions writes a parent/category select with the tree indented.
func categoryOptions(h *w, name string, tree []products.Category, selected, skip, none string) {
	h.rawf(`<select name="%s"><option value="">%s</option>`, attr(name), attr(none))
	for _, c := range products.Flatten(tree) {
		if c.ID == skip {
			continue
		}
		sel := ""
		if c.ID == selected {
			sel = " selected"
		}
		h.rawf(`<option value="%s"%s>`, attr(c.ID), sel)
		h.text(strings.Repeat("– ", c.Depth) + c.Name)
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}

func checkbox(h *w, name, label string, checked bool) {
	on := ""
	if checked {
		on = " checked"
	}
	h.rawf(`<label class="check"><input type="checkbox" name="%s" value="1"%s> `, attr(name), on)
	h.text(label)
	h.raw(`</label>`)
}

func cents(c int64) string { return fmt.Sprintf("%d.%02d", c/100, c%100) }

// AdminProducts renders the product list, the category tree and the create
// forms.
func AdminProducts(p ProductsPage) templ.Component {
	return AdminLayout(p.Page, "Products", component(func(h *w) {
		cards := make([]stat, 0, len(products.Statuses))
		for _, s := range products.Statuses {
			cards = append(cards, stat{string(s), itoa(p.Counts[s]), ""})
		}
		statCards(h, cards...)

		h.raw(`<form class="filters" method="get" action="/admin/products/">`)
		selectField(h, "status", strs(products.Statuses), string(p.Filter.Status), "All statuses")
		selectField(h, "type", strs(products.Types), string(p.Filter.Type), "All types")
		categoryOptions(h, "category", p.Categories, p.Filter.CategoryID, "", "All categories")
		h.rawf(`<input type="search" name="q" placeholder="Name, slug or tag" value="%s">`, attr(p.Filter.Search))
		h.raw(`<button type="submit">Filter</button></form>`)
		table(h, []string{"Name", "Type", "Status", "From", "Variants", "Updated"}, len(p.Products), func(i int) {
			pr := p.Products[i]
			h.rawf(`<td><a href="/admin/products/%s/">`, attr(url.PathEscape(pr.ID)))
			h.text(pr.Name)
			h.raw(`</a>`)
			if pr.Featured {
				h.raw(` <span class="badge">featured</span>`)
			}
			h.raw(`</td>`)
			td(h, string(pr.Type))
			h.el("td", `class="status-`+strings.ToLower(string(pr.Status))+`"`, string(pr.Status))
			price := pr.LowestPriceCents
			if pr.VariantCount == 0 {
				price = pr.BasePriceCents
			}
			td(h, billing.FormatMoney(price, pr.Currency))
			td(h, itoa(pr.VariantCount))
			td(h, formatDate(pr.UpdatedAt))
		})
		pager(h, "/admin/products/", p.Filters(), p.Paging)

		h.raw(`<h2>New product</h2><form method="post" action="/admin/products/" class="inline-form">`)
		csrfField(h, p.CSRF)
		selectField(h, "type", strs(products.Types), string(products.TypeDigital), "")
		h.raw(`<input name="name" placeholder="Name" required minlength="2"><input name="slug" placeholder="slug (optional)">`)
		categoryOptions(h, "category", p.Categories, "", "", "No category")
		h.raw(`<input name="basePrice" placeholder="Base price" inputmode="decimal"><input name="currency" value="EUR" size="3">` +
			`<button type="submit">Create</button></form>`)

		h.raw(`<h2>Categories</h2>`)
		flat := products.Flatten(p.Categories)
		table(h, []string{"Name", "Slug", "Products", "Active", ""}, len(flat), func(i int) {
			c := flat[i]
			td(h, strings.Repeat("– ", c.Depth)+c.Name)
			td(h, c.Slug)
			td(h, itoa(c.ProductCount))
			td(h, map[bool]string{true: "yes", false: "no"}[c.Active])
			h.raw(`<td>`)
			postButton(h, p.CSRF, "/admin/products/categories/"+url.PathEscape(c.ID)+"/", "DELETE", "Delete", "danger")
			h.raw(`</td>`)
		})
		h.raw(`<form method="post" action="/admin/products/categories/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input name="name" placeholder="Category name" required minlength="2">`)
		categoryOptions(h, "parent", p.Categories, "", "", "Top level")
		h.raw(`<input type="number" name="sortOrder" value="0">`)
		checkbox(h, "active", "Active", true)
		h.raw(`<button type="submit">Add category</button></form>`)
	}))
}

func variantFields(h *w, v products.Variant) {
	h.rawf(`<input name="sku" placeholder="SKU" value="%s" required><input name="name" placeholder="Name" value="%s" required>`, attr(v.SKU), attr(v.Name))
	h.rawf(`<input name="price" placeholder="Price" inputmode="decimal" value="%s">`, attr(cents(v.PriceCents)))
	stock := string(v.StockType)
	if stock == "" {
		stock = string(products.StockUnlimited)
	}
	selectField(h, "stockType", strs(products.StockTypes), stock, "")
	h.rawf(`<input type="number" name="stockQty" min="0" value="%d">`, v.StockQty)
	selectField(h, "billingPeriod", products.BillingPeriods, v.BillingPeriod, "One-off")
	h.rawf(`<input type="number" name="sortOrder" value="%d">`, v.SortOrder)
	checkbox(h, "default", "Default", v.Default)
	checkbox(h, "active", "Active", v.Active || v.ID == "")
}

// AdminProduct renders the product editor, its lifecycle controls and the
// variant table.
func AdminProduct(p ProductPage) templ.Component {
	pr := p.Product
	base := "/admin/products/" + url.PathEscape(pr.ID) + "/"
	return AdminLayout(p.Page, pr.Name, component(func(h *w) {
		h.el("p", `class="meta"`, fmt.Sprintf("%s · %s · %s · updated %s", pr.Slug, pr.Type, pr.Status, formatDateTime(pr.UpdatedAt)))
		h.raw(`<div class="actions">`)
		selectForm(h, p.CSRF, base+"status/", "status", strs(products.Statuses), string(pr.Status))
		postButton(h, p.CSRF, base, "DELETE", "Delete", "danger")
		h.raw(`</div>`)

		h.rawf(`<form method="post" action="%s" class="editor">`, attr(base))
		csrfField(h, p.CSRF)
		h.raw(`<label>Type `)
		selectField(h, "type", strs(products.Types), string(pr.Type), "")
		h.raw(`</label>`)
		h.rawf(`<label>Name <input name="name" value="%s" required></label>`, attr(pr.Name))
		h.rawf(`<label>Slug <input name="slug" value="%s" pattern="[a-z0-9-]+"></label>`, attr(pr.Slug))
		h.raw(`<label>Category `)
		categoryOptions(h, "category", p.Categories, pr.CategoryID, "", "No category")
		h.raw(`</label>`)
		h.rawf(`<label>Summary <input name="summary" value="%s" maxlength="300"></label>`, attr(pr.Summary))
		h.raw(`<label>Description <textarea name="description" rows="8">`)
		h.text(pr.Description)
		h.raw(`</textarea></label>`)
		h.rawf(`<label>Tags <input name="tags" value="%s"></label>`, attr(joinStrings(pr.Tags)))
		h.rawf(`<label>Base price <input name="basePrice" inputmode="decimal" value="%s"></label>`, attr(cents(pr.BasePriceCents)))
		h.rawf(`<label>Currency <input name="currency" value="%s" size="3"></label>`, attr(pr.Currency))
		h.rawf(`<label>Tax rate %% <input name="taxRate" inputmode="decimal" value="%g"></label>`, pr.TaxRate)
		checkbox(h, "featured", "Featured", pr.Featured)
		h.raw(`<button type="submit">Save</button></form>`)

		h.raw(`<h2>Variants</h2>`)
		table(h, []string{"Variant", ""}, len(pr.Variants), func(i int) {
			v := pr.Variants[i]
			vb := base + "variants/" + url.PathEscape(v.ID) + "/"
			h.rawf(`<td><form method="post" action="%s" class="inline-form">`, attr(vb))
			csrfField(h, p.CSRF)
			variantFields(h, v)
			h.raw(`<button type="submit">Save</button></form></td><td>`)
			postButton(h, p.CSRF, vb, "DELETE", "Delete", "danger")
			h.raw(`</td>`)
		})
		h.rawf(`<form method="post" action="%svariants/" class="inline-form">`, attr(base))
		csrfField(h, p.CSRF)
		variantFields(h, products.Variant{})
		h.raw(`<button type="submit">Add variant</button></form>`)
	}))
}
