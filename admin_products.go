package panelengine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/products"
	"github.com/eringen/panelengine/views"
)

const productsPath = "/admin/products/"

func productPath(id string) string { return productsPath + id + "/" }

func (a *App) handleProducts(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	data := views.ProductsPage{
		Page: a.page(c, "products"),
		Filter: products.Filter{
			Status:     products.Status(q.Get("status")),
			Type:       products.Type(q.Get("type")),
			CategoryID: q.Get("category"),
			Search:     strings.TrimSpace(q.Get("q")),
			Featured:   q.Get("featured") == "1",
		},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Products, data.Paging, err = a.Products.List(gctx, data.Filter, paging.Parse(q, products.PageSize, maxPageSize))
		return err
	})
	g.Go(func() (err error) {
		data.Counts, err = a.Products.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Categories, err = a.Products.CategoryTree(gctx, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminProducts)
}

func (a *App) handleProduct(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := a.Products.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	tree, err := a.Products.CategoryTree(ctx, true)
	if err != nil {
		return err
	}
	return respond(c, views.ProductPage{Page: a.page(c, "products"), Product: p, Categories: tree}, a.Views.AdminProduct)
}

// formCents reads a decimal money field. An empty field is zero.
func formCents(c echo.Context, name string) (int64, error) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return 0, nil
	}
	return billing.ParseCents(v)
}

// formInt reads an integer field. An empty or malformed field is zero.
func formInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(c.FormValue(name)))
	return n
}

func formBool(c echo.Context, name string) bool {
	switch c.FormValue(name) {
	case "1", "on", "true":
		return true
	}
	return false
}

func productInput(c echo.Context) (products.ProductInput, error) {
	price, err := formCents(c, "basePrice")
	if err != nil {
		return products.ProductInput{}, err
	}
	tax, _ := strconv.ParseFloat(strings.TrimSpace(c.FormValue("taxRate")), 64)
	return products.ProductInput{
		Type:           products.Type(c.FormValue("type")),
		Name:           c.FormValue("name"),
		Slug:           c.FormValue("slug"),
		CategoryID:     c.FormValue("category"),
		Summary:        c.FormValue("summary"),
		Description:    c.FormValue("description"),
		Tags:           strings.Split(c.FormValue("tags"), ","),
		BasePriceCents: price,
		Currency:       c.FormValue("currency"),
		TaxRate:        tax,
		Featured:       formBool(c, "featured"),
	}, nil
}

func (a *App) handleProductCreate(c echo.Context) error {
	in, err := productInput(c)
	if err != nil {
		return err
	}
	p, err := a.Products.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, p.ID, map[string]any{"action": "create", "slug": p.Slug})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, p)
	}
	return redirectMsg(c, productPath(p.ID), "Product created as a draft.")
}

func (a *App) handleProductUpdate(c echo.Context) error {
	in, err := productInput(c)
	if err != nil {
		return err
	}
	p, err := a.Products.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, p.ID, map[string]any{"action": "update", "slug": p.Slug})
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, p)
	}
	return redirectMsg(c, productPath(p.ID), "Product saved.")
}

func (a *App) handleProductStatus(c echo.Context) error {
	id := c.Param("id")
	status := products.Status(c.FormValue("status"))
	if err := a.Products.SetStatus(c.Request().Context(), id, status); err != nil {
		return err
	}
	a.record(c, audit.ProductChange, id, map[string]any{"action": "status", "status": status})
	return redirectMsg(c, productPath(id), "Product is now "+string(status)+".")
}

func (a *App) handleProductDelete(c echo.Context) error {
	id := c.Param("id")
	if err := a.Products.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	a.record(c, audit.ProductChange, id, map[string]any{"action": "delete"})
	return redirectMsg(c, productsPath, "Product deleted.")
}

func variantInput(c echo.Context) (products.VariantInput, error) {
	price, err := formCents(c, "price")
	if err != nil {
		return products.VariantInput{}, err
	}
	return products.VariantInput{
		SKU:           c.FormValue("sku"),
		Name:          c.FormValue("name"),
		PriceCents:    price,
		Currency:      c.FormValue("currency"),
		StockType:     products.StockType(c.FormValue("stockType")),
		StockQty:      formInt(c, "stockQty"),
		BillingPeriod: c.FormValue("billingPeriod"),
		SortOrder:     formInt(c, "sortOrder"),
		Default:       formBool(c, "default"),
		Active:        formBool(c, "active"),
	}, nil
}

func (a *App) handleVariantCreate(c echo.Context) error {
	in, err := variantInput(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	v, err := a.Products.CreateVariant(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, v.ProductID, map[string]any{"action": "variant.create", "sku": v.SKU})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, v)
	}
	return redirectMsg(c, productPath(v.ProductID), "Variant "+v.SKU+" added.")
}

func (a *App) handleVariantUpdate(c echo.Context) error {
	in, err := variantInput(c)
	if err != nil {
		return err
	}
	v, err := a.Products.UpdateVariant(c.Request().Context(), c.Param("id"), c.Param("variant"), in)
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, v.ProductID, map[string]any{"action": "variant.update", "sku": v.SKU})
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, v)
	}
	return redirectMsg(c, productPath(v.ProductID), "Variant "+v.SKU+" saved.")
}

func (a *App) handleVariantDelete(c echo.Context) error {
	id, variant := c.Param("id"), c.Param("variant")
	if err := a.Products.DeleteVariant(c.Request().Context(), id, variant); err != nil {
		return err
	}
	a.record(c, audit.ProductChange, id, map[string]any{"action": "variant.delete", "variant": variant})
	return redirectMsg(c, productPath(id), "Variant deleted.")
}

func categoryInput(c echo.Context) products.CategoryInput {
	return products.CategoryInput{
		ParentID:    c.FormValue("parent"),
		Name:        c.FormValue("name"),
		Slug:        c.FormValue("slug"),
		Description: c.FormValue("description"),
		SortOrder:   formInt(c, "sortOrder"),
		Active:      formBool(c, "active"),
	}
}

func (a *App) handleCategoryCreate(c echo.Context) error {
	cat, err := a.Products.CreateCategory(c.Request().Context(), categoryInput(c))
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, cat.ID, map[string]any{"action": "category.create", "slug": cat.Slug})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, cat)
	}
	return redirectMsg(c, productsPath, "Category "+cat.Name+" created.")
}

func (a *App) handleCategoryUpdate(c echo.Context) error {
	cat, err := a.Products.UpdateCategory(c.Request().Context(), c.Param("id"), categoryInput(c))
	if err != nil {
		return err
	}
	a.record(c, audit.ProductChange, cat.ID, map[string]any{"action": "category.update", "slug": cat.Slug})
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, cat)
	}
	return redirectMsg(c, productsPath, "Category "+cat.Name+" saved.")
}

func (a *App) handleCategoryDelete(c echo.Context) error {
	id := c.Param("id")
	if err := a.Products.DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	a.record(c, audit.ProductChange, id, map[string]any{"action": "category.delete"})
	return redirectMsg(c, productsPath, "Category deleted.")
}
