package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/slug"
)

// Store is the SQLite-backed product catalog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the product tables.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("products schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS product_categories (
    id TEXT PRIMARY KEY,
    parent_id TEXT REFERENCES product_categories(id),
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    category_id TEXT REFERENCES product_categories(id),
    summary TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    base_price_cents INTEGER NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    tax_rate REAL NOT NULL DEFAULT 0,
    featured INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_status ON products(status);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS product_variants (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    sku TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    price_cents INTEGER NOT NULL,
    currency TEXT NOT NULL,
    stock_type TEXT NOT NULL,
    stock_qty INTEGER NOT NULL DEFAULT 0,
    billing_period TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL DEFAULT 0,
    is_default INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_product_variants_product ON product_variants(product_id, sort_order);
`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// makeSlug returns the explicit slug when given, checked against the
// allowed pattern, or one derived from name.
func makeSlug(explicit, name string) (string, bool) {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		explicit = slug.Make(name)
	}
	return explicit, len(explicit) >= 2 && slugPattern.MatchString(explicit)
}

func validName(name string, max int) bool {
	n := utf8.RuneCountInString(name)
	return n >= 2 && n <= max
}

// Categories

const categoryColumns = `c.id, c.parent_id, c.name, c.slug, c.description, c.sort_order, c.active,
    (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)`

func scanCategory(row scanner) (Category, error) {
	var c Category
	var parent sql.NullString
	var active int
	if err := row.Scan(&c.ID, &parent, &c.Name, &c.Slug, &c.Description, &c.SortOrder, &active, &c.ProductCount); err != nil {
		return Category{}, err
	}
	c.ParentID = parent.String
	c.Active = active == 1
	return c, nil
}

func (s *Store) category(ctx context.Context, q querier, id string) (Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM product_categories c WHERE c.id = ?`, id))
	return c, database.NotFound(err, ErrNotFound)
}

// Category returns a category without its children.
func (s *Store) Category(ctx context.Context, id string) (Category, error) {
	return s.category(ctx, s.db, id)
}

func (s *Store) checkCategory(ctx context.Context, id string, in CategoryInput) (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if !validName(in.Name, 100) {
		return in, ErrInvalidCategory
	}
	var ok bool
	if in.Slug, ok = makeSlug(in.Slug, in.Name); !ok {
		return in, ErrInvalidCategory
	}
	if in.ParentID == "" {
		return in, nil
	}
	// Walk up from the new parent; reaching id means a cycle.
	for cur := in.ParentID; cur != ""; {
		if cur == id {
			return in, ErrCategoryCycle
		}
		parent, err := s.category(ctx, s.db, cur)
		if errors.Is(err, ErrNotFound) {
			return in, fmt.Errorf("%w: unknown parent", ErrInvalidCategory)
		}
		if err != nil {
			return in, err
		}
		cur = parent.ParentID
	}
	return in, nil
}

// CreateCategory adds a category, optionally under a parent.
func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	id := uuid.NewString()
	in, err := s.checkCategory(ctx, id, in)
	if err != nil {
		return Category{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO product_categories (id, parent_id, name, slug, description, sort_order, active) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(in.ParentID), in.Name, in.Slug, strings.TrimSpace(in.Description), in.SortOrder, database.Bool(in.Active))
	if database.IsUniqueViolation(err) {
		return Category{}, ErrSlugTaken
	}
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return s.Category(ctx, id)
}

// UpdateCategory replaces a category's fields. Moving a category below one
// of its own descendants is rejected.
func (s *Store) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	if _, err := s.Category(ctx, id); err != nil {
		return Category{}, err
	}
	in, err := s.checkCategory(ctx, id, in)
	if err != nil {
		return Category{}, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE product_categories SET parent_id = ?, name = ?, slug = ?, description = ?, sort_order = ?, active = ? WHERE id = ?`,
		nullString(in.ParentID), in.Name, in.Slug, strings.TrimSpace(in.Description), in.SortOrder, database.Bool(in.Active), id)
	if database.IsUniqueViolation(err) {
		return Category{}, ErrSlugTaken
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	return s.Category(ctx, id)
}

// DeleteCategory removes an empty category. Categories that still hold
// products or subcategories are kept.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.Category(ctx, id)
	if err != nil {
		return err
	}
	var children int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_categories WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return err
	}
	if c.ProductCount > 0 || children > 0 {
		return ErrCategoryInUse
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM product_categories WHERE id = ?`, id)
	return err
}

// CategoryTree returns the root categories with their descendants nested,
// each level ordered by sort order then name. Inactive categories and their
// subtrees are left out unless includeInactive is set.
func (s *Store) CategoryTree(ctx context.Context, includeInactive bool) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM product_categories c ORDER BY c.sort_order, c.name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	byParent := make(map[string][]Category)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		if !c.Active && !includeInactive {
			continue
		}
		byParent[c.ParentID] = append(byParent[c.ParentID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var build func(parent string) []Category
	build = func(parent string) []Category {
		level := byParent[parent]
		out := make([]Category, len(level))
		for i, c := range level {
			c.Children = build(c.ID)
			out[i] = c
		}
		return out
	}
	tree := build("")
	if tree == nil {
		tree = []Category{}
	}
	return tree, nil
}

// Flatten lists a tree depth first, paired with each category's depth.
func Flatten(tree []Category) []Indented {
	var out []Indented
	var walk func([]Category, int)
	walk = func(cs []Category, depth int) {
		for _, c := range cs {
			out = append(out, Indented{Category: c, Depth: depth})
			walk(c.Children, depth+1)
		}
	}
	walk(tree, 0)
	return out
}

// Indented is a category with its depth in the tree.
type Indented struct {
	Category
	Depth int `json:"depth"`
}

// Products

const productColumns = `p.id, p.type, p.status, p.name, p.slug, p.category_id, p.summary, p.description, p.tags,
    p.base_price_cents, p.currency, p.tax_rate, p.featured, p.created_at, p.updated_at`

func scanProduct(row scanner, extra ...any) (Product, error) {
	var p Product
	var typ, status, tags, created, updated string
	var category sql.NullString
	var featured int
	dest := append([]any{&p.ID, &typ, &status, &p.Name, &p.Slug, &category, &p.Summary, &p.Description, &tags,
		&p.BasePriceCents, &p.Currency, &p.TaxRate, &featured, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Product{}, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return Product{}, fmt.Errorf("decode tags of %s: %w", p.Slug, err)
	}
	p.Type = Type(typ)
	p.Status = Status(status)
	p.CategoryID = category.String
	p.Featured = featured == 1
	p.CreatedAt = database.ParseTime(created)
	p.UpdatedAt = database.ParseTime(updated)
	return p, nil
}

func cleanTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) checkProduct(ctx context.Context, in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if !in.Type.Valid() || !validName(in.Name, 200) || in.BasePriceCents < 0 || in.TaxRate < 0 || in.TaxRate > 100 {
		return in, ErrInvalidProduct
	}
	in.Summary = strings.TrimSpace(in.Summary)
	if utf8.RuneCountInString(in.Summary) > 300 {
		return in, fmt.Errorf("%w: summary is longer than 300 characters", ErrInvalidProduct)
	}
	var ok bool
	if in.Slug, ok = makeSlug(in.Slug, in.Name); !ok {
		return in, fmt.Errorf("%w: slug may only hold lowercase letters, digits and hyphens", ErrInvalidProduct)
	}
	if in.Currency == "" {
		in.Currency = "EUR"
	}
	cur, err := billing.NormalizeCurrency(in.Currency)
	if err != nil {
		return in, err
	}
	in.Currency = cur
	if in.CategoryID != "" {
		if _, err := s.Category(ctx, in.CategoryID); err != nil {
			return in, fmt.Errorf("%w: unknown category", ErrInvalidProduct)
		}
	}
	in.Tags = cleanTags(in.Tags)
	return in, nil
}

// Create adds a product as a draft.
func (s *Store) Create(ctx context.Context, in ProductInput) (Product, error) {
	in, err := s.checkProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	tags, err := json.Marshal(in.Tags)
	if err != nil {
		return Product{}, err
	}
	now := database.FormatTime(s.now())
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `INSERT INTO products (id, type, status, name, slug, category_id, summary, description, tags, base_price_cents, currency, tax_rate, featured, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Type, StatusDraft, in.Name, in.Slug, nullString(in.CategoryID), in.Summary, strings.TrimSpace(in.Description), string(tags),
		in.BasePriceCents, in.Currency, in.TaxRate, database.Bool(in.Featured), now, now)
	if database.IsUniqueViolation(err) {
		return Product{}, ErrSlugTaken
	}
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return s.Get(ctx, id)
}

// Update replaces a product's fields. The status is left alone.
func (s *Store) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	in, err := s.checkProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	tags, err := json.Marshal(in.Tags)
	if err != nil {
		return Product{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET type = ?, name = ?, slug = ?, category_id = ?, summary = ?, description = ?, tags = ?,
    base_price_cents = ?, currency = ?, tax_rate = ?, featured = ?, updated_at = ? WHERE id = ?`,
		in.Type, in.Name, in.Slug, nullString(in.CategoryID), in.Summary, strings.TrimSpace(in.Description), string(tags),
		in.BasePriceCents, in.Currency, in.TaxRate, database.Bool(in.Featured), database.FormatTime(s.now()), id)
	if database.IsUniqueViolation(err) {
		return Product{}, ErrSlugTaken
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Product{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// SetStatus moves a product between draft, active and archived.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET status = ?, updated_at = ? WHERE id = ?`, status, database.FormatTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a product and its variants.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a product by ID or slug with all its variants.
func (s *Store) Get(ctx context.Context, idOrSlug string) (Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ? OR p.slug = ?`, idOrSlug, idOrSlug))
	if err != nil {
		return Product{}, database.NotFound(err, ErrNotFound)
	}
	if p.Variants, err = s.Variants(ctx, p.ID); err != nil {
		return Product{}, err
	}
	p.VariantCount = len(p.Variants)
	return p, nil
}

// List returns one page of products, featured first then newest, with the
// cheapest active variant price and the variant count filled in.
func (s *Store) List(ctx context.Context, f Filter, pg paging.Page) ([]Product, paging.Page, error) {
	where := []string{"1=1"}
	var args []any
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "p.type = ?")
		args = append(args, f.Type)
	}
	if f.CategoryID != "" {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Featured {
		where = append(where, "p.featured = 1")
	}
	if f.Search != "" {
		where = append(where, `(lower(p.name) LIKE ? ESCAPE '\' OR p.slug LIKE ? ESCAPE '\' OR p.tags LIKE ? ESCAPE '\')`)
		pat := database.LikePattern(f.Search)
		args = append(args, pat, pat, pat)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, pg, fmt.Errorf("count products: %w", err)
	}
	pg = pg.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+`,
    COALESCE((SELECT MIN(v.price_cents) FROM product_variants v WHERE v.product_id = p.id AND v.active = 1), 0),
    (SELECT COUNT(*) FROM product_variants v WHERE v.product_id = p.id)
FROM products p WHERE `+clause+` ORDER BY p.featured DESC, p.created_at DESC, p.slug LIMIT ? OFFSET ?`,
		append(args, pg.Size, pg.Offset())...)
	if err != nil {
		return nil, pg, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		var p Product
		var lowest int64
		var count int
		if p, err = scanProduct(rows, &lowest, &count); err != nil {
			return nil, pg, err
		}
		p.LowestPriceCents = lowest
		p.VariantCount = count
		out = append(out, p)
	}
	return out, pg, rows.Err()
}

// CountByStatus counts products per status. Every status is present.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	out := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM products GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

// Tags returns every tag used by a product, sorted.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[string]bool)
	out := []string{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out, rows.Err()
}
