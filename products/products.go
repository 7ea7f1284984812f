// Package products is the product catalog manager: a category tree, products
// with a draft/active/archived lifecycle and their purchasable variants.
package products

import (
	"errors"
	"regexp"
	"time"
)

// Type is what kind of thing a product sells.
type Type string

const (
	TypeDigital      Type = "DIGITAL"
	TypeSubscription Type = "SUBSCRIPTION"
	TypeBundle       Type = "BUNDLE"
	TypeService      Type = "SERVICE"
)

// Types lists every product type.
var Types = []Type{TypeDigital, TypeSubscription, TypeBundle, TypeService}

func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// Status is a product's lifecycle state. New products start as drafts.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusDraft, StatusActive, StatusArchived}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// StockType says how a variant's availability is counted.
type StockType string

const (
	StockUnlimited StockType = "UNLIMITED"
	StockLimited   StockType = "LIMITED"
	StockCapacity  StockType = "CAPACITY"
)

// StockTypes lists every stock type.
var StockTypes = []StockType{StockUnlimited, StockLimited, StockCapacity}

func (s StockType) Valid() bool {
	for _, v := range StockTypes {
		if s == v {
			return true
		}
	}
	return false
}

// PageSize is the admin product list page size.
const PageSize = 20

var (
	ErrNotFound        = errors.New("products: not found")
	ErrSlugTaken       = errors.New("products: slug already in use")
	ErrSKUTaken        = errors.New("products: SKU already in use")
	ErrInvalidCategory = errors.New("products: invalid category")
	ErrInvalidProduct  = errors.New("products: invalid product")
	ErrInvalidVariant  = errors.New("products: invalid variant")
	ErrInvalidStatus   = errors.New("products: invalid status")
	ErrCategoryInUse   = errors.New("products: category still has products or subcategories")
	ErrCategoryCycle   = errors.New("products: a category cannot be its own ancestor")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Category groups products. Categories form a tree through ParentID.
type Category struct {
	ID           string     `json:"id"`
	ParentID     string     `json:"parentId,omitempty"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description,omitempty"`
	SortOrder    int        `json:"sortOrder"`
	Active       bool       `json:"active"`
	ProductCount int        `json:"productCount"`
	Children     []Category `json:"children,omitempty"`
}

// CategoryInput creates or updates a category. An empty Slug is derived from
// Name.
type CategoryInput struct {
	ParentID    string
	Name        string
	Slug        string
	Description string
	SortOrder   int
	Active      bool
}

// Product is something sold in the catalog.
type Product struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Status         Status    `json:"status"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	CategoryID     string    `json:"categoryId,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Description    string    `json:"description,omitempty"`
	Tags           []string  `json:"tags"`
	BasePriceCents int64     `json:"basePriceCents"`
	Currency       string    `json:"currency"`
	TaxRate        float64   `json:"taxRate"`
	Featured       bool      `json:"featured"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Filled by List: the cheapest active variant and the variant count.
	LowestPriceCents int64 `json:"lowestPriceCents,omitempty"`
	VariantCount     int   `json:"variantCount"`

	// Filled by Get.
	Variants []Variant `json:"variants,omitempty"`
}

// ProductInput creates or updates a product. An empty Slug is derived from
// Name and an empty Currency defaults to EUR.
type ProductInput struct {
	Type           Type
	Name           string
	Slug           string
	CategoryID     string
	Summary        string
	Description    string
	Tags           []string
	BasePriceCents int64
	Currency       string
	TaxRate        float64
	Featured       bool
}

// Variant is a purchasable option of a product, identified by its SKU.
type Variant struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"priceCents"`
	Currency      string    `json:"currency"`
	StockType     StockType `json:"stockType"`
	StockQty      int       `json:"stockQty"`
	BillingPeriod string    `json:"billingPeriod,omitempty"`
	SortOrder     int       `json:"sortOrder"`
	Default       bool      `json:"default"`
	Active        bool      `json:"active"`
}

// VariantInput creates or updates a variant.
type VariantInput struct {
	SKU           string
	Name          string
	PriceCents    int64
	Currency      string
	StockType     StockType
	StockQty      int
	BillingPeriod string
	SortOrder     int
	Default       bool
	Active        bool
}

// Filter narrows List. Zero values mean no filter.
type Filter struct {
	Status     Status
	Type       Type
	CategoryID string
	Search     string
	Featured   bool
}
