package catalog

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/eringen/panelengine/paging"
)

const (
	// DefaultLimit is the page size of both browse pages.
	DefaultLimit = 12
	// MaxLimit caps the page size.
	MaxLimit = 50
)

// Price filters.
const (
	PriceAll     = "all"
	PriceFree    = "free"
	PricePremium = "premium"
)

// Sort orders.
const (
	SortPopular     = "popular"
	SortNewest      = "newest"
	SortRating      = "rating"
	SortPriceAsc    = "price-asc"
	SortPriceDesc   = "price-desc"
	SortRecommended = "recommended"
	SortReviews     = "reviews"
)

// TemplateQuery filters the template gallery. Zero values mean "no filter".
type TemplateQuery struct {
	Category string
	Search   string
	Price    string
	MinPrice int
	MaxPrice int
	Tags     []string
	Featured bool
	Sort     string
	// Page and Limit are taken as given and clamped once by the query.
	Page  int
	Limit int
}

// FreelancerQuery filters the freelancer directory. Zero values mean "no
// filter".
type FreelancerQuery struct {
	Search       string
	Category     string
	Skills       []string
	VerifiedOnly bool
	TopRatedOnly bool
	MinRate      int
	MaxRate      int
	Sort         string
	Page         int
	Limit        int
}

// TemplateResult is one page of the template gallery.
type TemplateResult struct {
	Items      []Template     `json:"items"`
	Page       paging.Page    `json:"page"`
	HasMore    bool           `json:"hasMore"`
	Categories map[string]int `json:"categories"`
	Tags       []string       `json:"tags"`
}

// FreelancerResult is one page of the freelancer directory.
type FreelancerResult struct {
	Items      []Freelancer   `json:"items"`
	Page       paging.Page    `json:"page"`
	HasMore    bool           `json:"hasMore"`
	Categories map[string]int `json:"categories"`
	Skills     []string       `json:"skills"`
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

func anyContains(list []string, sub string) bool {
	for _, s := range list {
		if contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAny(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// pageOf clamps a requested page and limit. A limit outside 1..MaxLimit
// falls back to DefaultLimit.
func pageOf(number, limit int) paging.Page {
	return paging.NewWithLimits(number, limit, 0, DefaultLimit, MaxLimit)
}

func isAll(s string) bool { return s == "" || s == "all" }

// QueryTemplates filters, sorts and pages the gallery. Category counts are
// computed after the search filter but before the other filters, so the
// sidebar shows what each category would yield.
func (c *Catalog) QueryTemplates(q TemplateQuery) TemplateResult {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	var searched []Template
	for _, t := range c.templates {
		if term == "" || contains(t.Name, term) || contains(t.Description, term) || anyContains(t.Tags, term) {
			searched = append(searched, t)
		}
	}

	counts := make(map[string]int, len(TemplateCategories))
	for _, cat := range TemplateCategories {
		counts[cat.ID] = 0
	}
	var out []Template
	for _, t := range searched {
		counts[t.Category]++
		if !isAll(q.Category) && t.Category != q.Category {
			continue
		}
		switch q.Price {
		case PriceFree:
			if t.Price != 0 {
				continue
			}
		case PricePremium:
			if t.Price == 0 {
				continue
			}
		}
		if q.MinPrice > 0 && t.Price < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && t.Price > q.MaxPrice {
			continue
		}
		if !hasAll(t.Tags, q.Tags) {
			continue
		}
		if q.Featured && !t.Featured {
			continue
		}
		out = append(out, t)
	}
	counts["all"] = len(searched)

	sortTemplates(out, q.Sort)
	items, page := paging.Slice(out, pageOf(q.Page, q.Limit))
	return TemplateResult{
		Items:      items,
		Page:       page,
		HasMore:    page.HasMore(len(items)),
		Categories: counts,
		Tags:       c.Tags(),
	}
}

func sortTemplates(ts []Template, order string) {
	var less func(a, b Template) bool
	switch order {
	case SortNewest:
		less = func(a, b Template) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortRating:
		less = func(a, b Template) bool { return a.Rating > b.Rating }
	case SortPriceAsc:
		less = func(a, b Template) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b Template) bool { return a.Price > b.Price }
	default:
		less = func(a, b Template) bool { return a.Downloads > b.Downloads }
	}
	sort.SliceStable(ts, func(i, j int) bool { return less(ts[i], ts[j]) })
}

// QueryFreelancers filters, sorts and pages the directory. A freelancer in
// several categories is counted in each.
func (c *Catalog) QueryFreelancers(q FreelancerQuery) FreelancerResult {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	var searched []Freelancer
	for _, f := range c.freelancers {
		if term == "" || contains(f.Name, term) || contains(f.Title, term) || contains(f.Bio, term) || anyContains(f.Skills, term) {
			searched = append(searched, f)
		}
	}

	counts := make(map[string]int, len(FreelancerCategories))
	for _, cat := range FreelancerCategories {
		counts[cat.ID] = 0
	}
	var out []Freelancer
	for _, f := range searched {
		inCategory := isAll(q.Category)
		for _, cat := range f.Categories {
			counts[cat]++
			if cat == q.Category {
				inCategory = true
			}
		}
		switch {
		case !inCategory:
		case len(q.Skills) > 0 && !hasAny(f.Skills, q.Skills):
		case q.VerifiedOnly && !f.Verified:
		case q.TopRatedOnly && !f.TopRated:
		case q.MinRate > 0 && f.HourlyRate < q.MinRate:
		case q.MaxRate > 0 && f.HourlyRate > q.MaxRate:
		default:
			out = append(out, f)
		}
	}
	counts["all"] = len(searched)

	sortFreelancers(out, q.Sort)
	items, page := paging.Slice(out, pageOf(q.Page, q.Limit))
	return FreelancerResult{
		Items:      items,
		Page:       page,
		HasMore:    page.HasMore(len(items)),
		Categories: counts,
		Skills:     c.Skills(),
	}
}

func sortFreelancers(fs []Freelancer, order string) {
	var less func(a, b Freelancer) bool
	switch order {
	case SortRating:
		less = func(a, b Freelancer) bool { return a.Rating > b.Rating }
	case SortReviews:
		less = func(a, b Freelancer) bool { return a.ReviewCount > b.ReviewCount }
	case SortPriceAsc:
		less = func(a, b Freelancer) bool { return a.HourlyRate < b.HourlyRate }
	case SortPriceDesc:
		less = func(a, b Freelancer) bool { return a.HourlyRate > b.HourlyRate }
	default:
		less = func(a, b Freelancer) bool { return a.Score() > b.Score() }
	}
	sort.SliceStable(fs, func(i, j int) bool { return less(fs[i], fs[j]) })
}

func intParam(q url.Values, key string) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ParseTemplateQuery reads a gallery query from URL parameters.
func ParseTemplateQuery(q url.Values) TemplateQuery {
	page, limit := paging.ParseRaw(q)
	return TemplateQuery{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Price:    q.Get("price"),
		MinPrice: intParam(q, "minPrice"),
		MaxPrice: intParam(q, "maxPrice"),
		Tags:     listParam(q, "tags"),
		Featured: q.Get("featured") == "true" || q.Get("featured") == "1",
		Sort:     q.Get("sort"),
		Page:     page,
		Limit:    limit,
	}
}

// ParseFreelancerQuery reads a directory query from URL parameters.
func ParseFreelancerQuery(q url.Values) FreelancerQuery {
	page, limit := paging.ParseRaw(q)
	return FreelancerQuery{
		Search:       q.Get("q"),
		Category:     q.Get("category"),
		Skills:       listParam(q, "skills"),
		VerifiedOnly: q.Get("verified") == "true" || q.Get("verified") == "1",
		TopRatedOnly: q.Get("topRated") == "true" || q.Get("topRated") == "1",
		MinRate:      intParam(q, "minRate"),
		MaxRate:      intParam(q, "maxRate"),
		Sort:         q.Get("sort"),
		Page:         page,
		Limit:        limit,
	}
}
