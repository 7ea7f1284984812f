// Package paging holds the offset pagination arithmetic shared by every
// admin list and catalog browse page.
package paging

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultSize is used when a caller does not ask for a specific page size.
const DefaultSize = 20

// MaxSize caps client-supplied page sizes.
const MaxSize = 100

// DefaultWindow is the number of page links shown around the current page.
const DefaultWindow = 5

// Page describes one page of a result set.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"pageSize"`
	Total  int `json:"total"`
}

// New returns a Page with number and size clamped to sane values.
// A size outside 1..MaxSize falls back to DefaultSize.
func New(number, size, total int) Page {
	return NewWithLimits(number, size, total, DefaultSize, MaxSize)
}

// NewWithLimits is like New but with caller-provided default and maximum sizes.
// The page number is capped so that Number*Size cannot overflow.
func NewWithLimits(number, size, total, def, max int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 || size > max {
		size = def
	}
	if size > 0 {
		number = min(number, math.MaxInt/size)
	}
	if total < 0 {
		total = 0
	}
	return Page{Number: number, Size: size, Total: total}
}

// WithTotal returns a copy of p with the total set.
func (p Page) WithTotal(total int) Page {
	if total < 0 {
		total = 0
	}
	p.Total = total
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(Total/Size), or 0 for an empty result.
func (p Page) TotalPages() int {
	if p.Total == 0 || p.Size == 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a page after this one exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages() }

// HasMore reports whether rows remain after the returned ones.
func (p Page) HasMore(returned int) bool {
	return p.Offset()+returned < p.Total
}

// First is the 1-based index of the first item on this page, 0 when empty.
func (p Page) First() int {
	if p.Total == 0 {
		return 0
	}
	first := p.Offset() + 1
	if first > p.Total {
		return 0
	}
	return first
}

// Last is the 1-based index of the last item on this page.
func (p Page) Last() int {
	if p.First() == 0 {
		return 0
	}
	return min(p.Number*p.Size, p.Total)
}

// Prev returns the previous page number, never below 1.
func (p Page) Prev() int { return max(p.Number-1, 1) }

// Next returns the next page number, never beyond the last page.
func (p Page) Next() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

// Window returns up to n page numbers centered on the current page.
// Near either end the window is pinned to the first or last n pages.
func (p Page) Window(n int) []int {
	if n < 1 {
		n = DefaultWindow
	}
	total := p.TotalPages()
	if total == 0 {
		return nil
	}
	var start, end int
	half := n / 2
	switch {
	case total <= n:
		start, end = 1, total
	case p.Number <= (n+1)/2:
		start, end = 1, n
	case p.Number >= total-half:
		start, end = total-n+1, total
	default:
		start = p.Number - half
		end = start + n - 1
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// Parse reads "page" and "limit" (or "pageSize") from a query string.
// Missing or malformed values fall back to page 1 and def.
func Parse(q url.Values, def, max int) Page {
	number, size := ParseRaw(q)
	return NewWithLimits(number, size, 0, def, max)
}

// ParseRaw returns the unclamped page and limit parameters. Missing or
// malformed values are 0, which NewWithLimits replaces with its defaults.
func ParseRaw(q url.Values) (number, size int) {
	raw := q.Get("limit")
	if raw == "" {
		raw = q.Get("pageSize")
	}
	return atoiOr(q.Get("page"), 0), atoiOr(raw, 0)
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Slice returns the items that fall on page p, with p's total set to len(items).
func Slice[T any](items []T, p Page) ([]T, Page) {
	p = p.WithTotal(len(items))
	start := p.Offset()
	if start < 0 || start >= len(items) {
		return []T{}, p
	}
	end := min(start+p.Size, len(items))
	return items[start:end], p
}
