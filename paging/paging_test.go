package paging

import (
	"math"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewClamps(t *testing.T) {
	tests := []struct {
		name               string
		number, size, tot  int
		wantNumber, wantSz int
	}{
		{"defaults", 0, 0, 10, 1, DefaultSize},
		{"negative page", -4, 10, 10, 1, 10},
		{"oversized", 2, MaxSize + 1, 10, 2, DefaultSize},
		{"valid", 3, 30, 100, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.number, tt.size, tt.tot)
			if p.Number != tt.wantNumber || p.Size != tt.wantSz {
				t.Errorf("New(%d, %d) = %+v, want number %d size %d", tt.number, tt.size, p, tt.wantNumber, tt.wantSz)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		page                         Page
		offset, pages, first, last   int
		hasPrev, hasNext             bool
	}{
		{Page{Number: 1, Size: 20, Total: 0}, 0, 0, 0, 0, false, false},
		{Page{Number: 1, Size: 20, Total: 45}, 0, 3, 1, 20, false, true},
		{Page{Number: 3, Size: 20, Total: 45}, 40, 3, 41, 45, true, false},
		{Page{Number: 2, Size: 30, Total: 60}, 30, 2, 31, 60, true, false},
		{Page{Number: 9, Size: 10, Total: 15}, 80, 2, 0, 0, true, false},
	}
	for _, tt := range tests {
		p := tt.page
		if got := p.Offset(); got != tt.offset {
			t.Errorf("%+v Offset = %d, want %d", p, got, tt.offset)
		}
		if got := p.TotalPages(); got != tt.pages {
			t.Errorf("%+v TotalPages = %d, want %d", p, got, tt.pages)
		}
		if got := p.First(); got != tt.first {
			t.Errorf("%+v First = %d, want %d", p, got, tt.first)
		}
		if got := p.Last(); got != tt.last {
			t.Errorf("%+v Last = %d, want %d", p, got, tt.last)
		}
		if got := p.HasPrev(); got != tt.hasPrev {
			t.Errorf("%+v HasPrev = %v, want %v", p, got, tt.hasPrev)
		}
		if got := p.HasNext(); got != tt.hasNext {
			t.Errorf("%+v HasNext = %v, want %v", p, got, tt.hasNext)
		}
	}
}

func TestHasMore(t *testing.T) {
	p := Page{Number: 2, Size: 12, Total: 30}
	if !p.HasMore(12) {
		t.Fatal("expected more after 24 of 30")
	}
	p.Number = 3
	if p.HasMore(6) {
		t.Fatal("expected no more after 30 of 30")
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		number, total int
		want          []int
	}{
		{1, 0, nil},
		{1, 60, []int{1, 2, 3}},
		{1, 200, []int{1, 2, 3, 4, 5}},
		{3, 200, []int{1, 2, 3, 4, 5}},
		{4, 200, []int{2, 3, 4, 5, 6}},
		{8, 200, []int{6, 7, 8, 9, 10}},
		{9, 200, []int{6, 7, 8, 9, 10}},
		{10, 200, []int{6, 7, 8, 9, 10}},
	}
	for _, tt := range tests {
		p := Page{Number: tt.number, Size: 20, Total: tt.total}
		if diff := cmp.Diff(tt.want, p.Window(5)); diff != "" {
			t.Errorf("Window page %d of %d mismatch (-want +got):\n%s", tt.number, p.TotalPages(), diff)
		}
	}

	// An even window keeps n pages, one fewer after the current page.
	p := Page{Number: 6, Size: 20, Total: 200}
	if diff := cmp.Diff([]int{4, 5, 6, 7}, p.Window(4)); diff != "" {
		t.Errorf("Window(4) mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	q := url.Values{"page": {"3"}, "limit": {"15"}}
	p := Parse(q, 12, 50)
	if p.Number != 3 || p.Size != 15 {
		t.Fatalf("Parse = %+v", p)
	}

	q = url.Values{"page": {"abc"}, "pageSize": {"500"}}
	p = Parse(q, 12, 50)
	if p.Number != 1 || p.Size != 12 {
		t.Fatalf("Parse junk = %+v", p)
	}
}

func TestHugePageNumber(t *testing.T) {
	p := Parse(url.Values{"page": {"1000000000000000000"}, "limit": {"12"}}, 12, 50)
	if p.Offset() < 0 || p.Number*p.Size < 0 {
		t.Fatalf("Parse huge page overflowed: %+v offset %d", p, p.Offset())
	}
	p = New(math.MaxInt, MaxSize, 10)
	if p.Offset() < 0 || p.Last() != 0 || p.HasMore(0) {
		t.Fatalf("New(MaxInt) = %+v offset %d", p, p.Offset())
	}

	items := []string{"a", "b", "c"}
	if got, _ := Slice(items, p); len(got) != 0 {
		t.Errorf("Slice clamped huge page = %v, want empty", got)
	}
	// Built without New, the offset wraps negative.
	raw := Page{Number: 1_000_000_000_000_000_000, Size: 12}
	if got, _ := Slice(items, raw); len(got) != 0 {
		t.Errorf("Slice raw huge page = %v, want empty", got)
	}
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	got, p := Slice(items, Page{Number: 2, Size: 2})
	if diff := cmp.Diff([]string{"c", "d"}, got); diff != "" {
		t.Errorf("Slice mismatch (-want +got):\n%s", diff)
	}
	if p.Total != 5 {
		t.Errorf("Total = %d, want 5", p.Total)
	}

	got, _ = Slice(items, Page{Number: 4, Size: 2})
	if len(got) != 0 {
		t.Errorf("expected empty page, got %v", got)
	}
}
