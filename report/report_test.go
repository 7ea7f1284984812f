package report

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{5, 5, 100},
		{3, -1, 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.part, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.part, tt.total, got, tt.want)
		}
	}
	if got := PercentFloat(1, 3); got != 33.3 {
		t.Errorf("PercentFloat(1, 3) = %v, want 33.3", got)
	}
}

func TestGrowth(t *testing.T) {
	tests := []struct {
		cur, prev, want float64
	}{
		{150, 100, 50},
		{50, 100, -50},
		{10, 0, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Growth(tt.cur, tt.prev); got != tt.want {
			t.Errorf("Growth(%v, %v) = %v, want %v", tt.cur, tt.prev, got, tt.want)
		}
	}
}

func TestParseDays(t *testing.T) {
	if got := ParseDays("30", 7, 1, 7, 30); got != 30 {
		t.Errorf("got %d, want 30", got)
	}
	if got := ParseDays("12", 7, 1, 7, 30); got != 7 {
		t.Errorf("disallowed value: got %d, want 7", got)
	}
	if got := ParseDays("", 7); got != 7 {
		t.Errorf("empty: got %d, want 7", got)
	}
	if got := ParseDays("-3", 7); got != 7 {
		t.Errorf("negative: got %d, want 7", got)
	}
	if got := ParseDays("90", 7); got != 90 {
		t.Errorf("unrestricted: got %d, want 90", got)
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := Since(now, 7); !got.Equal(want) {
		t.Errorf("Since = %v, want %v", got, want)
	}
}

func TestFillDaily(t *testing.T) {
	from := time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC)
	got := FillDaily([]Point{{Label: "2026-01-31", Value: 4}, {Label: "2026-02-02", Value: 1}}, from, 4)
	want := []Point{
		{Label: "2026-01-30"},
		{Label: "2026-01-31", Value: 4},
		{Label: "2026-02-01"},
		{Label: "2026-02-02", Value: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FillDaily mismatch (-want +got):\n%s", diff)
	}
}

func TestFillDailySplit(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := FillDailySplit([]SplitPoint{
		{Label: "2026-01-02", Success: 3},
		{Label: "2026-01-02", Failed: 2},
	}, from, 2)
	want := []SplitPoint{
		{Label: "2026-01-01"},
		{Label: "2026-01-02", Success: 3, Failed: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FillDailySplit mismatch (-want +got):\n%s", diff)
	}
}

func TestFillHourly(t *testing.T) {
	from := time.Date(2026, 1, 1, 22, 15, 0, 0, time.UTC)
	got := FillHourly([]Point{{Label: "23:00", Value: 2}}, from)
	if len(got) != 24 {
		t.Fatalf("len = %d, want 24", len(got))
	}
	if got[0].Label != "22:00" || got[1].Value != 2 || got[2].Label != "00:00" {
		t.Errorf("unexpected series head: %+v", got[:3])
	}
}

func TestFillMonthly(t *testing.T) {
	to := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	got := FillMonthly([]Point{{Label: "2025-12", Value: 4}}, to, 3)
	want := []Point{{"2025-12", 4}, {"2026-01", 0}, {"2026-02", 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FillMonthly (-want +got):\n%s", diff)
	}
}

func TestRange(t *testing.T) {
	now := time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		from   time.Time
		g      Granularity
		points int
	}{
		{"today", time.Date(2026, 4, 9, 16, 0, 0, 0, time.UTC), Hourly, 24},
		{"week", time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC), Daily, 7},
		{"month", time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), Daily, 30},
		{"year", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Monthly, 12},
	}
	for _, tt := range tests {
		from, to, g := Range(now, tt.name)
		if !from.Equal(tt.from) || !to.Equal(now) || g != tt.g {
			t.Errorf("Range(%s) = %v, %v, %v", tt.name, from, to, g)
		}
		if n := len(Fill(nil, from, to, g)); n != tt.points {
			t.Errorf("Fill(%s) has %d points, want %d", tt.name, n, tt.points)
		}
	}
}

func TestPeriod(t *testing.T) {
	name, days, g := Period("bogus")
	if name != "week" || days != 7 || g != Daily {
		t.Errorf("Period(bogus) = %s %d %s", name, days, g)
	}
	if _, days, g := Period("today"); days != 1 || g != Hourly {
		t.Errorf("Period(today) = %d %s", days, g)
	}
}

func TestShares(t *testing.T) {
	got := Shares([]string{"a", "b"}, map[string]int{"a": 1, "b": 3})
	want := []Share{{Name: "a", Count: 1, Percent: 25}, {Name: "b", Count: 3, Percent: 75}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Shares mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Errorf("FormatCount = %q", got)
	}
}
