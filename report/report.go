// Package report has the small numeric helpers behind the dashboard cards:
// percentages, growth, rolling time windows and dense daily series.
package report

import (
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DayLayout is the label format used for daily buckets.
const DayLayout = "2006-01-02"

// Percent returns part/total as a rounded whole percentage.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// PercentFloat returns part/total as a percentage rounded to one decimal.
func PercentFloat(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(part) / float64(total) * 100)
}

// Growth returns the percent change from previous to current.
func Growth(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return Round1((current - previous) / previous * 100)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Window is a rolling lookback ending at now.
type Window struct {
	Name string
	From time.Time
}

// Windows returns the standard 24h, 7d and 30d lookbacks.
func Windows(now time.Time) []Window {
	now = now.UTC()
	return []Window{
		{Name: "24h", From: now.Add(-24 * time.Hour)},
		{Name: "7d", From: now.AddDate(0, 0, -7)},
		{Name: "30d", From: now.AddDate(0, 0, -30)},
	}
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Since returns midnight UTC of the first day in a days-long window that
// includes today.
func Since(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return StartOfDay(now).AddDate(0, 0, -(days - 1))
}

// ParseDays parses a day-range filter. Values not in allowed (when given) or
// not positive fall back to def.
func ParseDays(s string, def int, allowed ...int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if len(allowed) == 0 {
		return n
	}
	for _, a := range allowed {
		if a == n {
			return n
		}
	}
	return def
}

// Granularity is the bucket size of a time series.
type Granularity string

const (
	Hourly  Granularity = "hour"
	Daily   Granularity = "day"
	Monthly Granularity = "month"
)

// Period maps a named period to a day count and bucket size.
// Unknown names resolve to "week".
func Period(name string) (string, int, Granularity) {
	switch name {
	case "today":
		return name, 1, Hourly
	case "month":
		return name, 30, Daily
	case "year":
		return name, 365, Monthly
	default:
		return "week", 7, Daily
	}
}

// Point is one bucket of a time series.
type Point struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// FillDaily returns one point per day starting at from, with gaps set to 0.
func FillDaily(sparse []Point, from time.Time, days int) []Point {
	byLabel := make(map[string]int, len(sparse))
	for _, p := range sparse {
		byLabel[p.Label] += p.Value
	}
	from = StartOfDay(from)
	out := make([]Point, days)
	for i := 0; i < days; i++ {
		label := from.AddDate(0, 0, i).Format(DayLayout)
		out[i] = Point{Label: label, Value: byLabel[label]}
	}
	return out
}

// FillHourly returns 24 hourly points starting at the hour of from.
func FillHourly(sparse []Point, from time.Time) []Point {
	byLabel := make(map[string]int, len(sparse))
	for _, p := range sparse {
		byLabel[p.Label] += p.Value
	}
	from = from.UTC().Truncate(time.Hour)
	out := make([]Point, 24)
	for i := 0; i < 24; i++ {
		label := from.Add(time.Duration(i) * time.Hour).Format("15:00")
		out[i] = Point{Label: label, Value: byLabel[label]}
	}
	return out
}

// MonthLayout labels monthly buckets.
const MonthLayout = "2006-01"

// FillMonthly returns one point per calendar month for the months months
// ending with the month of to.
func FillMonthly(sparse []Point, to time.Time, months int) []Point {
	byLabel := make(map[string]int, len(sparse))
	for _, p := range sparse {
		byLabel[p.Label] += p.Value
	}
	to = to.UTC()
	first := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	out := make([]Point, months)
	for i := 0; i < months; i++ {
		label := first.AddDate(0, i, 0).Format(MonthLayout)
		out[i] = Point{Label: label, Value: byLabel[label]}
	}
	return out
}

// Range returns the time span and bucket size a named period covers,
// ending at now: the last 24 hours for hourly series, whole days for daily
// series and the last 12 calendar months for monthly series.
func Range(now time.Time, name string) (from, to time.Time, g Granularity) {
	_, days, g := Period(name)
	now = now.UTC()
	switch g {
	case Hourly:
		return now.Truncate(time.Hour).Add(-23 * time.Hour), now, g
	case Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0), now, g
	default:
		return Since(now, days), now, g
	}
}

// Fill densifies sparse into the buckets of the span from..to.
func Fill(sparse []Point, from, to time.Time, g Granularity) []Point {
	switch g {
	case Hourly:
		return FillHourly(sparse, from)
	case Monthly:
		return FillMonthly(sparse, to, 12)
	default:
		days := int(StartOfDay(to).Sub(StartOfDay(from)).Hours()/24) + 1
		return FillDaily(sparse, from, days)
	}
}

// SplitPoint is a daily bucket with separate success and failure counts.
type SplitPoint struct {
	Label   string `json:"label"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// FillDailySplit is FillDaily for paired series.
func FillDailySplit(sparse []SplitPoint, from time.Time, days int) []SplitPoint {
	byLabel := make(map[string]SplitPoint, len(sparse))
	for _, p := range sparse {
		cur := byLabel[p.Label]
		cur.Success += p.Success
		cur.Failed += p.Failed
		byLabel[p.Label] = cur
	}
	from = StartOfDay(from)
	out := make([]SplitPoint, days)
	for i := 0; i < days; i++ {
		label := from.AddDate(0, 0, i).Format(DayLayout)
		p := byLabel[label]
		p.Label = label
		out[i] = p
	}
	return out
}

// Share is a named count with its share of the total.
type Share struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Shares attaches percentages to named counts.
func Shares(names []string, counts map[string]int) []Share {
	total := 0
	for _, n := range names {
		total += counts[n]
	}
	out := make([]Share, len(names))
	for i, n := range names {
		out[i] = Share{Name: n, Count: counts[n], Percent: Percent(counts[n], total)}
	}
	return out
}

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
