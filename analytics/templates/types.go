// Package templates renders the analytics console. Its view models mirror
// the analytics types so this package does not import analytics.
package templates

// StatsViewModel represents analytics statistics for templating.
type StatsViewModel struct {
	Site           string
	Period         string
	UniqueVisitors string
	TotalViews     string
	AvgDuration    string
	Realtime       int
	TopPages       []RowViewModel
	LatestPages    []LatestPageVisitViewModel
	Browsers       []RowViewModel
	OS             []RowViewModel
	Devices        []RowViewModel
	Referrers      []RowViewModel
	Series         []BarViewModel
}

// BotStatsViewModel represents bot analytics statistics for templating.
type BotStatsViewModel struct {
	Site        string
	Period      string
	TotalVisits string
	TopBots     []RowViewModel
	TopPages    []RowViewModel
	Series      []BarViewModel
}

// RowViewModel is one line of a breakdown table with its share of the total.
type RowViewModel struct {
	Name    string
	Count   int
	Percent int
}

// LatestPageVisitViewModel represents a single recent page visit.
type LatestPageVisitViewModel struct {
	Path    string
	When    string
	Browser string
}

// BarViewModel is one bar of the time series chart. Height is relative to
// the tallest bar, 0..100.
type BarViewModel struct {
	Label  string
	Value  int
	Height int
}
