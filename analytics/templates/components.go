package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

var periods = []struct{ id, label string }{
	{"today", "Today"},
	{"week", "7 days"},
	{"month", "30 days"},
	{"year", "12 months"},
}

type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) rawf(format string, args ...any) { h.raw(fmt.Sprintf(format, args...)) }

func component(fn func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		fn(h)
		return h.err
	})
}

// Dashboard is the analytics page for one site. The stats, bots and setup
// tabs load their fragments from base with htmx.
func Dashboard(site, base, period string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<section class="analytics" data-site="`)
		h.text(site)
		h.raw(`"><header class="analytics-header"><h1>Analytics: `)
		h.text(site)
		h.raw(`</h1><nav class="periods">`)
		for _, p := range periods {
			cls := "period"
			if p.id == period {
				cls += " active"
			}
			h.rawf(`<a class="%s" hx-get="%s" hx-target="#analytics-body" href="?period=%s">`,
				cls, templ.EscapeString(base+"fragments/stats?period="+p.id), p.id)
			h.text(p.label)
			h.raw(`</a>`)
		}
		h.raw(`</nav><nav class="tabs">`)
		for _, tab := range []struct{ path, label string }{
			{"fragments/stats?period=" + period, "Visitors"},
			{"fragments/bot-stats?period=" + period, "Bots"},
			{"fragments/setup", "Setup"},
		} {
			h.rawf(`<button hx-get="%s" hx-target="#analytics-body">`, templ.EscapeString(base+tab.path))
			h.text(tab.label)
			h.raw(`</button>`)
		}
		h.rawf(`</nav></header><div id="analytics-body" hx-get="%s" hx-trigger="load"><div class="loading">Loading...</div></div></section>`,
			templ.EscapeString(base+"fragments/stats?period="+period))
	})
}

func card(h *htmlWriter, label, value string) {
	h.raw(`<div class="card"><span class="card-label">`)
	h.text(label)
	h.raw(`</span><span class="card-value">`)
	h.text(value)
	h.raw(`</span></div>`)
}

func chart(h *htmlWriter, bars []BarViewModel) {
	h.raw(`<div class="chart">`)
	for _, b := range bars {
		h.rawf(`<div class="bar" style="height:%d%%" title="`, b.Height)
		h.text(fmt.Sprintf("%s: %d", b.Label, b.Value))
		h.raw(`"></div>`)
	}
	h.raw(`</div>`)
}

func table(h *htmlWriter, title string, rows []RowViewModel) {
	h.raw(`<div class="breakdown"><h3>`)
	h.text(title)
	h.raw(`</h3>`)
	if len(rows) == 0 {
		h.raw(`<p class="empty">No data yet</p></div>`)
		return
	}
	h.raw(`<table><tbody>`)
	for _, r := range rows {
		h.raw(`<tr><td>`)
		h.text(r.Name)
		h.rawf(`</td><td class="num">%d</td><td class="pct">%d%%</td></tr>`, r.Count, r.Percent)
	}
	h.raw(`</tbody></table></div>`)
}

// StatsFragment renders the visitor tab.
func StatsFragment(vm *StatsViewModel) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="stats"><p class="period-label">`)
		h.text(vm.Period)
		h.raw(`</p><div class="cards">`)
		card(h, "Visitors", vm.UniqueVisitors)
		card(h, "Page views", vm.TotalViews)
		card(h, "Avg. time on page", vm.AvgDuration)
		card(h, "Online now", fmt.Sprint(vm.Realtime))
		h.raw(`</div>`)
		chart(h, vm.Series)
		h.raw(`<div class="grid">`)
		table(h, "Top pages", vm.TopPages)
		table(h, "Referrers", vm.Referrers)
		table(h, "Browsers", vm.Browsers)
		table(h, "Operating systems", vm.OS)
		table(h, "Devices", vm.Devices)
		h.raw(`</div><div class="latest"><h3>Latest visits</h3><ul>`)
		for _, lp := range vm.LatestPages {
			h.raw(`<li><code>`)
			h.text(lp.Path)
			h.raw(`</code> `)
			h.text(lp.Browser + " · " + lp.When)
			h.raw(`</li>`)
		}
		h.raw(`</ul></div></div>`)
	})
}

// BotStatsFragment renders the bots tab.
func BotStatsFragment(vm *BotStatsViewModel) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="stats bots"><p class="period-label">`)
		h.text(vm.Period)
		h.raw(`</p><div class="cards">`)
		card(h, "Bot visits", vm.TotalVisits)
		h.raw(`</div>`)
		chart(h, vm.Series)
		h.raw(`<div class="grid">`)
		table(h, "Top bots", vm.TopBots)
		table(h, "Crawled pages", vm.TopPages)
		h.raw(`</div></div>`)
	})
}

// SetupContent shows the tracking snippet for a site.
func SetupContent(origin, site string) templ.Component {
	snippet := strings.Join([]string{
		`<script defer src="` + origin + `/public/analytics.js"`,
		`        data-site="` + site + `"`,
		`        data-endpoint="` + origin + `/api/analytics/collect"></script>`,
	}, "\n")
	return component(func(h *htmlWriter) {
		h.raw(`<div class="setup"><p>Add this snippet before the closing body tag of every page.</p><pre><code>`)
		h.text(snippet)
		h.raw(`</code></pre><p>Visitors who send Do Not Track are never recorded.</p></div>`)
	})
}
