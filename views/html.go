package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
)

// w accumulates the first write error so components can write straight
// through without checking every call.
type w struct {
	out io.Writer
	ctx context.Context
	err error
}

func (h *w) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.out, s)
	}
}

func (h *w) rawf(format string, args ...any) { h.raw(fmt.Sprintf(format, args...)) }

func (h *w) text(s string) { h.raw(templ.EscapeString(s)) }

// el writes <tag attrs>text</tag> with text escaped.
func (h *w) el(tag, attrs, text string) {
	if attrs != "" {
		attrs = " " + attrs
	}
	h.raw("<" + tag + attrs + ">")
	h.text(text)
	h.raw("</" + tag + ">")
}

func (h *w) component(c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(h.ctx, h.out)
	}
}

func component(fn func(h *w)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		h := &w{out: out, ctx: ctx}
		fn(h)
		return h.err
	})
}

func attr(s string) string { return templ.EscapeString(s) }

func itoa(n int) string { return strconv.Itoa(n) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func csrfField(h *w, token string) {
	h.rawf(`<input type="hidden" name="_csrf" value="%s">`, attr(token))
}

// postButton renders a one-button form. method other than POST is sent as
// the _method override.
func postButton(h *w, csrf, action, method, label, class string) {
	h.rawf(`<form method="post" action="%s" class="inline">`, attr(action))
	csrfField(h, csrf)
	if method != "" && method != "POST" {
		h.rawf(`<input type="hidden" name="_method" value="%s">`, attr(method))
	}
	h.rawf(`<button type="submit" class="%s">`, attr(class))
	h.text(label)
	h.raw(`</button></form>`)
}

func selectField(h *w, name string, options []string, selected string, allLabel string) {
	h.rawf(`<select name="%s">`, attr(name))
	if allLabel != "" {
		h.rawf(`<option value="">%s</option>`, attr(allLabel))
	}
	for _, o := range options {
		sel := ""
		if o == selected {
			sel = " selected"
		}
		h.rawf(`<option value="%s"%s>`, attr(o), sel)
		h.text(o)
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}

type stat struct {
	label, value, hint string
}

func statCards(h *w, stats ...stat) {
	h.raw(`<div class="cards">`)
	for _, s := range stats {
		h.raw(`<div class="card">`)
		h.el("span", `class="card-label"`, s.label)
		h.el("span", `class="card-value"`, s.value)
		if s.hint != "" {
			h.el("span", `class="card-hint"`, s.hint)
		}
		h.raw(`</div>`)
	}
	h.raw(`</div>`)
}

// table writes a table; row is called once per index and writes the cells.
func table(h *w, headers []string, n int, row func(i int)) {
	if n == 0 {
		h.raw(`<p class="empty">Nothing here yet.</p>`)
		return
	}
	h.raw(`<table><thead><tr>`)
	for _, hd := range headers {
		h.el("th", "", hd)
	}
	h.raw(`</tr></thead><tbody>`)
	for i := 0; i < n; i++ {
		h.raw(`<tr>`)
		row(i)
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table>`)
}

func td(h *w, s string) { h.el("td", "", s) }

func barChart(h *w, title string, points []report.Point) {
	peak := 0
	for _, p := range points {
		peak = max(peak, p.Value)
	}
	h.raw(`<figure class="chart">`)
	h.el("figcaption", "", title)
	h.raw(`<div class="bars">`)
	for _, p := range points {
		h.rawf(`<div class="bar" style="height:%d%%" title="%s"></div>`,
			report.Percent(p.Value, peak), attr(fmt.Sprintf("%s: %d", p.Label, p.Value)))
	}
	h.raw(`</div></figure>`)
}

func shareList(h *w, title string, shares []report.Share) {
	h.raw(`<div class="shares">`)
	h.el("h3", "", title)
	for _, s := range shares {
		h.rawf(`<div class="share"><span>%s</span><meter min="0" max="100" value="%d"></meter><span>%d (%d%%)</span></div>`,
			attr(s.Name), s.Percent, s.Count, s.Percent)
	}
	h.raw(`</div>`)
}

// pager writes page links that keep every other query parameter.
func pager(h *w, base string, q url.Values, p paging.Page) {
	if p.TotalPages() <= 1 {
		return
	}
	link := func(n int) string {
		v := url.Values{}
		for k, vals := range q {
			v[k] = vals
		}
		v.Set("page", itoa(n))
		return base + "?" + v.Encode()
	}
	h.raw(`<nav class="pager">`)
	if p.HasPrev() {
		h.rawf(`<a href="%s" rel="prev">Previous</a>`, attr(link(p.Prev())))
	}
	for _, n := range p.Window(5) {
		if n == p.Number {
			h.rawf(`<span class="current">%d</span>`, n)
			continue
		}
		h.rawf(`<a href="%s">%d</a>`, attr(link(n)), n)
	}
	if p.HasNext() {
		h.rawf(`<a href="%s" rel="next">Next</a>`, attr(link(p.Next())))
	}
	h.rawf(`<span class="range">%d-%d of %d</span></nav>`, p.First(), p.Last(), p.Total)
}

func flash(h *w, msg string) {
	if msg != "" {
		h.el("div", `class="flash" role="status"`, msg)
	}
}

func joinStrings(vals []string) string { return strings.Join(vals, ", ") }
