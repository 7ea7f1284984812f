package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, src string) string {
	t.Helper()
	out, err := Render(src)
	if err != nil {
		t.Fatalf("Render(%q): %v", src, err)
	}
	return out
}

func TestRenderInline(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"_italic_", "<em>italic</em>"},
		{"use `fmt.Println` here", "use <code>fmt.Println</code> here"},
		{"`**not bold**`", "<code>**not bold**</code>"},
		{"~~gone~~", "<del>gone</del>"},
	}
	for _, tt := range tests {
		got := render(t, tt.input)
		if !strings.Contains(got, tt.expected) {
			t.Errorf("Render(%q) = %q, want it to contain %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderHeadings(t *testing.T) {
	got := render(t, "# Title\n\n## Sub Section\n\n### Third")
	for _, want := range []string{`<h1 id="title">Title</h1>`, `<h2 id="sub-section">Sub Section</h2>`, `<h3 id="third">Third</h3>`} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestRenderLinks(t *testing.T) {
	got := render(t, "[Wikipedia](https://en.wikipedia.org/wiki/Some_Article_Title)")
	if !strings.Contains(got, `href="https://en.wikipedia.org/wiki/Some_Article_Title"`) {
		t.Errorf("underscores in URL mangled: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("absolute link should open in a new tab: %q", got)
	}

	got = render(t, "[About](/about/)")
	if strings.Contains(got, "_blank") {
		t.Errorf("relative link should stay in the tab: %q", got)
	}

	got = render(t, "[x](javascript:alert(1))")
	if strings.Contains(got, "javascript:") {
		t.Errorf("javascript URL survived: %q", got)
	}
}

func TestRenderCodeBlock(t *testing.T) {
	got := render(t, "```go\nfmt.Println(\"<hi>\")\n```")
	if !strings.Contains(got, `<pre><code class="language-go">`) {
		t.Errorf("missing language class: %q", got)
	}
	if !strings.Contains(got, "&lt;hi&gt;") {
		t.Errorf("code not escaped: %q", got)
	}
}

func TestRenderLists(t *testing.T) {
	got := render(t, "- one\n- two\n\n1. first\n2. **second**\n\nafter")
	for _, want := range []string{"<ul>", "<li>one</li>", "<ol>", "<li><strong>second</strong></li>", "<p>after</p>"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestRenderStripsUnsafeHTML(t *testing.T) {
	got := render(t, "hello <script>alert(1)</script> <img src=x onerror=alert(1)>")
	if strings.Contains(got, "<script") || strings.Contains(got, "onerror") {
		t.Errorf("unsafe HTML survived: %q", got)
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("| a | b |\n|---|---|\n| 1 | 2 |").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<table>") {
		t.Errorf("table not rendered: %q", buf.String())
	}
}

func TestExcerpt(t *testing.T) {
	src := "# Launch day\n\nWe shipped **the new console** today & it is fast."
	if got, want := Excerpt(src, 200), "Launch day We shipped the new console today & it is fast."; got != want {
		t.Errorf("Excerpt = %q, want %q", got, want)
	}
	if got, want := Excerpt(src, 20), "Launch day We…"; got != want {
		t.Errorf("Excerpt = %q, want %q", got, want)
	}
}

func TestSafeURL(t *testing.T) {
	tests := map[string]string{
		"/uploads/a.jpg":               "/uploads/a.jpg",
		"https://example.com/?a=1&b=2": "https://example.com/?a=1&amp;b=2",
		"javascript:alert(1)":          "",
		"mailto:hi@example.com":        "mailto:hi@example.com",
		"":                             "",
		"no-scheme":                    "",
	}
	for in, want := range tests {
		if got := SafeURL(in); got != want {
			t.Errorf("SafeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
