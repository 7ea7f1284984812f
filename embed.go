package panelengine

import (
	"embed"
	"io/fs"
)

// EmbeddedAssets contains static assets shipped with the framework:
// analytics.js (the visitor tracker) and styles.css. htmx.min.js is expected
// in the user's static dir.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// embeddedNames lists the files served under /public/ from EmbeddedAssets.
func embeddedNames() []string {
	entries, err := fs.ReadDir(EmbeddedAssets, "embedded")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}
