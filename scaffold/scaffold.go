// Package scaffold writes a starter panelengine site: a config file, an
// example environment file and the public assets the server expects.
package scaffold

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Templates contains all scaffold template files.
// Files use Go text/template syntax and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

// Data holds the template variables passed to every scaffold template.
type Data struct {
	SiteName      string
	RootDomain    string
	SessionSecret string
}

// NewData derives the site name from dir and generates a session secret.
func NewData(dir, rootDomain string) (Data, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return Data{}, fmt.Errorf("generate session secret: %w", err)
	}
	if rootDomain == "" {
		rootDomain = "localhost"
	}
	return Data{
		SiteName:      Title(filepath.Base(dir)),
		RootDomain:    rootDomain,
		SessionSecret: hex.EncodeToString(secret),
	}, nil
}

// Write renders every template into dir, which must not exist yet. It
// returns the created paths in walk order.
func Write(dir string, data Data) ([]string, error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("directory %q already exists", dir)
	}
	const root = "templates"
	var created []string
	err := fs.WalkDir(Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out := strings.TrimSuffix(filepath.Join(dir, rel), ".tmpl")
		if filepath.Base(out) == "dotenv" {
			out = filepath.Join(filepath.Dir(out), ".env.example")
		}
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}

		content, err := Templates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", path, err)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		if err := tmpl.Execute(f, data); err != nil {
			return fmt.Errorf("execute template %s: %w", path, err)
		}
		created = append(created, out)
		return nil
	})
	return created, err
}

// Title converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-panel" -> "My Panel"
func Title(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
