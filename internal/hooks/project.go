// Package hooks holds the resolve and load interceptors isle installs on
// the loader chain, along with the per-build state they share.
package hooks

import (
	"encoding/json"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/loader"
)

// Project locates modules relative to the source root.
type Project struct {
	// SourceRoot is the absolute directory that `/` specifiers start from.
	SourceRoot string

	// PublicBase is the URL prefix client assets are served under.
	PublicBase string
}

// Rel returns the slash-separated path of a module URL relative to the
// source root.
func (p Project) Rel(moduleURL string) (string, error) {
	file, err := loader.PathOf(moduleURL)
	if err != nil {
		return "", errors.NewTransformError("BAD_URL", moduleURL, "module url is not a file", err)
	}

	rel, err := filepath.Rel(p.SourceRoot, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewTransformError("OUTSIDE_ROOT", moduleURL,
			"module lives outside the source root "+p.SourceRoot, err)
	}
	return filepath.ToSlash(rel), nil
}

// PublicURL returns the browser-servable path of a source-relative file.
func (p Project) PublicURL(rel string) string {
	base := p.PublicBase
	if base == "" {
		base = "/"
	}
	return path.Join(base, rel)
}

// matchSuffix reports the first suffix the URL's path ends with.
func matchSuffix(moduleURL string, suffixes []string) (string, bool) {
	p := loader.TrimQuery(moduleURL)
	for _, s := range suffixes {
		if strings.HasSuffix(p, s) {
			return s, true
		}
	}
	return "", false
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
