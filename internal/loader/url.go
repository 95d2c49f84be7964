package loader

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DirectiveKey is the query parameter hooks use to tag generated imports.
const DirectiveKey = "isle"

// FileURL returns the file:// URL for an absolute filesystem path.
func FileURL(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String()
}

// PathOf returns the filesystem path named by a file:// URL, query dropped.
func PathOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file url: %s", raw)
	}
	return filepath.FromSlash(u.Path), nil
}

// TrimQuery drops the query string of a URL or specifier.
func TrimQuery(raw string) string {
	before, _, _ := strings.Cut(raw, "?")
	return before
}

// Directive returns the value of the isle directive on a URL or specifier.
func Directive(raw string) string {
	_, query, found := strings.Cut(raw, "?")
	if !found {
		return ""
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return ""
	}
	return values.Get(DirectiveKey)
}

// WithDirective appends the isle directive to a URL or specifier.
func WithDirective(raw, value string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + DirectiveKey + "=" + url.QueryEscape(value)
}

// IsRelative reports whether a specifier is relative to its importer.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// IsRootPath reports whether a specifier names a file from the source root.
func IsRootPath(specifier string) bool {
	return strings.HasPrefix(specifier, "/") && !strings.HasPrefix(specifier, "//")
}

// FormatFor infers a module format from a path or URL extension.
func FormatFor(p string) ModuleFormat {
	switch strings.ToLower(path.Ext(TrimQuery(p))) {
	case ".css":
		return FormatCSS
	case ".json":
		return FormatJSON
	default:
		return FormatModule
	}
}
