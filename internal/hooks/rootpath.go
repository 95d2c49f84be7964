package hooks

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/conneroisu/isle/internal/loader"
)

// RootPathHook rewrites `/x` specifiers to file URLs under the source root.
// It has to be registered ahead of every suffix-matching hook.
type RootPathHook struct {
	root string
}

// NewRootPathHook returns a hook resolving root paths against sourceRoot.
func NewRootPathHook(sourceRoot string) *RootPathHook {
	return &RootPathHook{root: sourceRoot}
}

func (h *RootPathHook) Name() string { return "root-path" }

func (h *RootPathHook) Resolve(ctx context.Context, req loader.LoadRequest, next loader.ResolveFunc) (loader.HookResult, error) {
	if !loader.IsRootPath(req.Specifier) {
		return next(ctx, req)
	}

	p, query, _ := strings.Cut(req.Specifier, "?")
	rewritten := loader.FileURL(filepath.Join(h.root, filepath.FromSlash(p)))
	if query != "" {
		rewritten += "?" + query
	}

	req.Specifier = rewritten
	return next(ctx, req)
}
