package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/isle/internal/errors"
)

// FSFallback resolves relative and file:// specifiers against a filesystem
// and reads module sources from it.
type FSFallback struct {
	fs afero.Fs
}

// NewFSFallback returns a fallback backed by fs.
func NewFSFallback(fs afero.Fs) *FSFallback {
	return &FSFallback{fs: fs}
}

// Resolve implements Fallback. Query directives on the specifier are kept on
// the resolved URL.
func (f *FSFallback) Resolve(ctx context.Context, req LoadRequest) (HookResult, error) {
	pathPart, query, _ := strings.Cut(req.Specifier, "?")

	var target string
	switch {
	case strings.HasPrefix(pathPart, "file://"):
		p, err := PathOf(pathPart)
		if err != nil {
			return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL, err)
		}
		target = p
	case IsRelative(pathPart):
		if req.Parent.ParentURL == "" {
			return HookResult{}, errors.NewResolutionError(req.Specifier, "",
				fmt.Errorf("relative specifier without a parent"))
		}
		parent, err := PathOf(req.Parent.ParentURL)
		if err != nil {
			return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL, err)
		}
		target = filepath.Join(filepath.Dir(parent), filepath.FromSlash(pathPart))
	default:
		return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL,
			fmt.Errorf("bare specifiers are not resolvable"))
	}

	info, err := f.fs.Stat(target)
	if err != nil {
		return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL, err).WithFile(target)
	}
	if info.IsDir() {
		return HookResult{}, errors.NewResolutionError(req.Specifier, req.Parent.ParentURL,
			fmt.Errorf("%s is a directory", target)).WithFile(target)
	}

	resolved := FileURL(target)
	if query != "" {
		resolved += "?" + query
	}

	return HookResult{
		ResolvedURL:  resolved,
		Format:       FormatFor(target),
		ShortCircuit: true,
	}, nil
}

// Load implements Fallback.
func (f *FSFallback) Load(ctx context.Context, req ModuleRequest) (HookResult, error) {
	p, err := PathOf(req.URL)
	if err != nil {
		return HookResult{}, errors.NewTransformError("BAD_URL", req.URL, "cannot load url", err)
	}

	content, err := afero.ReadFile(f.fs, p)
	if err != nil {
		return HookResult{}, errors.WrapIO(err, "READ_FAILED", p)
	}

	format := req.Format
	if format == "" {
		format = FormatFor(p)
	}

	return HookResult{
		Source:       string(content),
		Format:       format,
		ShortCircuit: true,
	}, nil
}
