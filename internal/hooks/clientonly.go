package hooks

import (
	"context"

	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/loader"
)

// ClientOnlyHook keeps browser-only modules off the server. Each one is
// reported for bundling and loads as its public URL.
type ClientOnlyHook struct {
	project  Project
	suffixes []string
	reporter *Reporter
}

// NewClientOnlyHook returns a hook matching any of suffixes.
func NewClientOnlyHook(project Project, suffixes []string, reporter *Reporter) *ClientOnlyHook {
	return &ClientOnlyHook{project: project, suffixes: suffixes, reporter: reporter}
}

func (h *ClientOnlyHook) Name() string { return "client-only" }

func (h *ClientOnlyHook) Resolve(ctx context.Context, req loader.LoadRequest, next loader.ResolveFunc) (loader.HookResult, error) {
	res, err := next(ctx, req)
	if err != nil {
		return res, err
	}
	if _, ok := matchSuffix(res.ResolvedURL, h.suffixes); !ok {
		return res, nil
	}

	rec, err := recordFor(h.project, req.Specifier, res.ResolvedURL)
	if err != nil {
		return loader.HookResult{}, err
	}
	if err := h.reporter.Report(ctx, rec); err != nil {
		return loader.HookResult{}, err
	}
	return res, nil
}

func (h *ClientOnlyHook) Load(ctx context.Context, req loader.ModuleRequest, next loader.LoadFunc) (loader.HookResult, error) {
	if _, ok := matchSuffix(req.URL, h.suffixes); !ok {
		return next(ctx, req)
	}

	rel, err := h.project.Rel(req.URL)
	if err != nil {
		return loader.HookResult{}, err
	}

	return loader.HookResult{
		Source:       "export default " + jsString(h.project.PublicURL(rel)) + ";\n",
		Format:       loader.FormatModule,
		ShortCircuit: true,
	}, nil
}

func recordFor(project Project, specifier, resolvedURL string) (deps.DependencyRecord, error) {
	u := loader.TrimQuery(resolvedURL)
	rel, err := project.Rel(u)
	if err != nil {
		return deps.DependencyRecord{}, err
	}
	return deps.DependencyRecord{
		URL:          u,
		Specifier:    specifier,
		RelativePath: rel,
	}, nil
}
