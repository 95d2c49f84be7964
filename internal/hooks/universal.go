package hooks

import (
	"context"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/isle/internal/loader"
)

// OriginalDirective marks the import of a universal component's real source.
const OriginalDirective = "original"

// UniversalHook reports universal components for bundling and replaces each
// one with a stub that renders it through the island wrapper.
type UniversalHook struct {
	project  Project
	suffixes []string
	reporter *Reporter
}

// NewUniversalHook returns a hook matching any of suffixes.
func NewUniversalHook(project Project, suffixes []string, reporter *Reporter) *UniversalHook {
	return &UniversalHook{project: project, suffixes: suffixes, reporter: reporter}
}

func (h *UniversalHook) Name() string { return "universal" }

func (h *UniversalHook) Resolve(ctx context.Context, req loader.LoadRequest, next loader.ResolveFunc) (loader.HookResult, error) {
	res, err := next(ctx, req)
	if err != nil {
		return res, err
	}
	if !h.wraps(res.ResolvedURL) {
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

func (h *UniversalHook) Load(ctx context.Context, req loader.ModuleRequest, next loader.LoadFunc) (loader.HookResult, error) {
	if !h.wraps(req.URL) {
		return next(ctx, req)
	}

	suffix, _ := matchSuffix(req.URL, h.suffixes)
	rel, err := h.project.Rel(req.URL)
	if err != nil {
		return loader.HookResult{}, err
	}

	return loader.HookResult{
		Source:       UniversalStub(rel, suffix),
		Format:       loader.FormatModule,
		ShortCircuit: true,
	}, nil
}

// wraps reports whether url is a universal module that has not already
// been unwrapped by the directive.
func (h *UniversalHook) wraps(moduleURL string) bool {
	if loader.Directive(moduleURL) == OriginalDirective {
		return false
	}
	_, ok := matchSuffix(moduleURL, h.suffixes)
	return ok
}

// UniversalStub returns the module that replaces the universal component at
// rel on the server.
func UniversalStub(rel, suffix string) string {
	base := path.Base(rel)
	original := jsString(loader.WithDirective("./"+base, OriginalDirective))

	var b strings.Builder
	b.WriteString("import Component from " + original + ";\n")
	b.WriteString("import { wrap } from " + jsString(IslandModule) + ";\n")
	b.WriteString("export * from " + original + ";\n")
	b.WriteString("export default function " + ExportName(strings.TrimSuffix(base, suffix)) + "(...args) {\n")
	b.WriteString("  return wrap(" + jsString("/"+rel) + ", Component, ...args);\n")
	b.WriteString("}\n")
	return b.String()
}

// ExportName turns a file stem such as "user-card" into "UserCard".
func ExportName(stem string) string {
	words := strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		// A Caser holds state and cannot be shared across goroutines.
		b.WriteString(cases.Title(language.Und, cases.NoLower).String(w))
	}

	name := b.String()
	if name == "" || unicode.IsDigit([]rune(name)[0]) {
		name = "Island" + name
	}
	return name
}
