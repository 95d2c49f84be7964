package deps

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/loader"
)

var (
	staticImport  = regexp.MustCompile(`(?m)(?:^|[;\s])import\s+(?:[\w*${}\s,]+?\s+from\s+)?["']([^"'\n]+)["']`)
	reExport      = regexp.MustCompile(`(?m)(?:^|[;\s])export\s+(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s+from\s+["']([^"'\n]+)["']`)
	dynamicImport = regexp.MustCompile(`\bimport\s*\(\s*["']([^"'\n]+)["']\s*\)`)
)

// scannable lists the extensions whose imports are followed. Other files,
// stylesheets for instance, are recorded but not read.
var scannable = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true,
	".ts": true, ".tsx": true, ".mts": true,
}

// Analyzer computes static import closures over a source tree.
type Analyzer struct {
	fs   afero.Fs
	root string
}

// NewAnalyzer returns an analyzer resolving `/` specifiers against
// sourceRoot.
func NewAnalyzer(fs afero.Fs, sourceRoot string) *Analyzer {
	return &Analyzer{fs: fs, root: sourceRoot}
}

// Specifiers returns the module specifiers a source text imports, in order
// of appearance. Matching is textual, so imports inside comments and string
// literals are also returned.
func Specifiers(src string) []string {
	type hit struct {
		at        int
		specifier string
	}

	var hits []hit
	for _, re := range []*regexp.Regexp{staticImport, reExport, dynamicImport} {
		for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
			hits = append(hits, hit{at: m[2], specifier: src[m[2]:m[3]]})
		}
	}

	slices.SortStableFunc(hits, func(x, y hit) int { return x.at - y.at })

	out := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if !seen[h.specifier] {
			seen[h.specifier] = true
			out = append(out, h.specifier)
		}
	}
	return out
}

// Analyze walks the imports of seeds transitively. Seeds may be file URLs
// or absolute paths. The result holds every reachable file except the seeds,
// sorted by URL. Bare specifiers belong to the package manager and are
// skipped.
func (a *Analyzer) Analyze(ctx context.Context, seeds []string) ([]DependencyRecord, error) {
	visited := make(map[string]bool)
	queue := make([]string, 0, len(seeds))

	for _, s := range seeds {
		p, err := a.seedPath(s)
		if err != nil {
			return nil, err
		}
		if !visited[p] {
			visited[p] = true
			queue = append(queue, p)
		}
	}

	set := NewDependencySet()
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file := queue[0]
		queue = queue[1:]

		if !scannable[strings.ToLower(filepath.Ext(file))] {
			continue
		}

		src, err := afero.ReadFile(a.fs, file)
		if err != nil {
			return nil, errors.NewAnalysisError("READ_FAILED", "cannot read module", err).WithFile(file)
		}

		for _, specifier := range Specifiers(string(src)) {
			target, ok := a.target(file, specifier)
			if !ok {
				continue
			}
			if _, err := a.fs.Stat(target); err != nil {
				return nil, errors.NewAnalysisError("MISSING_IMPORT", "imported file does not exist", err).
					WithFile(file).WithContext("specifier", specifier)
			}
			if visited[target] {
				continue
			}
			visited[target] = true
			queue = append(queue, target)

			rec, err := a.record(target, specifier)
			if err != nil {
				return nil, err
			}
			set.Add(rec)
		}
	}

	return set.Records(), nil
}

// target maps a specifier seen in importer to a file, or reports false for
// specifiers the analysis does not follow.
func (a *Analyzer) target(importer, specifier string) (string, bool) {
	specifier = loader.TrimQuery(specifier)
	switch {
	case loader.IsRelative(specifier):
		return filepath.Join(filepath.Dir(importer), filepath.FromSlash(specifier)), true
	case loader.IsRootPath(specifier):
		return filepath.Join(a.root, filepath.FromSlash(specifier)), true
	case strings.HasPrefix(specifier, "file://"):
		p, err := loader.PathOf(specifier)
		return p, err == nil
	default:
		return "", false
	}
}

func (a *Analyzer) seedPath(seed string) (string, error) {
	if strings.HasPrefix(seed, "file://") {
		p, err := loader.PathOf(seed)
		if err != nil {
			return "", errors.NewAnalysisError("BAD_SEED", "seed is not a file url", err).WithContext("seed", seed)
		}
		return p, nil
	}
	if !filepath.IsAbs(seed) {
		return "", errors.NewAnalysisError("BAD_SEED", "seed must be absolute", nil).WithContext("seed", seed)
	}
	return filepath.Clean(seed), nil
}

func (a *Analyzer) record(file, specifier string) (DependencyRecord, error) {
	rel, err := filepath.Rel(a.root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return DependencyRecord{}, errors.NewAnalysisError("OUTSIDE_ROOT", "import leaves the source root", err).
			WithFile(file).WithContext("specifier", specifier)
	}
	return DependencyRecord{
		URL:          loader.FileURL(file),
		Specifier:    specifier,
		RelativePath: path.Clean(filepath.ToSlash(rel)),
	}, nil
}
