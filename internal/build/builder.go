package build

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/config"
	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/hooks"
	"github.com/conneroisu/isle/internal/loader"
	"github.com/conneroisu/isle/internal/logging"
	"github.com/conneroisu/isle/internal/metrics"
)

// islandRuntimePath is where the isle:island module is written.
const islandRuntimePath = "_isle/island.js"

// reportBuffer is the capacity of the reporter to collector channel.
const reportBuffer = 64

// Options configures a Builder.
type Options struct {
	SourceRoot        string
	OutDir            string
	Entries           []string
	Workers           int
	PublicBase        string
	ClientSuffixes    []string
	UniversalSuffixes []string
	CSSModuleSuffix   string
	AnalyzerTimeout   time.Duration
}

// OptionsFromConfig resolves the configured paths to absolute ones.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	root, err := cfg.SourceRoot()
	if err != nil {
		return Options{}, errors.NewConfigError("BAD_PATH", "cannot resolve source root: "+err.Error())
	}
	out, err := cfg.OutDir()
	if err != nil {
		return Options{}, errors.NewConfigError("BAD_PATH", "cannot resolve output directory: "+err.Error())
	}

	entries := make([]string, 0, len(cfg.Project.Entries))
	for _, e := range cfg.Project.Entries {
		abs, err := filepath.Abs(filepath.Join(cfg.Project.Root, e))
		if err != nil {
			return Options{}, errors.NewConfigError("BAD_PATH", "cannot resolve entry "+e)
		}
		entries = append(entries, abs)
	}

	return Options{
		SourceRoot:        root,
		OutDir:            out,
		Entries:           entries,
		Workers:           cfg.Build.Workers,
		PublicBase:        cfg.Build.PublicBase,
		ClientSuffixes:    cfg.Conventions.ClientSuffixes,
		UniversalSuffixes: cfg.Conventions.UniversalSuffixes,
		CSSModuleSuffix:   cfg.Conventions.CSSModuleSuffix,
		AnalyzerTimeout:   cfg.Analyzer.Timeout,
	}, nil
}

// Result describes a published build.
type Result struct {
	BuildID  string
	Manifest Manifest
	Modules  int
	Outputs  []string
	Duration time.Duration
}

// Builder runs builds. A Builder may run many builds; each gets its own
// Session and shares nothing with the others.
type Builder struct {
	opts     Options
	fs       afero.Fs
	analyzer AnalyzerFactory
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// NewBuilder returns a builder reading sources from and writing outputs to fs.
func NewBuilder(opts Options, fs afero.Fs, analyzer AnalyzerFactory, logger logging.Logger, m *metrics.Metrics) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Builder{
		opts:     opts,
		fs:       fs,
		analyzer: analyzer,
		logger:   logger.WithComponent("build"),
		metrics:  m,
	}
}

// Metrics returns the collectors the builder records into.
func (b *Builder) Metrics() *metrics.Metrics {
	return b.metrics
}

// Run performs one build. On failure nothing is published and the previous
// manifest, if any, is left untouched. The session is always closed, which
// stops the analysis worker and removes the staging directory.
func (b *Builder) Run(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	defer func() {
		b.metrics.BuildFinished(time.Since(start), err)
	}()

	session, err := NewSession(b.fs, b.opts.OutDir)
	if err != nil {
		return nil, err
	}
	logger := b.logger.With("build_id", session.ID.String())
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn(ctx, cerr, "build cleanup failed")
		}
	}()

	perf := logging.StartOperation(logger, "build")
	logger.Info(ctx, "build started", "entries", len(b.opts.Entries), "workers", b.opts.Workers)

	result, err = b.run(ctx, session, logger)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	result.Duration = time.Since(start)
	perf.End(ctx, "modules", result.Modules, "client_files", len(result.Manifest.Files))
	return result, nil
}

func (b *Builder) run(ctx context.Context, session *Session, logger logging.Logger) (*Result, error) {
	conn, err := b.analyzer(ctx, session)
	if err != nil {
		return nil, err
	}
	session.OnShutdown(conn.Close)

	reportEP, collectEP := channel.Pair[deps.DependencyRecord](reportBuffer)
	reporter := hooks.NewReporter(reportEP)
	collector := deps.NewCollector(conn, b.opts.AnalyzerTimeout, logger)

	out := NewOutput(b.fs, session.StagingDir())
	project := hooks.Project{SourceRoot: b.opts.SourceRoot, PublicBase: b.opts.PublicBase}

	chain, err := loader.NewChain(loader.NewFSFallback(b.fs),
		hooks.NewRootPathHook(b.opts.SourceRoot),
		hooks.BuiltinHook{},
		hooks.NewCSSHook(project, b.opts.CSSModuleSuffix, out, hooks.NewPrefixRegistry()),
		hooks.NewClientOnlyHook(project, b.opts.ClientSuffixes, reporter),
		hooks.NewUniversalHook(project, b.opts.UniversalSuffixes, reporter),
	)
	if err != nil {
		return nil, err
	}
	chain.SetObserver(b.metrics)

	gathered := make(chan error, 1)
	go func() {
		gathered <- collector.Gather(ctx, collectEP)
	}()

	modules, walkErr := b.walk(ctx, chain, project, out)
	closeErr := reporter.Close()
	gatherErr := <-gathered

	switch {
	case walkErr != nil:
		return nil, walkErr
	case closeErr != nil:
		return nil, closeErr
	case gatherErr != nil:
		return nil, gatherErr
	}

	entries := collector.Set().Records()
	logger.Debug(ctx, "module graph walked", "modules", modules, "client_entries", len(entries))

	analysisStart := time.Now()
	files, err := collector.Closure(ctx)
	b.metrics.AnalysisFinished(time.Since(analysisStart))
	if err != nil {
		return nil, err
	}

	for _, rec := range files {
		if err := b.copyClient(out, rec); err != nil {
			return nil, err
		}
	}

	manifest := Manifest{
		BuildID: session.ID.String(),
		Entries: make([]string, 0, len(entries)),
		Files:   files,
	}
	for _, rec := range entries {
		manifest.Entries = append(manifest.Entries, rec.RelativePath)
	}

	outputs := out.Files()
	if err := out.Publish(b.opts.OutDir, manifest); err != nil {
		return nil, err
	}
	b.metrics.SetClientFiles(len(files))

	return &Result{
		BuildID:  manifest.BuildID,
		Manifest: manifest,
		Modules:  modules,
		Outputs:  outputs,
	}, nil
}

func (b *Builder) copyClient(out *Output, rec deps.DependencyRecord) error {
	p, err := loader.PathOf(rec.URL)
	if err != nil {
		return errors.NewTransformError("BAD_URL", rec.URL, "client file is not a file url", err)
	}
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return errors.WrapIO(err, "READ_FAILED", p)
	}
	return out.WriteClient(rec.RelativePath, data)
}

// walk imports every entry and, transitively, every module they import.
// Each module is resolved and loaded once; the first failure cancels the
// rest of the walk.
func (b *Builder) walk(ctx context.Context, chain *loader.Chain, project hooks.Project, out *Output) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	w := &walker{
		ctx:     gctx,
		g:       g,
		sem:     semaphore.NewWeighted(int64(b.opts.Workers)),
		chain:   chain,
		project: project,
		out:     out,
		metrics: b.metrics,
		seen:    make(map[string]struct{}),
	}

	for _, entry := range b.opts.Entries {
		w.visit(loader.FileURL(entry), "")
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(w.seen), nil
}

type walker struct {
	ctx     context.Context
	g       *errgroup.Group
	sem     *semaphore.Weighted
	chain   *loader.Chain
	project hooks.Project
	out     *Output
	metrics *metrics.Metrics

	mu   sync.Mutex
	seen map[string]struct{}
}

// visit schedules specifier for import. New goroutines are always started
// while the caller's own goroutine is still counted, so g.Wait cannot return
// early.
func (w *walker) visit(specifier, parentURL string) {
	w.g.Go(func() error {
		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			return err
		}
		defer w.sem.Release(1)
		return w.module(specifier, parentURL)
	})
}

func (w *walker) module(specifier, parentURL string) error {
	resolved, err := w.chain.Resolve(w.ctx, loader.LoadRequest{
		Specifier: specifier,
		Parent:    loader.ResolutionContext{ParentURL: parentURL},
	})
	if err != nil {
		return err
	}
	if !w.claim(resolved.ResolvedURL) {
		return nil
	}

	loaded, err := w.chain.Load(w.ctx, loader.ModuleRequest{URL: resolved.ResolvedURL, Format: resolved.Format})
	if err != nil {
		return err
	}
	w.metrics.ModuleLoaded(loaded.Format)

	if err := w.write(resolved.ResolvedURL, loaded); err != nil {
		return err
	}

	if loaded.Format != loader.FormatModule {
		return nil
	}
	for _, specifier := range deps.Specifiers(loaded.Source) {
		if follows(specifier) {
			w.visit(specifier, resolved.ResolvedURL)
		}
	}
	return nil
}

func (w *walker) claim(moduleURL string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[moduleURL]; ok {
		return false
	}
	w.seen[moduleURL] = struct{}{}
	return true
}

func (w *walker) write(moduleURL string, loaded loader.HookResult) error {
	if moduleURL == hooks.IslandModule {
		return w.out.WriteServer(islandRuntimePath, loaded.Source)
	}
	rel, err := w.project.Rel(moduleURL)
	if err != nil {
		return err
	}
	target := serverPath(rel, loader.Directive(moduleURL))
	source := loaded.Source
	if loaded.Format == loader.FormatModule {
		source = linkSpecifiers(target, source)
	}
	return w.out.WriteServer(target, source)
}

// linkSpecifiers points the directive and isle: imports of the server module
// published at from at the files they are published as, so the server tree
// runs without the loader.
func linkSpecifiers(from, source string) string {
	for _, specifier := range deps.Specifiers(source) {
		linked, ok := linkTarget(from, specifier)
		if !ok {
			continue
		}
		for _, q := range []string{`"`, "'"} {
			source = strings.ReplaceAll(source, q+specifier+q, q+linked+q)
		}
	}
	return source
}

func linkTarget(from, specifier string) (string, bool) {
	var target string
	switch {
	case specifier == hooks.IslandModule:
		target = islandRuntimePath
	case loader.Directive(specifier) == "":
		return "", false
	case loader.IsRelative(specifier):
		target = path.Join(path.Dir(from), loader.TrimQuery(specifier))
	case loader.IsRootPath(specifier):
		target = strings.TrimPrefix(loader.TrimQuery(specifier), "/")
	default:
		return "", false
	}
	if target != islandRuntimePath {
		target = serverPath(target, loader.Directive(specifier))
	}

	linked, err := filepath.Rel(path.Dir(from), target)
	if err != nil {
		return "", false
	}
	linked = filepath.ToSlash(linked)
	if !strings.HasPrefix(linked, "../") {
		linked = "./" + linked
	}
	return linked, true
}

// follows reports whether the walk descends into specifier. Bare specifiers
// belong to the package manager.
func follows(specifier string) bool {
	return loader.IsRelative(specifier) ||
		loader.IsRootPath(specifier) ||
		strings.HasPrefix(specifier, "file://") ||
		strings.HasPrefix(specifier, "isle:")
}
