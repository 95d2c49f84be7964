package hooks

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/deps"
	isleerrors "github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/island"
	"github.com/conneroisu/isle/internal/loader"
)

const (
	root   = "/proj/src"
	server = "file:///proj/src/server.js"
)

var (
	clientSuffixes    = []string{".client.js", ".client.jsx", ".client.ts", ".client.tsx"}
	universalSuffixes = []string{".universal.js", ".universal.jsx", ".universal.ts", ".universal.tsx"}
)

type memSink struct {
	mu    sync.Mutex
	files map[string]string
}

func (s *memSink) WriteAsset(ctx context.Context, rel string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = string(content)
	return nil
}

type fixture struct {
	chain    *loader.Chain
	reporter *Reporter
	peer     channel.Endpoint[deps.DependencyRecord]
	sink     *memSink
	registry *PrefixRegistry
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(root, name), []byte(content), 0o644))
	}

	a, b := channel.Pair[deps.DependencyRecord](64)
	f := &fixture{
		reporter: NewReporter(a),
		peer:     b,
		sink:     &memSink{files: make(map[string]string)},
		registry: NewPrefixRegistry(),
	}

	project := Project{SourceRoot: root, PublicBase: "/static"}
	chain, err := loader.NewChain(loader.NewFSFallback(fs),
		NewRootPathHook(root),
		BuiltinHook{},
		NewCSSHook(project, ".module.css", f.sink, f.registry),
		NewClientOnlyHook(project, clientSuffixes, f.reporter),
		NewUniversalHook(project, universalSuffixes, f.reporter),
	)
	require.NoError(t, err)
	f.chain = chain
	return f
}

func (f *fixture) reported(t *testing.T) []deps.DependencyRecord {
	t.Helper()
	require.NoError(t, f.reporter.Close())

	var out []deps.DependencyRecord
	for {
		rec, err := f.peer.Receive(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestRootPathHookRewritesRootSpecifiers(t *testing.T) {
	f := newFixture(t, map[string]string{"components/nav.js": "export default 1;"})

	mod, err := f.chain.Import(context.Background(), "/components/nav.js", "file:///proj/src/pages/deep/page.js")
	require.NoError(t, err)
	assert.Equal(t, "file:///proj/src/components/nav.js", mod.URL)

	_, err = f.chain.Import(context.Background(), "//cdn.example.com/x.js", server)
	assert.ErrorIs(t, err, isleerrors.ErrResolution)
}

func TestBuiltinHookServesIslandRuntime(t *testing.T) {
	f := newFixture(t, nil)

	mod, err := f.chain.Import(context.Background(), IslandModule, server)
	require.NoError(t, err)
	assert.Equal(t, IslandModule, mod.URL)
	assert.Equal(t, loader.FormatBuiltin, mod.Format)
	assert.Equal(t, island.ClientModuleSource, mod.Source)
}

func TestCSSHookScopesClasses(t *testing.T) {
	f := newFixture(t, map[string]string{
		"styles/card.module.css": ".title { color: red; }\n.title:hover, .body .title { color: blue; }\n",
	})

	mod, err := f.chain.Import(context.Background(), "./styles/card.module.css", server)
	require.NoError(t, err)

	prefix := Prefix("styles/card.module.css")
	assert.Equal(t, loader.FormatModule, mod.Format)
	assert.Equal(t, `export default {"title":"`+prefix+`title","body":"`+prefix+`body"};`+"\n", mod.Source)

	asset := f.sink.files["styles/card.module.css"]
	assert.Equal(t, 3, strings.Count(asset, "."+prefix+"title"))
	assert.Contains(t, asset, "."+prefix+"body")
	assert.NotContains(t, asset, " .title")
}

func TestCSSHookDistinctFilesNeverCollide(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a/x.module.css": ".title{}",
		"b/x.module.css": ".title{}",
	})

	a, err := f.chain.Import(context.Background(), "./a/x.module.css", server)
	require.NoError(t, err)
	b, err := f.chain.Import(context.Background(), "./b/x.module.css", server)
	require.NoError(t, err)

	assert.NotEqual(t, a.Source, b.Source)
	assert.NotEqual(t, Prefix("a/x.module.css"), Prefix("b/x.module.css"))
}

func TestCSSHookIsDeterministic(t *testing.T) {
	src := ".a{} .b .a{} .c{}"
	first, firstMap := ScopeCSS(Prefix("s.module.css"), src)
	second, secondMap := ScopeCSS(Prefix("s.module.css"), src)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b", "c"}, keys(firstMap))
	assert.Equal(t, keys(firstMap), keys(secondMap))
}

func TestCSSHookEmptyStylesheet(t *testing.T) {
	f := newFixture(t, map[string]string{"empty.module.css": ""})

	mod, err := f.chain.Import(context.Background(), "./empty.module.css", server)
	require.NoError(t, err)
	assert.Equal(t, "export default {};\n", mod.Source)
}

func TestCSSHookLeavesPlainStylesheets(t *testing.T) {
	f := newFixture(t, map[string]string{"global.css": ".title{}"})

	mod, err := f.chain.Import(context.Background(), "./global.css", server)
	require.NoError(t, err)
	assert.Equal(t, ".title{}", mod.Source)
	assert.Equal(t, loader.FormatCSS, mod.Format)
	assert.Empty(t, f.sink.files)
}

func TestCSSHookRewritesOutsideSelectors(t *testing.T) {
	out, _ := ScopeCSS("p_", `.a { background: url(bg.png); } /* .note */`)
	assert.Contains(t, out, "url(bg.p_png)")
	assert.Contains(t, out, "/* .p_note */")
}

func TestPrefixRegistryDetectsCollision(t *testing.T) {
	r := NewPrefixRegistry()

	p, err := r.Claim("a.module.css")
	require.NoError(t, err)
	again, err := r.Claim("a.module.css")
	require.NoError(t, err)
	assert.Equal(t, p, again)

	r.owners[Prefix("b.module.css")] = "other.module.css"
	_, err = r.Claim("b.module.css")
	assert.ErrorIs(t, err, isleerrors.ErrTransform)
}

func TestClientOnlyHookReportsOnceAndStubs(t *testing.T) {
	f := newFixture(t, map[string]string{
		"components/map.client.js": "window.map = true;",
		"pages/a.js":               "",
		"pages/b.js":               "",
	})

	for _, parent := range []string{"file:///proj/src/pages/a.js", "file:///proj/src/pages/b.js"} {
		mod, err := f.chain.Import(context.Background(), "../components/map.client.js", parent)
		require.NoError(t, err)
		assert.Equal(t, `export default "/static/components/map.client.js";`+"\n", mod.Source)
	}
	_, err := f.chain.Import(context.Background(), "/components/map.client.js", server)
	require.NoError(t, err)

	records := f.reported(t)
	require.Len(t, records, 1)
	assert.Equal(t, deps.DependencyRecord{
		URL:          "file:///proj/src/components/map.client.js",
		Specifier:    "../components/map.client.js",
		RelativePath: "components/map.client.js",
	}, records[0])
}

func TestUniversalHookGeneratesStub(t *testing.T) {
	f := newFixture(t, map[string]string{
		"components/counter.universal.jsx": "export default function Counter(p) { return `<b>${p.n}</b>`; }",
	})

	mod, err := f.chain.Import(context.Background(), "./components/counter.universal.jsx", server)
	require.NoError(t, err)

	want := `import Component from "./counter.universal.jsx?isle=original";
import { wrap } from "isle:island";
export * from "./counter.universal.jsx?isle=original";
export default function Counter(...args) {
  return wrap("/components/counter.universal.jsx", Component, ...args);
}
`
	assert.Equal(t, want, mod.Source)

	// The stub's own import reaches the real component without rewrapping.
	original, err := f.chain.Import(context.Background(), "./counter.universal.jsx?isle=original", mod.URL)
	require.NoError(t, err)
	assert.Contains(t, original.Source, "return `<b>")
	assert.Equal(t, "file:///proj/src/components/counter.universal.jsx?isle=original", original.URL)

	records := f.reported(t)
	require.Len(t, records, 1)
	assert.Equal(t, "components/counter.universal.jsx", records[0].RelativePath)
}

func TestUniversalAndClientReportedTogether(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.universal.tsx": "",
		"b.client.tsx":    "",
	})

	for i := 0; i < 3; i++ {
		_, err := f.chain.Import(context.Background(), "./a.universal.tsx", server)
		require.NoError(t, err)
		_, err = f.chain.Import(context.Background(), "./b.client.tsx", server)
		require.NoError(t, err)
	}

	records := f.reported(t)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, f.reporter.Reported())
}

func TestReportFailureFailsResolve(t *testing.T) {
	f := newFixture(t, map[string]string{"w.client.js": ""})
	require.NoError(t, f.peer.Close())

	_, err := f.chain.Import(context.Background(), "./w.client.js", server)
	require.Error(t, err)
	assert.True(t, isleerrors.IsType(err, isleerrors.ErrorTypeChannel))
	assert.Equal(t, 0, f.reporter.Reported())
}

func TestExportName(t *testing.T) {
	tests := map[string]string{
		"counter":      "Counter",
		"user-card":    "UserCard",
		"nav_bar":      "NavBar",
		"myWidget":     "MyWidget",
		"hero.section": "HeroSection",
	}
	for stem, want := range tests {
		assert.Equal(t, want, ExportName(stem), stem)
	}
	assert.True(t, strings.HasPrefix(ExportName("404"), "Island"))
	assert.Equal(t, "Island", ExportName("--"))
}

func TestProjectRel(t *testing.T) {
	p := Project{SourceRoot: root, PublicBase: "/static/"}

	rel, err := p.Rel("file:///proj/src/a/b.js")
	require.NoError(t, err)
	assert.Equal(t, "a/b.js", rel)
	assert.Equal(t, "/static/a/b.js", p.PublicURL(rel))

	_, err = p.Rel("file:///proj/other/b.js")
	assert.ErrorIs(t, err, isleerrors.ErrTransform)
}

func keys(m *ClassRewriteMap) []string {
	var out []string
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
