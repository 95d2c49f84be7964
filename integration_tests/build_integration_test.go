package integration_tests

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/isle/internal/build"
	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/logging"
	"github.com/conneroisu/isle/internal/watcher"
)

func writeProject(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func options(dir string) build.Options {
	return build.Options{
		SourceRoot:        filepath.Join(dir, "src"),
		OutDir:            filepath.Join(dir, ".isle"),
		Entries:           []string{filepath.Join(dir, "src", "server.js")},
		Workers:           2,
		PublicBase:        "/static",
		ClientSuffixes:    []string{".client.js"},
		UniversalSuffixes: []string{".universal.jsx"},
		CSSModuleSuffix:   ".module.css",
		AnalyzerTimeout:   5 * time.Second,
	}
}

func manifestPaths(t *testing.T, outDir string) []string {
	t.Helper()
	m, err := build.ReadManifest(afero.NewOsFs(), outDir)
	require.NoError(t, err)
	var out []string
	for _, f := range m.Files {
		out = append(out, f.RelativePath)
	}
	return out
}

func TestBuildIntegration_WebSocketAnalyzer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	writeProject(t, dir, map[string]string{
		"src/server.js":                        `import Counter from "./components/counter.universal.jsx";`,
		"src/components/counter.universal.jsx": `import styles from "./counter.module.css"; import { n } from "./n.js";`,
		"src/components/counter.module.css":    `.count { font-weight: bold; }`,
		"src/components/n.js":                  `export const n = 1;`,
	})
	opts := options(dir)
	fs := afero.NewOsFs()

	srv := httptest.NewServer(deps.Handler(deps.NewAnalyzer(fs, opts.SourceRoot), logging.Discard()))
	defer srv.Close()

	b := build.NewBuilder(opts, fs, build.WebSocketAnalyzer("ws"+strings.TrimPrefix(srv.URL, "http")), logging.Discard(), nil)
	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"components/counter.universal.jsx"}, result.Manifest.Entries)
	assert.Equal(t, []string{
		"components/counter.module.css",
		"components/counter.universal.jsx",
		"components/n.js",
	}, manifestPaths(t, opts.OutDir))

	assert.FileExists(t, filepath.Join(opts.OutDir, "assets", "components", "counter.module.css"))
	assert.FileExists(t, filepath.Join(opts.OutDir, "server", "_isle", "island.js"))
}

func TestBuildIntegration_WatchRebuilds(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	writeProject(t, dir, map[string]string{
		"src/server.js":   `import A from "./a.client.js";`,
		"src/a.client.js": `export default 1;`,
	})
	opts := options(dir)
	fs := afero.NewOsFs()
	b := build.NewBuilder(opts, fs, build.InlineAnalyzer(fs, opts.SourceRoot, nil), logging.Discard(), nil)

	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.client.js"}, manifestPaths(t, opts.OutDir))

	fw, err := watcher.NewFileWatcher(50*time.Millisecond, logging.Discard())
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoOutputFilter(opts.OutDir))

	rebuilt := make(chan error, 10)
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		_, err := b.Run(ctx)
		rebuilt <- err
		return err
	})
	require.NoError(t, fw.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	writeProject(t, dir, map[string]string{
		"src/a.client.js": `import "./b.js"; export default 1;`,
		"src/b.js":        `export const b = 2;`,
	})

	deadline := time.After(10 * time.Second)
	for {
		select {
		case err := <-rebuilt:
			if err != nil {
				// A rebuild may race the second write; the next batch fixes it.
				continue
			}
			paths := manifestPaths(t, opts.OutDir)
			if len(paths) == 2 {
				assert.Equal(t, []string{"a.client.js", "b.js"}, paths)
				return
			}
		case <-deadline:
			t.Fatal("manifest never picked up the new import")
		}
	}
}
