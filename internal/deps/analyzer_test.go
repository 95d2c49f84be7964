package deps

import (
	"context"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/isle/internal/errors"
)

const srcRoot = "/proj/src"

func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(srcRoot, name), []byte(content), 0o644))
	}
	return fs
}

func TestSpecifiers(t *testing.T) {
	src := `import React from "react";
import { a, b } from './a.js';
import * as ns from "../ns.js";
import "./side-effect.css";
import {
  multi,
  line,
} from "./multi.js";
export { x } from "./x.js";
export * from "./star.js";
export * as all from "./all.js";
const lazy = await import("./lazy.js");
import Orig from "./base.jsx?isle=original";
import "./a.js";
`

	assert.Equal(t, []string{
		"react",
		"./a.js",
		"../ns.js",
		"./side-effect.css",
		"./multi.js",
		"./x.js",
		"./star.js",
		"./all.js",
		"./lazy.js",
		"./base.jsx?isle=original",
	}, Specifiers(src))
}

func TestSpecifiersIgnoresNonImports(t *testing.T) {
	src := `const important = 1;
export default function reimport() {}
const s = "from './nope.js'";
`
	assert.Empty(t, Specifiers(src))
}

func TestAnalyzeTransitiveClosure(t *testing.T) {
	fs := memTree(t, map[string]string{
		"islands/map.client.js": `import { draw } from "./draw.js"; import "/lib/geo.js"; import L from "leaflet";`,
		"islands/draw.js":       `import { geo } from "/lib/geo.js"; import "./map.client.js";`,
		"lib/geo.js":            `export * from "./units.js"; import("./lazy.js");`,
		"lib/units.js":          `export const m = 1;`,
		"lib/lazy.js":           `import "./styles.css";`,
		"lib/styles.css":        `@import "./never-followed.css";`,
	})

	a := NewAnalyzer(fs, srcRoot)
	records, err := a.Analyze(context.Background(), []string{"file:///proj/src/islands/map.client.js"})
	require.NoError(t, err)

	var rels []string
	for _, r := range records {
		rels = append(rels, r.RelativePath)
	}
	assert.Equal(t, []string{
		"islands/draw.js",
		"lib/geo.js",
		"lib/lazy.js",
		"lib/styles.css",
		"lib/units.js",
	}, rels)

	assert.Equal(t, "file:///proj/src/islands/draw.js", records[0].URL)
	assert.Equal(t, "./draw.js", records[0].Specifier)
}

func TestAnalyzeExcludesSeeds(t *testing.T) {
	fs := memTree(t, map[string]string{
		"a.client.js": `import "./b.client.js"; import "./shared.js";`,
		"b.client.js": `import "./shared.js";`,
		"shared.js":   ``,
	})

	a := NewAnalyzer(fs, srcRoot)
	records, err := a.Analyze(context.Background(), []string{
		"/proj/src/a.client.js",
		"file:///proj/src/b.client.js",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "shared.js", records[0].RelativePath)
}

func TestAnalyzeMissingImport(t *testing.T) {
	fs := memTree(t, map[string]string{
		"a.client.js": `import "./gone.js";`,
	})

	_, err := NewAnalyzer(fs, srcRoot).Analyze(context.Background(), []string{"/proj/src/a.client.js"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAnalysis)
	assert.Equal(t, "/proj/src/a.client.js", errors.FilePathOf(err))
}

func TestAnalyzeRejectsRelativeSeeds(t *testing.T) {
	_, err := NewAnalyzer(afero.NewMemMapFs(), srcRoot).Analyze(context.Background(), []string{"a.js"})
	assert.ErrorIs(t, err, errors.ErrAnalysis)
}

func TestAnalyzeRejectsEscapingImports(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/src/a.client.js", []byte(`import "../../outside.js";`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/outside.js", nil, 0o644))

	_, err := NewAnalyzer(fs, srcRoot).Analyze(context.Background(), []string{"/proj/src/a.client.js"})
	assert.ErrorIs(t, err, errors.ErrAnalysis)
}

func TestDependencySet(t *testing.T) {
	set := NewDependencySet()
	assert.True(t, set.Add(DependencyRecord{URL: "file:///b", Specifier: "./b"}))
	assert.True(t, set.Add(DependencyRecord{URL: "file:///a", Specifier: "./a"}))
	assert.False(t, set.Add(DependencyRecord{URL: "file:///b", Specifier: "/b"}))
	assert.Equal(t, 1, set.AddAll([]DependencyRecord{{URL: "file:///a"}, {URL: "file:///c"}}))

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"file:///a", "file:///b", "file:///c"}, set.URLs())
	assert.Equal(t, "./b", set.Records()[1].Specifier)
}
