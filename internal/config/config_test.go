package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	isleerrors "github.com/conneroisu/isle/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, "src", cfg.Project.Source)
	assert.Equal(t, []string{"src/server.js"}, cfg.Project.Entries)
	assert.Equal(t, ".isle", cfg.Build.Out)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, "/static", cfg.Build.PublicBase)
	assert.Contains(t, cfg.Conventions.ClientSuffixes, ".client.js")
	assert.Contains(t, cfg.Conventions.UniversalSuffixes, ".universal.jsx")
	assert.Equal(t, ".module.css", cfg.Conventions.CSSModuleSuffix)
	assert.Equal(t, AnalyzerProcess, cfg.Analyzer.Mode)
	assert.Equal(t, 30*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".isle.yml")
	content := `
project:
  source: web
  entries:
    - web/entry.js
build:
  workers: 2
analyzer:
  mode: inline
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "web", cfg.Project.Source)
	assert.Equal(t, []string{"web/entry.js"}, cfg.Project.Entries)
	assert.Equal(t, 2, cfg.Build.Workers)
	assert.Equal(t, AnalyzerInline, cfg.Analyzer.Mode)
	assert.Equal(t, 5*time.Second, cfg.Analyzer.Timeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		code  string
	}{
		{"zero workers", "build.workers", 0, "BAD_WORKERS"},
		{"relative public base", "build.public_base", "static", "BAD_PUBLIC_BASE"},
		{"unknown analyzer", "analyzer.mode", "carrier-pigeon", "BAD_ANALYZER_MODE"},
		{"websocket without url", "analyzer.mode", AnalyzerWebSocket, "BAD_ANALYZER_URL"},
		{"overlapping suffix", "conventions.universal_suffixes", []string{".client.js"}, "OVERLAPPING_SUFFIX"},
		{"suffix without dot", "conventions.css_module_suffix", "module.css", "BAD_SUFFIX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			cfg, err := LoadFrom(v)
			require.Error(t, err)
			assert.Nil(t, cfg)

			var ie *isleerrors.IsleError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.code, ie.Code)
			assert.Equal(t, isleerrors.ErrorTypeConfig, ie.Type)
		})
	}
}

func TestLoadRejectsEscapingPaths(t *testing.T) {
	v := viper.New()
	v.Set("build.out", "../elsewhere")

	_, err := LoadFrom(v)
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("ISLE_BUILD_WORKERS", "7")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Build.Workers)
}

func TestDerivedDirectories(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	src, err := cfg.SourceRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(src))
	assert.Equal(t, "src", filepath.Base(src))

	out, err := cfg.OutDir()
	require.NoError(t, err)
	assert.Equal(t, ".isle", filepath.Base(out))
}
