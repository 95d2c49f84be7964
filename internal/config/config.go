// Package config provides configuration management for isle using Viper for
// loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the ISLE_ prefix, defaults, and validation. It covers the
// project layout, the build output, the module naming conventions consumed
// by the loader hooks, the dependency analyzer and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/isle/internal/errors"
)

type Config struct {
	Project     ProjectConfig     `mapstructure:"project"`
	Build       BuildConfig       `mapstructure:"build"`
	Conventions ConventionsConfig `mapstructure:"conventions"`
	Analyzer    AnalyzerConfig    `mapstructure:"analyzer"`
	Log         LogConfig         `mapstructure:"log"`
}

type ProjectConfig struct {
	Root    string   `mapstructure:"root"`
	Source  string   `mapstructure:"source"`
	Entries []string `mapstructure:"entries"`
}

type BuildConfig struct {
	Out        string `mapstructure:"out"`
	Workers    int    `mapstructure:"workers"`
	PublicBase string `mapstructure:"public_base"`
}

type ConventionsConfig struct {
	ClientSuffixes    []string `mapstructure:"client_suffixes"`
	UniversalSuffixes []string `mapstructure:"universal_suffixes"`
	CSSModuleSuffix   string   `mapstructure:"css_module_suffix"`
}

// AnalyzerConfig selects how the transitive import analysis is run.
// Mode is one of "process", "inline" or "websocket".
type AnalyzerConfig struct {
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
	URL     string        `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	AnalyzerProcess   = "process"
	AnalyzerInline    = "inline"
	AnalyzerWebSocket = "websocket"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv enables ISLE_<SECTION>_<KEY> overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ISLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envKeyReplacer)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.source", "src")
	v.SetDefault("project.entries", []string{"src/server.js"})

	v.SetDefault("build.out", ".isle")
	v.SetDefault("build.workers", 4)
	v.SetDefault("build.public_base", "/static")

	v.SetDefault("conventions.client_suffixes", []string{".client.js", ".client.jsx", ".client.ts", ".client.tsx"})
	v.SetDefault("conventions.universal_suffixes", []string{".universal.js", ".universal.jsx", ".universal.ts", ".universal.tsx"})
	v.SetDefault("conventions.css_module_suffix", ".module.css")

	v.SetDefault("analyzer.mode", AnalyzerProcess)
	v.SetDefault("analyzer.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for anything
// unset, and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SourceRoot returns the absolute directory that "/" specifiers resolve
// against.
func (c *Config) SourceRoot() (string, error) {
	return filepath.Abs(filepath.Join(c.Project.Root, c.Project.Source))
}

// OutDir returns the absolute build output directory.
func (c *Config) OutDir() (string, error) {
	return filepath.Abs(filepath.Join(c.Project.Root, c.Build.Out))
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateProjectConfig(&config.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if err := validateConventions(&config.Conventions); err != nil {
		return fmt.Errorf("conventions config: %w", err)
	}

	if err := validateAnalyzerConfig(&config.Analyzer); err != nil {
		return fmt.Errorf("analyzer config: %w", err)
	}

	return nil
}

func validateProjectConfig(config *ProjectConfig) error {
	if config.Root == "" {
		return errors.NewConfigError("EMPTY_ROOT", "project.root cannot be empty")
	}
	if err := validatePath(config.Source); err != nil {
		return fmt.Errorf("invalid source '%s': %w", config.Source, err)
	}
	for _, entry := range config.Entries {
		if err := validatePath(entry); err != nil {
			return fmt.Errorf("invalid entry '%s': %w", entry, err)
		}
	}
	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if err := validatePath(config.Out); err != nil {
		return fmt.Errorf("invalid out '%s': %w", config.Out, err)
	}

	if config.Workers < 1 {
		return errors.NewConfigError("BAD_WORKERS", fmt.Sprintf("workers must be at least 1, got %d", config.Workers))
	}

	if !strings.HasPrefix(config.PublicBase, "/") {
		return errors.NewConfigError("BAD_PUBLIC_BASE", fmt.Sprintf("public_base must start with /: %q", config.PublicBase))
	}

	return nil
}

// validateConventions rejects suffix sets that would let one file match two
// hooks, since hook order would then decide its fate silently.
func validateConventions(config *ConventionsConfig) error {
	if len(config.ClientSuffixes) == 0 || len(config.UniversalSuffixes) == 0 {
		return errors.NewConfigError("EMPTY_SUFFIXES", "client and universal suffixes must be set")
	}
	if config.CSSModuleSuffix == "" {
		return errors.NewConfigError("EMPTY_SUFFIXES", "css_module_suffix must be set")
	}

	seen := make(map[string]string)
	check := func(kind string, suffixes ...string) error {
		for _, s := range suffixes {
			if !strings.HasPrefix(s, ".") {
				return errors.NewConfigError("BAD_SUFFIX", fmt.Sprintf("%s suffix %q must start with a dot", kind, s))
			}
			if prev, ok := seen[s]; ok && prev != kind {
				return errors.NewConfigError("OVERLAPPING_SUFFIX", fmt.Sprintf("suffix %q is both %s and %s", s, prev, kind))
			}
			seen[s] = kind
		}
		return nil
	}

	if err := check("client", config.ClientSuffixes...); err != nil {
		return err
	}
	if err := check("universal", config.UniversalSuffixes...); err != nil {
		return err
	}
	return check("css", config.CSSModuleSuffix)
}

func validateAnalyzerConfig(config *AnalyzerConfig) error {
	switch config.Mode {
	case AnalyzerProcess, AnalyzerInline:
	case AnalyzerWebSocket:
		if !strings.HasPrefix(config.URL, "ws://") && !strings.HasPrefix(config.URL, "wss://") {
			return errors.NewConfigError("BAD_ANALYZER_URL", fmt.Sprintf("websocket analyzer needs a ws:// url, got %q", config.URL))
		}
	default:
		return errors.NewConfigError("BAD_ANALYZER_MODE", fmt.Sprintf("unknown analyzer mode %q", config.Mode))
	}

	if config.Timeout <= 0 {
		return errors.NewConfigError("BAD_TIMEOUT", "analyzer.timeout must be positive")
	}

	return nil
}

// validatePath validates a project-relative path
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.HasPrefix(cleanPath, "..") {
		return fmt.Errorf("path escapes the project: %s", path)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative to the project root: %s", path)
	}

	return nil
}
