package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/isle/internal/build"
	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/metrics"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Print every file the browser needs",
	Long: `Run a build in memory and print the client dependency records: every
client-only and universal module reached from the entries plus their
transitive static imports. Nothing is written to disk.

Examples:
  isle deps                 # JSON
  isle deps -o yaml         # YAML
  isle deps -o text         # One relative path per line`,
	RunE: runDeps,
}

var (
	depsFormat   string
	depsAnalyzer string
)

// depsOutDir only ever exists in the memory layer of the deps overlay.
var depsOutDir = filepath.Join(string(filepath.Separator), ".isle-deps")

func init() {
	rootCmd.AddCommand(depsCmd)

	depsCmd.Flags().StringVarP(&depsFormat, "output", "o", "json", "Output format (json, yaml, text)")
	depsCmd.Flags().StringVar(&depsAnalyzer, "analyzer", "", "Analysis worker: process, inline or a ws:// url")
}

func runDeps(cmd *cobra.Command, args []string) error {
	switch depsFormat {
	case "json", "yaml", "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml, text)", depsFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	// Sources come from disk; every write lands in memory.
	fs := afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(afero.NewOsFs()), afero.NewMemMapFs())

	opts, err := build.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.OutDir = depsOutDir

	analyzer, err := analyzerFactory(cfg.Analyzer, depsAnalyzer, fs, opts.SourceRoot, logger)
	if err != nil {
		return err
	}

	result, err := build.NewBuilder(opts, fs, analyzer, logger, metrics.New()).Run(ctx)
	if err != nil {
		logger.Error(ctx, err, "dependency collection failed", "file", errors.FilePathOf(err))
		return loggedError{err}
	}

	return writeRecords(cmd.OutOrStdout(), depsFormat, result.Manifest.Files)
}

func writeRecords(w io.Writer, format string, records []deps.DependencyRecord) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		for _, r := range records {
			if _, err := fmt.Fprintln(w, r.RelativePath); err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
}
