package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/isle/internal/build"
	"github.com/conneroisu/isle/internal/config"
	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/logging"
	"github.com/conneroisu/isle/internal/metrics"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the server module graph and the client manifest",
	Long: `Walk every entry module through the loader hooks, write the transformed
server modules, scoped stylesheets and client files, and publish
client-manifest.json. A failed or interrupted build publishes nothing.

Examples:
  isle build                          # Build with the configured analyzer
  isle build --out dist               # Build into dist/
  isle build --analyzer inline        # Analyze imports in this process
  isle build --analyzer ws://host:7070 # Use a remote analysis worker
  isle build --metrics-file build.prom # Write prometheus metrics`,
	RunE: runBuild,
}

var (
	buildAnalyzer    string
	buildMetricsFile string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out", "o", ".isle", "Output directory")
	buildCmd.Flags().Int("workers", 4, "Modules processed concurrently")
	buildCmd.Flags().StringVar(&buildAnalyzer, "analyzer", "", "Analysis worker: process, inline or a ws:// url")
	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "Write build metrics in prometheus text format")

	_ = viper.BindPFlag("build.out", buildCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("build.workers", buildCmd.Flags().Lookup("workers"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	m := metrics.New()
	builder, err := newBuilder(cfg, afero.NewOsFs(), buildAnalyzer, logger, m)
	if err != nil {
		return err
	}

	result, err := builder.Run(ctx)

	if buildMetricsFile != "" {
		if werr := m.WriteFile(buildMetricsFile); werr != nil {
			logger.Warn(ctx, werr, "cannot write metrics file", "path", buildMetricsFile)
		}
	}

	if err != nil {
		logger.Error(ctx, err, "build failed", "file", errors.FilePathOf(err))
		return loggedError{err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d modules, %d client files in %s\n",
		result.BuildID, result.Modules, len(result.Manifest.Files), result.Duration.Round(time.Millisecond))
	return nil
}

// newBuilder wires a Builder from the configuration. override, when set,
// replaces the configured analyzer mode: "process", "inline" or a websocket
// url.
func newBuilder(cfg *config.Config, fs afero.Fs, override string, logger logging.Logger, m *metrics.Metrics) (*build.Builder, error) {
	opts, err := build.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := analyzerFactory(cfg.Analyzer, override, fs, opts.SourceRoot, logger)
	if err != nil {
		return nil, err
	}
	return build.NewBuilder(opts, fs, analyzer, logger, m), nil
}

func analyzerFactory(ac config.AnalyzerConfig, override string, fs afero.Fs, sourceRoot string, logger logging.Logger) (build.AnalyzerFactory, error) {
	mode, url := ac.Mode, ac.URL
	switch {
	case override == "":
	case strings.HasPrefix(override, "ws://"), strings.HasPrefix(override, "wss://"):
		mode, url = config.AnalyzerWebSocket, override
	default:
		mode = override
	}

	switch mode {
	case config.AnalyzerInline:
		return build.InlineAnalyzer(fs, sourceRoot, logger), nil
	case config.AnalyzerWebSocket:
		if url == "" {
			return nil, errors.NewConfigError("BAD_ANALYZER_URL", "websocket analyzer needs a url")
		}
		return build.WebSocketAnalyzer(url), nil
	case config.AnalyzerProcess:
		factory, err := build.SelfAnalyzer(sourceRoot, os.Stderr)
		if err != nil {
			return nil, errors.NewAnalysisError("SPAWN_FAILED", "cannot locate the isle binary", err)
		}
		return factory, nil
	default:
		return nil, errors.NewConfigError("BAD_ANALYZER_MODE", fmt.Sprintf("unknown analyzer %q", mode))
	}
}
