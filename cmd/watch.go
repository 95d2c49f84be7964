package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/isle/internal/build"
	isleerrors "github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/logging"
	"github.com/conneroisu/isle/internal/metrics"
	"github.com/conneroisu/isle/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild whenever a source file changes",
	Long: `Build once, then watch the source tree and rebuild after every burst of
changes. A failed rebuild is logged and the previous output stays published.

Examples:
  isle watch                          # Watch and rebuild
  isle watch --debounce 500ms         # Wait longer for changes to settle
  isle watch --metrics-addr :9464     # Serve prometheus metrics`,
	RunE: runWatch,
}

var (
	watchAnalyzer    string
	watchDebounce    time.Duration
	watchMetricsAddr string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchAnalyzer, "analyzer", "", "Analysis worker: process, inline or a ws:// url")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before a rebuild")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	m := metrics.New()
	builder, err := newBuilder(cfg, afero.NewOsFs(), watchAnalyzer, logger, m)
	if err != nil {
		return err
	}

	if watchMetricsAddr != "" {
		srv := &http.Server{Addr: watchMetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, err, "metrics server failed", "addr", watchMetricsAddr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info(ctx, "serving metrics", "addr", watchMetricsAddr)
	}

	root, err := cfg.SourceRoot()
	if err != nil {
		return err
	}
	outDir, err := cfg.OutDir()
	if err != nil {
		return err
	}

	fileWatcher, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.SourceFilter)
	fileWatcher.AddFilter(watcher.NoOutputFilter(outDir))
	fileWatcher.AddFilter(watcher.NoNodeModulesFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.NoEditorTempFilter)

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		logger.Info(ctx, "changes detected", "files", len(events), "first", events[0].Path)
		rebuild(ctx, cmd, builder, logger)
		return nil
	})

	if err := fileWatcher.AddRecursive(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	rebuild(ctx, cmd, builder, logger)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	logger.Info(ctx, "watching for changes", "root", root)

	<-ctx.Done()
	logger.Info(context.Background(), "stopping watcher")
	return nil
}

// rebuild runs one build and reports the outcome. Handlers run one at a
// time, so rebuilds never overlap.
func rebuild(ctx context.Context, cmd *cobra.Command, builder *build.Builder, logger logging.Logger) {
	result, err := builder.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error(ctx, err, "rebuild failed", "file", isleerrors.FilePathOf(err))
		}
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d modules, %d client files in %s\n",
		result.BuildID, result.Modules, len(result.Manifest.Files), result.Duration.Round(time.Millisecond))
}
