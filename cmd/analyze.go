package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/deps"
)

// analyzeCmd is the analysis worker. Builds start it with --root and talk
// to it over stdin/stdout; with --listen it serves websocket clients.
var analyzeCmd = &cobra.Command{
	Use:    "analyze",
	Short:  "Run an import analysis worker",
	Hidden: true,
	RunE:   runAnalyze,
}

var (
	analyzeRoot   string
	analyzeListen string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeRoot, "root", "", "Source root (default from configuration)")
	analyzeCmd.Flags().StringVar(&analyzeListen, "listen", "", "Serve websocket clients on this address instead of stdio")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg).WithComponent("analyze")

	root := analyzeRoot
	if root == "" {
		if root, err = cfg.SourceRoot(); err != nil {
			return err
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	analyzer := deps.NewAnalyzer(afero.NewOsFs(), root)

	if analyzeListen == "" {
		// stdout carries protocol traffic only.
		ep := channel.NewStream[deps.Message](os.Stdin, os.Stdout)
		defer ep.Close()
		return deps.Serve(ctx, ep, analyzer, logger)
	}

	ln, err := net.Listen("tcp", analyzeListen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: deps.Handler(analyzer, logger), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "analysis worker listening", "addr", ln.Addr().String(), "root", root)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
