// Package cmd provides the isle command-line interface.
//
// Configuration is read from these sources, highest priority first:
//
//  1. Command-line flags (--out, --workers, --log-level, ...)
//  2. ISLE_<SECTION>_<KEY> environment variables (ISLE_BUILD_OUT, ...)
//  3. The file named by --config or ISLE_CONFIG_FILE
//  4. .isle.yml in the working directory
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/isle/internal/config"
	"github.com/conneroisu/isle/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "isle",
	Short: "Build tool for island-architecture web projects",
	Long: `isle runs a project's server module graph through a chain of loader hooks,
scopes CSS modules, stubs client-only code, wraps universal components as
hydratable islands and writes a manifest of every file the browser needs.

Quick Start:
  isle build                  Build into .isle/
  isle deps -o yaml           Print the client file list without writing anything
  isle watch                  Rebuild on every source change
  isle inspect page.html      List the islands in rendered HTML`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors already logged by a command are not
// printed again.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	var logged loggedError
	if err != nil && !stderrors.As(err, &logged) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .isle.yml, can also use ISLE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig picks the config file: --config first, then ISLE_CONFIG_FILE,
// then .isle.yml in the working directory. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ISLE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".isle")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// loggedError marks an error the command has already logged.
type loggedError struct{ err error }

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }
