// Package cli implements the blocksync command line: a reference backend,
// a seeding helper and a file-backed block editor.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-blocksync/internal/runtimeconfig"
	"github.com/spf13/cobra"
)

// App holds the persistent flags shared by every subcommand.
type App struct {
	BaseURL        string
	Debounce       time.Duration
	RequestTimeout time.Duration
	FlushTimeout   time.Duration
	Verbose        bool
	LogProvider    string
	LogLevel       string
	LogFormat      string
	PrettyJSON     bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}
	defaults := runtimeconfig.DefaultConfig()

	cmd := &cobra.Command{
		Use:          "blocksync",
		Short:        "Block content sync: reference backend and file-backed editor",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the backend on :8080 with an in-memory store
  blocksync serve

  # Persist blocks in sqlite
  blocksync serve --storage bun --dsn "file:blocks.db?cache=shared"

  # Create a block and edit it through a JSON file
  blocksync seed --page 6f1c... --type hero --content '{"title":"Hello"}'
  blocksync edit 0b7e... --page 6f1c... --file hero.json
`),
	}

	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", envOr("BLOCKSYNC_BASE_URL", defaults.Sync.BaseURL), "Base URL of the blocks API")
	cmd.PersistentFlags().DurationVar(&app.Debounce, "debounce", defaults.Sync.DebounceDelay, "Quiet period before a background save")
	cmd.PersistentFlags().DurationVar(&app.RequestTimeout, "request-timeout", defaults.Sync.RequestTimeout, "Timeout of one save request")
	cmd.PersistentFlags().DurationVar(&app.FlushTimeout, "flush-timeout", defaults.Sync.FlushTimeout, "Time allowed to deliver flushes on exit")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Enable logging")
	cmd.PersistentFlags().StringVar(&app.LogProvider, "log-provider", envOr("BLOCKSYNC_LOG_PROVIDER", defaults.Logging.Provider), "Logger provider (console|gologger)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("BLOCKSYNC_LOG_LEVEL", defaults.Logging.Level), "Minimum log level")
	cmd.PersistentFlags().StringVar(&app.LogFormat, "log-format", envOr("BLOCKSYNC_LOG_FORMAT", ""), "go-logger output format (json|console|pretty)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newEditCmd(app))

	return cmd
}

// config builds the runtime configuration from the persistent flags.
func (app *App) config() runtimeconfig.Config {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Sync.BaseURL = strings.TrimSpace(app.BaseURL)
	if app.Debounce > 0 {
		cfg.Sync.DebounceDelay = app.Debounce
	}
	if app.RequestTimeout > 0 {
		cfg.Sync.RequestTimeout = app.RequestTimeout
	}
	if app.FlushTimeout > 0 {
		cfg.Sync.FlushTimeout = app.FlushTimeout
	}
	cfg.Features.Logger = app.Verbose
	cfg.Logging.Provider = app.LogProvider
	cfg.Logging.Level = app.LogLevel
	cfg.Logging.Format = app.LogFormat
	return cfg
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	if app.PrettyJSON {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
