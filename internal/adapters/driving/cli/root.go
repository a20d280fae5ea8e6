// Package cli implements the threadline command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/threadline/internal/config"
	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
	"github.com/custodia-labs/threadline/internal/telemetry"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// annotationSkipBootstrap marks commands that run without services.
const annotationSkipBootstrap = "threadline/skip-bootstrap"

// annotationHost marks commands that consume the job queue in-process.
const annotationHost = "threadline/host"

var (
	configFile string
	flagValues = config.New()
)

// Services used by the commands. They are set from the App built in
// PersistentPreRunE and replaced by tests.
var (
	importService   driving.ConversationImporter
	processService  driving.DocumentProcessor
	sweepService    driving.Sweeper
	backfillService driving.EmbeddingBackfiller
	documentService driving.DocumentService
	settingsService driving.SettingsService

	currentApp *App
)

// bootstrap builds the application. Tests swap it for a fake.
var bootstrap = NewApp

// cleanups run in reverse order when Execute returns.
var cleanups []func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "threadline",
	Short: "Import and enrich Intercom conversations",
	Long: `threadline imports Intercom conversations as markdown documents, then
splits, summarises and tags them with a language model.

Run 'threadline serve' for the HTTP triggers, webhook receiver and job
dispatcher, or use the subcommands for one-off runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (default ./threadline.toml or ~/.threadline/threadline.toml)")
	flagValues.AddFlags(rootCmd.PersistentFlags())
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer runCleanups()

	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration, configures logging and tracing, and builds the
// services the command needs.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationSkipBootstrap] == "true" {
		return nil
	}

	cfg, err := config.Load(rootCmd.PersistentFlags(), configFile)
	if err != nil {
		return err
	}

	logger.SetVerbose(cfg.Log.Verbose)
	logger.SetFormat(logger.Format(cfg.Log.Format))
	logger.Debug("Loaded %s", cfg)

	shutdown, err := telemetry.Setup(telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	cleanups = append(cleanups, shutdown)

	app, err := bootstrap(cmd.Context(), cfg, cmd.Annotations[annotationHost] == "true")
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func(context.Context) error { return app.Close() })

	useApp(app)
	return nil
}

// useApp points the command services at app.
func useApp(app *App) {
	currentApp = app
	importService = app.Importer
	processService = app.Processor
	sweepService = app.Sweeper
	backfillService = app.Backfiller
	documentService = app.Documents
	settingsService = app.Settings
}

func runCleanups() {
	ctx := context.Background()
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}
	cleanups = nil
	logger.Sync()
}
