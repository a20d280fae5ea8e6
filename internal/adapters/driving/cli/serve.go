package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/threadline/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/threadline/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP triggers, job dispatcher and scheduler",
	Long: `Serve the trigger API and the Intercom webhook receiver, consume the job
queue and run the periodic sweep and embedding backfill.

Routes under /api require an HS256 bearer token carrying app_id and sub
claims; mint one with 'threadline token'. The webhook at
/webhooks/intercom/{appID} checks X-Hub-Signature when
server.webhook-secret is set.

Tenant settings and prompt files are reloaded when they change on disk.`,
	Annotations: map[string]string{annotationHost: "true"},
	RunE:        runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	app := currentApp
	if app == nil || app.Dispatcher == nil {
		return errors.New("job dispatcher not configured")
	}
	cfg := app.Config
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt-secret is required (set THREADLINE_SERVER_JWT_SECRET)")
	}
	if cfg.Server.WebhookSecret == "" {
		logger.Warnw("webhook signatures are not verified, any caller can trigger imports; set server.webhook-secret",
			"route", "/webhooks/intercom/{appID}")
	}

	server := httpapi.NewServer(httpapi.Services{
		Importer:   importService,
		Processor:  processService,
		Sweeper:    sweepService,
		Backfiller: backfillService,
		Documents:  documentService,
	}, httpapi.Options{
		JWTSecret:     cfg.Server.JWTSecret,
		WebhookSecret: cfg.Server.WebhookSecret,
		WebhookUser:   cfg.Server.WebhookUser,
	})

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return app.Dispatcher.Run(ctx)
	})
	if app.Scheduler != nil {
		g.Go(func() error {
			if err := app.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	for _, watch := range app.Watchers {
		g.Go(func() error {
			// A failed watch leaves the loaded configuration in place.
			if err := watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("configuration watch stopped: %v", err)
			}
			return nil
		})
	}

	cmd.Printf("threadline %s serving on %s\n", version, cfg.Server.Addr)
	return g.Wait()
}
