package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"icsday/internal/app"
	"icsday/internal/config"
	appLog "icsday/internal/log"
	"icsday/internal/web"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with scheduled source refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfigPath)
		if err != nil {
			return err
		}
		if flagListen != "" {
			cfg.Listen = flagListen
		}

		appLog.Info("icsday starting",
			"version", version,
			"listen", cfg.Listen,
			"timezone", cfg.Timezone,
			"refresh", cfg.RefreshCron,
			"sources", len(cfg.Sources),
		)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		}()

		a := app.New(cfg)

		// Pre-warm caches on the configured cron schedule while serving.
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.RefreshCron, func() {
			a.Refresh(ctx)
		}); err != nil {
			appLog.Warn("invalid refresh schedule, background refresh disabled", "refresh", cfg.RefreshCron, "err", err)
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}

		srv := web.NewServer(cfg, a)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		appLog.Info("icsday exiting")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (overrides config if set)")
}
