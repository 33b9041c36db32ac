package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weekplan/internal/client"
	"weekplan/internal/config"
	appLog "weekplan/internal/log"
	"weekplan/internal/refresh"
	"weekplan/internal/web"
)

func addServe(topLevel *cobra.Command) {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the host bridge",
		Example: `
weekplan serve --config ./config.yaml --listen 0.0.0.0:8080
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), path, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	topLevel.AddCommand(cmd)
}

func applyLogLevel(name string) {
	lvl, err := appLog.ParseLevel(name)
	if err != nil {
		appLog.Warn("unknown log level; keeping current", "log_level", name)
		return
	}
	appLog.SetLevel(lvl)
}

func serve(parent context.Context, path, listen string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"server_url", cfg.ServerURL,
		"timezone", loc.String(),
		"refresh", cfg.RefreshCron,
		"click_suppression", cfg.ClickSuppression.String(),
	)

	c, err := client.New(cfg.ServerURL, client.Options{
		Timeout:       cfg.RequestTimeout,
		RatePerSecond: cfg.RateLimit,
		Burst:         cfg.RateBurst,
	})
	if err != nil {
		return err
	}

	refresher := refresh.New()
	if err := refresher.Start(cfg.RefreshCron, loc); err != nil {
		return err
	}
	defer refresher.Stop()

	srv := web.NewServer(cfg, c, refresher)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := config.Watch(ctx, path, func(next *config.Config) {
			if listen != "" {
				next.Listen = listen
			}
			applyLogLevel(next.LogLevel)
			if err := refresher.Apply(next.RefreshCron); err != nil {
				appLog.Warn("refresh schedule rejected", "refresh", next.RefreshCron, "err", err.Error())
			}
			srv.Apply(next)
		})
		if err != nil && ctx.Err() == nil {
			appLog.Error("config watcher stopped", err, "path", path)
		}
	}()

	err = srv.ListenAndServe(ctx)
	appLog.Info("weekplan exiting")
	return err
}
