package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/briefgate/briefgate/internal/config"
	"github.com/briefgate/briefgate/internal/gateway"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	configFlag(cmd)
	return cmd
}

// runServe assembles the application and serves until interrupted.
func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	gw := gateway.New(gateway.Options{
		Config:      cfg,
		Store:       a.store,
		Archive:     a.archive,
		Redactor:    a.redactor,
		Logger:      a.logger,
		WelcomeText: a.welcome,
		Version:     version,
	})
	if err := gw.Start(); err != nil {
		return err
	}

	scheduler, err := a.newScheduler()
	if err != nil {
		_ = gw.Stop(context.Background())
		return err
	}
	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			_ = gw.Stop(context.Background())
			return err
		}
		defer scheduler.Stop()
	}

	a.logger.Info("briefgate started", "version", version, "bind", cfg.Gateway.Bind)
	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return gw.Stop(shutdownCtx)
}
