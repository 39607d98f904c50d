package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/clinicauth/internal/app"
	"github.com/dropDatabas3/clinicauth/internal/http/server"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP y el sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	cfg := c.cfg
	log := logger.L().With(logger.Component("serve"))
	defer func() { _ = logger.Sync() }()
	ctx = logger.ToContext(ctx, log)

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		var ce *secretbox.ConfigError
		if errors.As(err, &ce) {
			log.Error("refusing to start", logger.Err(err))
			return fmt.Errorf("refusing to start: %w", err)
		}
		return err
	}
	defer func() { _ = a.Close() }()

	h, err := a.Handler()
	if err != nil {
		return err
	}
	srv := server.New(server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, h)

	log.Info("listening",
		logger.String("addr", cfg.Server.Addr),
		logger.String("base_path", cfg.Server.BasePath),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("codes", cfg.Codes.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, srv, nil, cfg.Server.ShutdownTimeout) })
	g.Go(func() error { return a.Sweeper.Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
