package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/skillgrid/internal/api"
	"github.com/skillgrid/internal/config"
	"github.com/skillgrid/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the skillgrid API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (overrides [server] addr)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create inference runner: %w", err)
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	ws := newWorkspace(ctx, cfg, store, runner)
	defer ws.Close()

	opts := api.Options{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Viewport:    cfg.Viewport(),
	}
	if cfg.Queue.DatabaseURL != "" {
		jq, err := jobqueue.NewJobQueue(ctx, cfg.Queue.DatabaseURL, ws, nil)
		if err != nil {
			return err
		}
		if err := jq.Migrate(ctx); err != nil {
			return err
		}
		if err := jq.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := jq.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("Job queue did not stop cleanly")
			}
		}()
		opts.Queue = jq
		log.Info().Msg("Column runs are queued through River")
	}

	return api.NewServer(ws, opts).Start(ctx)
}
