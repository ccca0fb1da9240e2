package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/SayWess/Musicarr/internal/server"
	"github.com/SayWess/Musicarr/internal/supervisor"
	"github.com/SayWess/Musicarr/internal/tasks"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server and the background schedulers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overriding the configuration",
			},
		},
		Action: r.Serve,
	}
}

// Serve runs the HTTP API and the scheduler under a supervision tree until
// interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := server.NewAPIRouter(r.config, app.engine, app.repos, app.source, app.hub, r.logger)
	httpServer := server.NewServer(addr, router, r.logger)

	scheduler := tasks.NewScheduler(
		app.engine,
		time.Duration(r.config.Scheduler.RefreshIntervalHours)*time.Hour,
		time.Duration(r.config.Scheduler.DownloadIntervalHours)*time.Hour,
		r.logger,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.New(r.logger, httpServer, scheduler)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	r.logger.Info("shutdown complete")
	return nil
}
