package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/server"
)

// Serve runs the callback server with /metrics and /healthz until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	app, err := r.deps()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	srv, err := server.New(server.Options{
		Addr:      addr,
		Callbacks: app.Callbacks,
		Registry:  app.Metrics.Registry,
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writeOK("Serving on http://%s", srv.Addr())
	return srv.Run(ctx)
}
