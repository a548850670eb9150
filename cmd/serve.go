package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotremote/internal/server"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until SIGINT or SIGTERM, then shuts down gracefully.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = int(port)
	}

	tokens, dispatcher, err := r.services(ctx)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.APIOpts{
		Tokens:       tokens,
		Dispatcher:   dispatcher,
		Logger:       shared.WithLogger(r.logger, "component", "http"),
		FrontendURL:  r.config.Server.FrontendURL,
		CookieSecure: r.config.Server.CookieSecure,
	})

	addr := r.config.Server.Addr()
	srv := server.NewHTTPServer(addr, router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ spotremote listening on http://%s (store: %s)\n", addr, r.config.Store.Driver)
	r.writePlain("→ Log in at http://%s/login\n", addr)

	return server.Serve(ctx, srv, r.config.Server.ShutdownTimeout.Duration, r.logger)
}
