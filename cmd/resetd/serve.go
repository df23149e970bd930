package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goReset/internal/conf"
	promexport "github.com/MrEthical07/goReset/metrics/export/prometheus"
	"github.com/MrEthical07/goReset/transport/httpapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the expired-code sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, nil)
		},
	}
}

// runServe blocks until ctx is done or the server fails. When ready is
// non-nil it receives the bound listener address once the server accepts
// connections.
func runServe(ctx context.Context, c *conf.Config, log *zap.Logger, ready chan<- string) error {
	comps, err := buildComponents(ctx, c, log)
	if err != nil {
		return err
	}
	defer comps.close()

	opts := httpapi.Options{
		Logger:         log.Named("http"),
		TrustedProxies: c.Server.TrustedProxies,
		ExposeFound:    comps.engine.Config().PasswordReset.ExposeFound,
	}
	if c.Metrics.Enabled {
		opts.Metrics = promexport.NewPrometheusExporter(comps.engine).Handler()
	}
	if c.Server.AccessLog {
		opts.AccessLog = os.Stdout
	}

	srv := &http.Server{
		Handler:      httpapi.NewHandler(comps.engine, opts),
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  c.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", zap.String("addr", ln.Addr().String()))
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return comps.engine.RunSweeper(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
