package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/highway-simulator/internal/app"
	"github.com/iliamunaev/highway-simulator/internal/config"
	"github.com/iliamunaev/highway-simulator/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the configuration, starts the control API and blocks until
// SIGINT or SIGTERM. On shutdown the workers are stopped first so the
// final report is logged, then the server drains open requests.
func run(args []string) error {
	cfg, err := config.Load("highway-server", args)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg.HTTPAddress, a, log)
}

func newServer(addr string, a *app.App) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           a.Handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      a.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func serve(ctx context.Context, addr string, a *app.App, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := newServer(addr, a)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.RequestTimeout)
		defer cancel()

		_, stopErr := a.Simulation.StopAll(shutdownCtx)
		if stopErr != nil {
			log.Warn("workers still running at shutdown", zap.Error(stopErr))
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
