// Package main runs the mock manifest server against a YAML fixture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duck-access/internal/config"
	"duck-access/internal/mockserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listenAddr = flag.String("listen", "", "listen address (default from MOCK_LISTEN_ADDR or :9321)")
		fixture    = flag.String("fixture", "", "fixture YAML path (default from MOCK_FIXTURE)")
		rps        = flag.Float64("rate-limit", 0, "max requests per second, 0 disables")
	)
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if *listenAddr == "" {
		*listenAddr = cfg.MockListenAddr
	}
	if *fixture == "" {
		*fixture = cfg.MockFixture
	}
	if *fixture == "" {
		return fmt.Errorf("no fixture: pass -fixture or set MOCK_FIXTURE")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	fx, err := mockserver.LoadFixture(*fixture)
	if err != nil {
		return err
	}

	srv := mockserver.New(fx,
		mockserver.WithLogger(logger),
		mockserver.WithRateLimit(*rps, int(*rps)+1),
	)
	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock manifest server listening",
			"addr", *listenAddr, "tables", len(fx.Tables), "keys", len(fx.APIKeys))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	}
}
