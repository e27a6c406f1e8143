// fpaserve is the HTTP daemon for the scenario and aggregation service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/config"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/logger"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/server"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")
	configPath  = flag.String("config", "", "Path to YAML config file")
	listenAddr  = flag.String("listen", "", "Listen address (overrides config)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `fpaserve - FP&A scenario and aggregation service

Usage:
  fpaserve [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Run with defaults (sqlite store in ./fpa.db)
  fpaserve

  # Run against a config file
  fpaserve -config /etc/fpaserve/config.yaml
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("fpaserve version %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("store", cfg.Store.Backend).
			Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
