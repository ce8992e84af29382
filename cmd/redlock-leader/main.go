// Command redlock-leader runs a leader election over a Redlock quorum and
// logs every leadership event.
//
// Usage:
//
//	redlock-leader -config leader.yaml -metrics-addr :9090
//
// Without -config the daemon contends on three in-memory stores, which is
// only useful to watch the event flow of a single process.
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
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	redlockleader "github.com/torghul/redlock-leader"
	"github.com/torghul/redlock-leader/internal/appconfig"
	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/types"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (overrides metrics.addr)")
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "redlock-leader: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	// Cancel context on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := buildStores(ctx, cfg.Stores, cfg.Election.TTL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Warn("closing stores", "error", err)
		}
	}()

	m := redlockleader.NewPrometheusMetrics(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)

	rl, err := redlock.New(set.stores,
		redlock.WithConfig(cfg.Redlock),
		redlock.WithLogger(logger),
		redlock.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	elector, err := redlockleader.NewElector(&cfg.Election, rl,
		redlockleader.WithLogger(logger),
		redlockleader.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	logEvents(elector, logger)

	var wg sync.WaitGroup
	srv := startMetricsServer(&wg, cfg.Metrics.Addr, logger, stop)

	logger.Info("redlock-leader up",
		"key", cfg.Election.Key,
		"backend", cfg.Stores.Backend,
		"stores", len(set.stores),
		"quorum", rl.Quorum(),
	)
	if err := elector.Start(ctx); err != nil {
		return err
	}

	// Wait for signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := elector.Stop(shutdownCtx); err != nil {
		logger.Warn("elector stop", "error", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
	wg.Wait()

	logger.Info("redlock-leader stopped")

	return nil
}

func loadConfig(path string) (*appconfig.Config, error) {
	if path == "" {
		cfg := appconfig.Default()
		return &cfg, nil
	}

	return appconfig.Load(path)
}

func newLogger(cfg appconfig.LogConfig) (*logging.SlogLogger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return logging.NewSlog(slog.New(handler)).With("pid", os.Getpid()), nil
}

// logEvents writes one line per leadership event.
func logEvents(elector *redlockleader.Elector, logger types.Logger) {
	elector.On(redlockleader.EventElected, func(ev redlockleader.Event) {
		logger.Info("ELECTED", "key", elector.Key(), "at", ev.Time)
	})
	elector.On(redlockleader.EventExtended, func(ev redlockleader.Event) {
		logger.Debug("EXTENDED", "key", elector.Key(), "at", ev.Time)
	})
	elector.On(redlockleader.EventRevoked, func(ev redlockleader.Event) {
		logger.Warn("REVOKED", "key", elector.Key(), "at", ev.Time, "error", ev.Err)
	})
	elector.On(redlockleader.EventError, func(ev redlockleader.Event) {
		logger.Error("ERROR", "key", elector.Key(), "at", ev.Time, "error", ev.Err)
	})
}

// startMetricsServer serves /metrics until shut down. It returns nil when
// addr is empty.
func startMetricsServer(wg *sync.WaitGroup, addr string, logger types.Logger, stop context.CancelFunc) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Go(func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
			// If the server fails unexpectedly, trigger shutdown.
			stop()
		}
	})

	return srv
}
