package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	devproxy "github.com/evanshortiss/fh-dev-proxy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Activate the mapping and keep it running",
	Long: `run activates the configured host mapping, installs process-wide
interception, and keeps running until interrupted. SIGHUP reloads the
configuration and re-activates the mapping.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := devproxy.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer cleanup()

	proxy := devproxy.New()
	proxy.Logger = logger

	if cfg.Debug.Metrics {
		proxy.Metrics = devproxy.NewMetrics()
	}
	if cfg.Debug.Trace {
		trace := devproxy.NewDecisionLogger(logger)
		trace.DumpBodies = logger.Enabled(cmd.Context(), slog.LevelDebug)
		proxy.Trace = trace
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := proxy.Activate(ctx, cfg.Proxy); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	proxy.Install()
	defer proxy.Reset()

	var debugSrv *http.Server
	if cfg.Debug.Addr != "" {
		debugSrv = newDebugServer(cfg.Debug, proxy, logger)
		go func() {
			logger.Info("debug server listening", "addr", cfg.Debug.Addr)
			if err := debugSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("debug server error", "error", err)
			}
		}()
	}

	// SIGHUP reloads the config file and swaps the mapping.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if debugSrv != nil {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = debugSrv.Shutdown(shutCtx)
				cancel()
			}
			return nil

		case <-hup:
			logger.Info("reload signal received")
			next, err := devproxy.LoadConfig(configPath)
			if err != nil {
				logger.Error("config reload failed, keeping current mapping", "error", err)
				continue
			}
			proxy.Reset()
			if err := proxy.Activate(ctx, next.Proxy); err != nil {
				logger.Error("re-activation failed", "error", err)
				continue
			}
			proxy.Install()
			logger.Info("mapping reloaded")
		}
	}
}

// newDebugServer builds the local debug HTTP server: health endpoints,
// the admin API, and optionally Prometheus metrics.
func newDebugServer(cfg devproxy.DebugConfig, proxy *devproxy.Proxy, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()

	health := devproxy.NewHealthChecker(proxy.ReadinessCheck())
	r.Get("/healthz", health.HandleHealthz)
	r.Get("/readyz", health.HandleReadyz)

	admin := devproxy.NewAdminAPI(proxy)
	admin.Logger = logger
	r.Mount("/api", admin.Handler())

	if cfg.Metrics && proxy.Metrics != nil {
		r.Handle("/metrics", proxy.Metrics.Handler())
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
