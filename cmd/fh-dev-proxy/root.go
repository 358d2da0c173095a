package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	devproxy "github.com/evanshortiss/fh-dev-proxy"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fh-dev-proxy",
	Short: "Redirect local traffic for configured hosts through a remote dev proxy",
	Long: `fh-dev-proxy intercepts outbound HTTP(S) requests for configured
hostnames and redirects them through a remote development proxy, so code
running locally can reach services that are only routable from the
platform.

Modes:
  forced  an explicit proxy URL is given; its scheme dictates the
          outbound protocol
  auto    the proxy URL is resolved from platform credentials and all
          redirected traffic is forced to HTTPS with identifying headers`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: search ./fh-dev-proxy.yaml, ~/.fh-dev-proxy, /etc/fh-dev-proxy)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// setupLogger builds the process logger from the logging config. The
// returned cleanup closes the log file, if any.
func setupLogger(cfg devproxy.LoggingConfig) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	if verbose {
		level = slog.LevelDebug
	}

	var (
		out     io.Writer
		cleanup = func() {}
	)
	switch cfg.Output {
	case "stderr", "":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		cleanup = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
