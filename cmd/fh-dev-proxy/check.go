package main

import (
	"fmt"

	"github.com/spf13/cobra"

	devproxy "github.com/evanshortiss/fh-dev-proxy"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and resolve the proxy URL once",
	Long: `check validates the configured mapping without installing anything.
In auto mode it performs a single platform lookup and prints the resolved
proxy URL; in forced mode it prints the configured URL.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := devproxy.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, cleanup, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.Proxy.Validate(); err != nil {
		return err
	}
	fmt.Println("configuration is valid")

	if cfg.Proxy.ProxyURL != "" {
		fmt.Printf("mode:  forced\nproxy: %s\n", cfg.Proxy.ProxyURL)
		return nil
	}

	resolver := devproxy.NewPlatformResolver()
	resolver.Logger = logger

	url, err := resolver.Resolve(cmd.Context(), cfg.Proxy)
	if err != nil {
		return fmt.Errorf("resolve proxy url: %w", err)
	}

	fmt.Printf("mode:  auto\nproxy: %s\n", url)
	return nil
}
