package main

import (
	"fmt"

	"github.com/spf13/cobra"

	devproxy "github.com/evanshortiss/fh-dev-proxy"
)

var genConfigOutput string

var genConfigCmd = &cobra.Command{
	Use:   "gen-config",
	Short: "Write an example configuration file",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := devproxy.WriteExampleConfig(genConfigOutput); err != nil {
			return fmt.Errorf("generate config: %w", err)
		}
		fmt.Printf("Generated %s\n", genConfigOutput)
		return nil
	},
}

func init() {
	genConfigCmd.Flags().StringVarP(&genConfigOutput, "output", "o", "fh-dev-proxy.yaml", "output path")
	rootCmd.AddCommand(genConfigCmd)
}
