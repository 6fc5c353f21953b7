// Package cmd defines and implements the CLI commands for the labelworker
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labelworker",
		Short: "Extracts and processes recall label documents into web-servable images.",
		Long: `labelworker scans recent recall notices for label document links, downloads
each document, converts PDFs to per-page images, normalizes everything to a
web-friendly size, uploads the results to object storage, and records the
outcome on the recall so downstream consumers can render label galleries.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (searched in the working directory when unset)")

	cmd.AddCommand(newProcessCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
