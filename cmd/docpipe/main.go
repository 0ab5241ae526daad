// Docpipe is the accounting document pipeline daemon.
//
// It watches a tenant's document storage, extracts and reconciles
// structured data from invoices and receipts, indexes embeddings for
// semantic search, and serves an HTTP API for routing and retrieval.
//
// Configuration comes from a YAML file plus DOCPIPE_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	docpipe serve
//
//	# Run one full scan and exit
//	docpipe scan --full
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "Accounting document pipeline daemon",
	Long: `docpipe processes accounting documents for Portuguese accounting firms.
It classifies incoming documents, extracts tables and line items, reconciles
multi-model extractions, and indexes embeddings for semantic retrieval.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(queryCmd)
}
