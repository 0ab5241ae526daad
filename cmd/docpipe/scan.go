package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contaspt/docpipe/internal/tenant"
)

var (
	scanTenant string
	scanFull   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one indexing scan and exit",
	Long: `Run one scan of the configured documents path and exit. By default only
files modified since the last scan are considered; --full rescans everything.

Examples:
  # Incremental scan
  docpipe scan --tenant acme

  # Full rescan
  docpipe scan --tenant acme --full`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanTenant, "tenant", "default", "tenant whose documents are scanned")
	scanCmd.Flags().BoolVar(&scanFull, "full", false, "rescan all files instead of modified ones")
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(scanTenant)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.indexer == nil {
		return fmt.Errorf("documents path is not available, nothing to scan")
	}

	ctx := tenant.NewContext(cmd.Context(), &tenant.Info{TenantID: scanTenant})
	stats, err := a.indexer.ForceScan(ctx, scanFull)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(stats)
}
