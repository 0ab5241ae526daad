package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	api "github.com/contaspt/docpipe/internal/http"
	"github.com/contaspt/docpipe/internal/rag"
)

var (
	queryServer  string
	queryTenant  string
	queryTopK    int
	queryContent bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a retrieval query against a running docpipe server",
	Long: `Run a semantic retrieval query against a running docpipe server and print
the matching documents.

Examples:
  # Query the local server
  docpipe query --tenant acme "faturas de consultoria"

  # Include highlighted content snippets
  docpipe query --tenant acme --content "despesas de combustivel"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryServer, "server", "http://localhost:8080", "docpipe server URL")
	queryCmd.Flags().StringVar(&queryTenant, "tenant", "default", "tenant to query")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "number of results (0 uses the server default)")
	queryCmd.Flags().BoolVar(&queryContent, "content", false, "include highlighted content snippets")
}

func runQuery(_ *cobra.Command, args []string) error {
	body, err := json.Marshal(rag.Query{
		Query:          strings.Join(args, " "),
		TopK:           queryTopK,
		IncludeContent: queryContent,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, queryServer+"/api/v1/query", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.TenantHeader, queryTenant)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query server at %s: %w", queryServer, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var response rag.Response
	if err := json.Unmarshal(payload, &response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
