package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	api "github.com/contaspt/docpipe/internal/http"
)

var (
	serveTenant string
	serveHost   string
	servePort   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docpipe daemon",
	Long: `Start the docpipe daemon: the scheduled document indexer plus the HTTP API
for routing, retrieval queries and provenance lookups.

Examples:
  # Serve with defaults
  docpipe serve --tenant acme

  # Custom bind address and config file
  docpipe serve --tenant acme --host 0.0.0.0 --port 9000 --config docpipe.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTenant, "tenant", "default", "tenant whose documents are scanned and indexed")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "HTTP bind host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP bind port")
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := buildApp(serveTenant)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.indexer != nil {
		if err := a.indexer.Start(); err != nil {
			return fmt.Errorf("start indexer: %w", err)
		}
		defer a.indexer.Stop()
	}

	srv, err := api.NewServer(a.rag, a.router, a.provenance, a.indexer, a.logger, &api.Config{
		Host: serveHost,
		Port: servePort,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
