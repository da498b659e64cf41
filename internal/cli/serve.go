package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crawlkit/crawld/internal/api"
	"github.com/crawlkit/crawld/internal/ui"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crawl HTTP API server",
	Long: `Starts the HTTP API exposing sub-URL discovery and batch content
extraction endpoints under /api/v1.`,
	Example: `  # Serve on the default address
  crawld serve

  # Serve on a custom port
  crawld serve --listen :9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (host:port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	application := GetApp()
	cfg := application.Config

	addr := cfg.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	// Warm the browser pool so the first JS-rendered request does not pay
	// Chrome startup latency. Static fetches work even when this fails.
	warmCtx, warmCancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	if err := application.EnsureBrowserPool(warmCtx); err != nil {
		log.Warn().Err(err).Msg("Browser pool unavailable, JS rendering disabled")
	}
	warmCancel()

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(cfg, application.Engine, application.BrowserReady),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.Success("Listening on"), ui.Bold(addr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	}
	return nil
}
