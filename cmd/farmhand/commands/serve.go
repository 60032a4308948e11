package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	port     int
	seedDemo bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the marketplace HTTP API, the notification WebSocket and the
scheduled market price sync.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides HTTP_PORT)")
	serveCmd.Flags().BoolVar(&seedDemo, "seed", false, "Load demo data before serving (demo backends only)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, log, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	if port != 0 {
		cfg.HTTPPort = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seedDemo {
		if _, err := a.Seed(ctx); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	scheduler, err := a.StartPriceSync(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	// WriteTimeout stays unset: notification sockets are long-lived and
	// API routes carry their own chi Timeout.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	log.WithFields(logrus.Fields{
		"node": cfg.NodeID,
		"addr": cfg.Addr(),
		"mode": cfg.Mode(),
	}).Info("Starting farmhand")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
