package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/facegate/internal/syncer"
	"github.com/example/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition server",
	Long: `Start the Facegate HTTP server.
The server exposes the recognition, enrollment, sync and attendance API
and keeps the face index reconciled against the identity directory in
the background.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("no-sync", false, "Disable the background directory sync loop")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	coord, err := a.coordinator()
	if err != nil {
		return err
	}
	reconciler := a.reconciler()
	service := a.service(coord)

	if a.pool == nil {
		fmt.Println("No DATABASE_URL set, running without directory sync and attendance")
	}

	if reconciler != nil && !mustGetBool(cmd, "no-sync") {
		interval := time.Duration(a.cfg.Sync.IntervalSeconds) * time.Second
		go reconciler.Run(ctx, interval, func(report *syncer.Report, err error) {
			if err != nil {
				fmt.Printf("Warning: background sync failed: %v\n", err)
				return
			}
			service.Runtime().MarkSynced(report.StartedAt.Add(report.Duration))
		})
	}

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(service, coord, reconciler, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		if err := a.saveSnapshot(); err != nil {
			fmt.Printf("Warning: failed to save snapshot: %v\n", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facegate on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
