package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.

The server exposes the attendance kiosk page, a JSON API for the gallery,
the attendance ledger and the camera session, a live recognition feed
(Server-Sent Events) and Prometheus metrics on /metrics.

Examples:
  # Serve on the default address and wait for a session to be started
  face-attendance serve

  # Start the camera session right away
  face-attendance serve --start`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("start", false, "Start the camera session on startup")
}

// resolveServeHostPort applies the --host and --port overrides.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// newMetricsRegistry creates the registry behind /metrics with the runtime
// collectors and the attendance metrics.
func newMetricsRegistry() (*prometheus.Registry, *metrics.Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, nil, err
	}
	return registry, m, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	registry, m, err := newMetricsRegistry()
	if err != nil {
		return err
	}

	l, err := b.openLedger(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Attendance ledger: %d records (%s backend)\n", l.Count(), cfg.Ledger.Backend)
	if summary, err := b.storageSummary(ctx); err != nil {
		fmt.Printf("Warning: %v\n", err)
	} else if summary != "" {
		fmt.Printf("Database: %s\n", summary)
	}

	g := b.newGallery()
	report, err := g.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	printLoadReport(cfg.FacesDir, report)
	m.SetGallerySize(g.Size())

	source := b.cameraSource(false)
	if source == nil {
		fmt.Println("No camera configured (set CAMERA_URL or CAMERA_DIR); frames can still be posted to the API")
	}
	runner := b.newRunner(g, l, m, source)

	server := web.NewServer(cfg, web.Services{
		Gallery:  g,
		Ledger:   l,
		Runner:   runner,
		Metrics:  m,
		Registry: registry,
	})

	if mustGetBool(cmd, "start") {
		if err := runner.Start(ctx); err != nil {
			fmt.Printf("Warning: failed to start camera session: %v\n", err)
		} else {
			fmt.Println(runner.Status().Message)
		}
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}

// printLoadReport prints the outcome of a gallery load.
func printLoadReport(dir string, report *gallery.LoadReport) {
	fmt.Printf("Loaded %d known faces from %s\n", report.Loaded, dir)
	for _, path := range report.NoFace {
		fmt.Printf("  skipped %s: no face detected\n", path)
	}
	for _, path := range report.Failed {
		fmt.Printf("  skipped %s: extraction failed\n", path)
	}
}
