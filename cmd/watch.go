package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a recognition session in the foreground",
	Long: `Open the configured camera, recognize faces frame by frame and record
attendance until the stream ends or Ctrl+C is pressed.

Every frame with recognized people prints a notification line:
  [09:00:00] Recognized: Alice, Bob

Examples:
  # Watch an HTTP snapshot camera
  CAMERA_URL=http://camera.local/snapshot.jpg face-attendance watch

  # Replay a directory of frames once
  CAMERA_DIR=./frames face-attendance watch

  # Use a stricter match tolerance
  face-attendance watch --tolerance 0.5`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Float64("tolerance", 0, "Match tolerance (defaults to MATCH_TOLERANCE or 0.6)")
	watchCmd.Flags().Bool("loop", false, "Replay CAMERA_DIR frames forever")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if tolerance := mustGetFloat64(cmd, "tolerance"); tolerance > 0 {
		cfg.Tolerance = tolerance
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	source := b.cameraSource(mustGetBool(cmd, "loop"))
	if source == nil {
		return errors.New("CAMERA_URL or CAMERA_DIR environment variable is required")
	}

	l, err := b.openLedger(ctx)
	if err != nil {
		return err
	}

	g := b.newGallery()
	report, err := g.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	printLoadReport(cfg.FacesDir, report)

	runner := b.newRunner(g, l, nil, source)
	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	before := l.Count()
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	fmt.Println(session.MessageActive)
	fmt.Println("Press Ctrl+C to stop")

	ended := make(chan struct{})
	go func() {
		runner.Wait()
		close(ended)
	}()

	for {
		select {
		case ev := <-events:
			fmt.Println(ev.String())
		case <-ended:
			printPending(events)
			return watchSummary(runner.Status(), l.Count()-before)
		}
	}
}

// printPending prints the events still buffered when the stream ended.
func printPending(events <-chan session.FrameEvent) {
	for {
		select {
		case ev := <-events:
			fmt.Println(ev.String())
		default:
			return
		}
	}
}

func watchSummary(status session.Status, marked int) error {
	fmt.Println(status.Message)
	fmt.Printf("Frames processed: %d, attendance records added: %d\n", status.Frames, marked)
	if status.State == session.StateError {
		return fmt.Errorf("session ended: %s", status.LastError)
	}
	return nil
}
