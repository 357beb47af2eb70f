package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the known faces gallery",
	Long: `Manage the reference images of registered people.

The gallery is the faces directory (FACES_DIR, default known_faces) holding
one JPEG or PNG per person, named after the person (Alice.jpg).`,
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered people",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

var galleryLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Extract faces from every reference image and report the result",
	Long: `Extract the reference face of every image in the faces directory.

With DATABASE_URL set, computed embeddings are cached in PostgreSQL so later
loads skip unchanged images.`,
	Args: cobra.NoArgs,
	RunE: runGalleryLoad,
}

var galleryRegisterCmd = &cobra.Command{
	Use:   "register <name> [image]",
	Short: "Register a person from an image file or the camera",
	Long: `Register a person from a JPEG/PNG image, or capture one frame from the
configured camera with --camera. The image must contain a face; a previous
registration of the same name is replaced.

Examples:
  face-attendance gallery register Alice ./alice.jpg
  face-attendance gallery register Bob --camera`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGalleryRegister,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered person",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

var galleryNeighborsCmd = &cobra.Command{
	Use:   "neighbors <name>",
	Short: "Show the registered people who look most alike",
	Long: `Show the gallery entries nearest to a person. Entries closer than the
match tolerance can be confused with each other during recognition.`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryNeighbors,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd, galleryLoadCmd, galleryRegisterCmd, galleryRemoveCmd, galleryNeighborsCmd)

	galleryLoadCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	galleryRegisterCmd.Flags().Bool("camera", false, "Capture the image from the configured camera")
	galleryNeighborsCmd.Flags().Int("k", constants.DefaultNeighborCount, "Number of neighbors to show")
}

// loadGallery opens the backend and loads the gallery, optionally showing a
// progress bar.
func loadGallery(ctx context.Context, cfg *config.Config, progress bool) (*backend, *gallery.Gallery, *gallery.LoadReport, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var opts []gallery.Option
	if progress {
		var bar *progressbar.ProgressBar
		opts = append(opts, gallery.WithProgress(func(done, total int) {
			if bar == nil {
				bar = newLoadProgressBar(total)
			}
			_ = bar.Set(done)
		}))
	}

	g := b.newGallery(opts...)
	report, err := g.Load(ctx)
	if err != nil {
		b.Close()
		return nil, nil, nil, fmt.Errorf("loading known faces: %w", err)
	}
	return b, g, report, nil
}

func newLoadProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Extracting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	b, g, _, err := loadGallery(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	if g.Size() == 0 {
		fmt.Printf("No known faces in %s\n", cfg.FacesDir)
		return nil
	}
	for _, name := range g.Names() {
		fmt.Println(name)
	}
	fmt.Printf("\n%d known faces\n", g.Size())
	return nil
}

func runGalleryLoad(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	b, _, report, err := loadGallery(cmd.Context(), cfg, !mustGetBool(cmd, "no-progress"))
	if err != nil {
		return err
	}
	defer b.Close()

	printLoadReport(cfg.FacesDir, report)
	return nil
}

func runGalleryRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()
	name := args[0]
	fromCamera := mustGetBool(cmd, "camera")

	if fromCamera == (len(args) == 2) {
		return errors.New("provide either an image file or --camera")
	}

	b, g, _, err := loadGallery(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	if fromCamera {
		source := b.cameraSource(false)
		if source == nil {
			return errors.New("CAMERA_URL or CAMERA_DIR environment variable is required")
		}
		// Registration only captures, so the runner needs no controller.
		runner := session.NewRunner(source, b.extractor, nil)
		err = runner.RegisterFromCamera(ctx, name, g)
	} else {
		var data []byte
		data, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		err = g.Register(ctx, name, data)
	}
	if errors.Is(err, gallery.ErrNoFaceDetected) {
		return fmt.Errorf("no face detected, %s was not registered", name)
	}
	if err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}

	fmt.Printf("Registered %s (%d known faces)\n", name, g.Size())
	printLookAlikes(g, name, cfg.Tolerance)
	return nil
}

// printLookAlikes warns about registered people within the match tolerance of
// name.
func printLookAlikes(g *gallery.Gallery, name string, tolerance float64) {
	index := database.NewGalleryIndex()
	index.Build(g.Snapshot())

	neighbors, ok := index.Neighbors(facematch.NormalizeName(name), constants.DefaultNeighborCount)
	if !ok {
		return
	}
	for _, n := range neighbors {
		if n.Distance <= tolerance {
			fmt.Printf("Warning: %s looks like %s (distance %.3f)\n", name, n.Name, n.Distance)
		}
	}
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Removal works on the files directly; loading would extract every image.
	if err := b.newGallery().Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s from %s\n", facematch.NormalizeName(args[0]), cfg.FacesDir)
	return nil
}

func runGalleryNeighbors(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	k := mustGetInt(cmd, "k")
	if k < 1 {
		return errors.New("--k must be at least 1")
	}

	b, g, _, err := loadGallery(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	index := database.NewGalleryIndex()
	index.Build(g.Snapshot())

	name := facematch.NormalizeName(args[0])
	neighbors, ok := index.Neighbors(name, k)
	if !ok {
		return fmt.Errorf("%w: %q", gallery.ErrNotFound, name)
	}
	if len(neighbors) == 0 {
		fmt.Printf("%s is the only known face\n", name)
		return nil
	}

	w := newTabWriter()
	fmt.Fprintln(w, "NAME\tDISTANCE\tCONFUSABLE")
	for _, n := range neighbors {
		confusable := ""
		if n.Distance <= cfg.Tolerance {
			confusable = "yes"
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\n", n.Name, n.Distance, confusable)
	}
	return w.Flush()
}
