package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// referenceExtensions are the only file types recognized as reference images.
var referenceExtensions = []string{".jpg", ".png"}

type refImage struct {
	Name string
	Path string
}

// listImages returns the reference images in dir in file name order.
func listImages(dir string) ([]refImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading faces directory: %w", err)
	}

	var images []refImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(referenceExtensions, ext) {
			continue
		}
		name := facematch.NormalizeName(strings.TrimSuffix(e.Name(), ext))
		if !facematch.ValidName(name) {
			continue
		}
		images = append(images, refImage{Name: name, Path: filepath.Join(dir, e.Name())})
	}
	return images, nil
}

// saveImage atomically writes name's reference image and removes any other
// file that resolves to the same name (other extension or normalization form).
func saveImage(dir, name string, data []byte) error {
	path := filepath.Join(dir, name+extractor.ExtensionFor(data))
	if err := renameio.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("saving reference image %s: %w", path, err)
	}
	_, err := removeImages(dir, name, path)
	return err
}

// removeImages deletes every reference image stored for name except keep and
// returns how many files it removed. A missing directory holds no images.
func removeImages(dir, name, keep string) (int, error) {
	images, err := listImages(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, img := range images {
		if img.Name != name || img.Path == keep {
			continue
		}
		if err := os.Remove(img.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("removing reference image %s: %w", img.Path, err)
		}
		removed++
	}
	return removed, nil
}
