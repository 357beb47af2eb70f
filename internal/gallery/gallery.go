// Package gallery keeps the reference embeddings of registered people.
//
// The gallery is built from a directory holding one still image per person,
// named after the person (Alice.jpg). Published entry slices are never modified:
// registration and removal swap in a new slice, so a matcher holding a Snapshot
// never observes a half-updated gallery.
package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	// ErrNoFaceDetected is returned when a registration image contains no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInvalidName is returned for empty names or names that cannot be file stems.
	ErrInvalidName = errors.New("invalid person name")
	// ErrUnsupportedImage is returned when registration data is neither JPEG nor PNG.
	ErrUnsupportedImage = errors.New("unsupported image format (jpeg or png required)")
	// ErrNotFound is returned when removing a person that is not registered.
	ErrNotFound = errors.New("person not registered")
)

// ExtractionError reports that the extractor failed on one input.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting faces from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor detects faces and computes their embeddings.
type Extractor interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]facematch.Detection, error)
}

// EmbeddingCache stores reference embeddings keyed by the SHA-256 of the image
// they were computed from, so unchanged images skip extraction on reload.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, imageHash string) (facematch.Embedding, bool, error)
	PutEmbedding(ctx context.Context, imageHash, name string, embedding facematch.Embedding) error
}

// nameDeleter is implemented by caches that can drop every embedding of a person.
type nameDeleter interface {
	DeleteByName(ctx context.Context, name string) (int, error)
}

// LoadReport summarizes a directory load.
type LoadReport struct {
	Loaded int      // people registered
	NoFace []string // files skipped because no face was found
	Failed []string // files skipped because extraction failed
}

// Gallery is an insertion-ordered set of named reference embeddings.
type Gallery struct {
	dir       string
	extractor Extractor
	cache     EmbeddingCache
	logger    *slog.Logger
	progress  func(done, total int)

	mu      sync.RWMutex
	entries []facematch.Entry
	index   map[string]int
}

// Option configures a Gallery.
type Option func(*Gallery)

// WithCache enables the embedding cache.
func WithCache(cache EmbeddingCache) Option {
	return func(g *Gallery) { g.cache = cache }
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gallery) { g.logger = logger }
}

// WithProgress registers a callback invoked after each file during Load.
func WithProgress(fn func(done, total int)) Option {
	return func(g *Gallery) { g.progress = fn }
}

// New creates an empty gallery backed by the reference image directory dir.
func New(dir string, ext Extractor, opts ...Option) *Gallery {
	g := &Gallery{
		dir:       dir,
		extractor: ext,
		logger:    slog.Default(),
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the reference image directory.
func (g *Gallery) Dir() string {
	return g.dir
}

// Load rebuilds the gallery from the reference image directory, replacing the
// current entries. Files without a face are skipped silently, files the
// extractor fails on are skipped with a warning. Only an unreadable directory
// fails the load. A missing directory is created.
func (g *Gallery) Load(ctx context.Context) (*LoadReport, error) {
	if err := os.MkdirAll(g.dir, 0750); err != nil {
		return nil, fmt.Errorf("creating faces directory: %w", err)
	}

	images, err := listImages(g.dir)
	if err != nil {
		return nil, err
	}

	report := &LoadReport{}
	var entries []facematch.Entry
	index := make(map[string]int, len(images))

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loading gallery: %w", err)
		}

		emb, err := g.referenceEmbedding(ctx, img)
		switch {
		case errors.Is(err, ErrNoFaceDetected):
			g.logger.Debug("no face in reference image, skipping", "path", img.Path)
			report.NoFace = append(report.NoFace, img.Path)
		case err != nil:
			g.logger.Warn("failed to extract reference face, skipping", "path", img.Path, "error", err)
			report.Failed = append(report.Failed, img.Path)
		default:
			if pos, ok := index[img.Name]; ok {
				entries[pos].Embedding = emb
			} else {
				index[img.Name] = len(entries)
				entries = append(entries, facematch.Entry{Name: img.Name, Embedding: emb})
			}
		}

		if g.progress != nil {
			g.progress(i+1, len(images))
		}
	}
	report.Loaded = len(entries)

	g.mu.Lock()
	g.entries = entries
	g.index = index
	g.mu.Unlock()

	g.logger.Info("loaded known faces", "count", report.Loaded, "dir", g.dir)
	return report, nil
}

// referenceEmbedding returns the embedding of the first face in a reference image.
func (g *Gallery) referenceEmbedding(ctx context.Context, img refImage) (facematch.Embedding, error) {
	data, err := os.ReadFile(img.Path) //nolint:gosec // path is listed from the faces directory
	if err != nil {
		return nil, &ExtractionError{Path: img.Path, Err: err}
	}

	hash := imageHash(data)
	if g.cache != nil {
		emb, ok, err := g.cache.GetEmbedding(ctx, hash)
		if err != nil {
			g.logger.Warn("embedding cache lookup failed", "path", img.Path, "error", err)
		} else if ok {
			return emb, nil
		}
	}

	emb, err := g.extractFirst(ctx, img.Path, data)
	if err != nil {
		return nil, err
	}
	g.cachePut(ctx, hash, img.Name, emb)
	return emb, nil
}

// extractFirst runs the extractor and keeps only the first reported face.
func (g *Gallery) extractFirst(ctx context.Context, path string, data []byte) (facematch.Embedding, error) {
	faces, err := g.extractor.DetectFaces(ctx, data)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	return faces[0].Embedding, nil
}

func (g *Gallery) cachePut(ctx context.Context, hash, name string, emb facematch.Embedding) {
	if g.cache == nil {
		return
	}
	if err := g.cache.PutEmbedding(ctx, hash, name, emb); err != nil {
		g.logger.Warn("failed to cache reference embedding", "name", name, "error", err)
	}
}

// Register extracts the face in image and stores it as name's reference,
// replacing any previous registration of the same name. The image is persisted
// to the faces directory so the person survives a restart. Images without a
// face are rejected with ErrNoFaceDetected and nothing is written.
func (g *Gallery) Register(ctx context.Context, name string, image []byte) error {
	name = facematch.NormalizeName(name)
	if !facematch.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if extractor.DetectMIMEType(image) == "application/octet-stream" {
		return ErrUnsupportedImage
	}

	emb, err := g.extractFirst(ctx, name, image)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(g.dir, 0750); err != nil {
		return fmt.Errorf("creating faces directory: %w", err)
	}
	if err := saveImage(g.dir, name, image); err != nil {
		return err
	}
	g.cachePut(ctx, imageHash(image), name, emb)

	g.mu.Lock()
	entries := slices.Clone(g.entries)
	if pos, ok := g.index[name]; ok {
		entries[pos] = facematch.Entry{Name: name, Embedding: emb}
	} else {
		g.index[name] = len(entries)
		entries = append(entries, facematch.Entry{Name: name, Embedding: emb})
	}
	g.entries = entries
	g.mu.Unlock()

	g.logger.Info("registered face", "name", name)
	return nil
}

// Remove deregisters name and deletes its reference images. Images on disk
// are removed even when they never made it into the gallery, so a gallery
// that was not loaded, or a file without a detectable face, can be cleaned up
// without extracting anything. ErrNotFound means there was nothing to remove.
func (g *Gallery) Remove(ctx context.Context, name string) error {
	name = facematch.NormalizeName(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed, err := removeImages(g.dir, name, "")
	if err != nil {
		return err
	}
	pos, ok := g.index[name]
	if !ok && removed == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	if ok {
		entries := make([]facematch.Entry, 0, len(g.entries)-1)
		entries = append(entries, g.entries[:pos]...)
		entries = append(entries, g.entries[pos+1:]...)
		index := make(map[string]int, len(entries))
		for i, e := range entries {
			index[e.Name] = i
		}
		g.entries = entries
		g.index = index
	}

	if d, ok := g.cache.(nameDeleter); ok {
		if _, err := d.DeleteByName(ctx, name); err != nil {
			g.logger.Warn("failed to drop cached embeddings", "name", name, "error", err)
		}
	}

	g.logger.Info("removed face", "name", name, "images", removed)
	return nil
}

// Snapshot returns the current entries in insertion order.
// The returned slice must not be modified.
func (g *Gallery) Snapshot() []facematch.Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entries
}

// Size returns the number of registered people.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Names returns the registered names in insertion order.
func (g *Gallery) Names() []string {
	entries := g.Snapshot()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Match matches a probe against the current snapshot.
func (g *Gallery) Match(probe facematch.Embedding, tolerance float64) facematch.MatchResult {
	return facematch.Match(probe, g.Snapshot(), tolerance)
}

func imageHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
