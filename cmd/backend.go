package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// cameraTimeout bounds one snapshot request to an HTTP camera.
const cameraTimeout = 10 * time.Second

// backend holds the storage and extractor wiring shared by the commands.
type backend struct {
	cfg       *config.Config
	extractor *extractor.Client
	store     ledger.Store
	db        database.AttendanceStore // nil for the CSV ledger
	cache     database.EmbeddingCache  // nil without DATABASE_URL
	closers   []func() error
}

// openBackend connects the configured ledger store. PostgreSQL, when
// configured, also backs the reference embedding cache whatever the ledger
// backend is.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{
		cfg:       cfg,
		extractor: extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.Timeout),
	}

	var pgPool *postgres.Pool
	if cfg.Database.URL != "" || cfg.Ledger.Backend == "postgres" {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		pgPool = pool
		b.closers = append(b.closers, pool.Close)
		b.cache = postgres.NewEmbeddingCache(pool)
	}

	switch cfg.Ledger.Backend {
	case "", "csv":
		b.store = ledger.NewFileStore(cfg.AttendanceFile)
	case "postgres":
		repo := postgres.NewAttendanceRepository(pgPool)
		b.store, b.db = repo, repo
	case "mysql", "mariadb":
		pool, err := mariadb.Open(ctx, &cfg.Database)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		repo := mariadb.NewAttendanceRepository(pool)
		b.store, b.db = repo, repo
	default:
		b.Close()
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q (expected csv, postgres or mysql)", cfg.Ledger.Backend)
	}

	slog.Debug("storage ready", "ledger_backend", cfg.Ledger.Backend, "database_ledger", b.db != nil, "embedding_cache", b.cache != nil)
	return b, nil
}

// Close releases the database connections.
func (b *backend) Close() {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
	b.closers = nil
}

// storageSummary reports the row counts of the database stores, or an empty
// string when neither the ledger nor the embedding cache lives in a database.
func (b *backend) storageSummary(ctx context.Context) (string, error) {
	var parts []string
	if b.db != nil {
		n, err := b.db.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("counting attendance rows: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%d attendance rows", n))
	}
	if b.cache != nil {
		n, err := b.cache.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("counting cached embeddings: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%d cached embeddings", n))
	}
	return strings.Join(parts, ", "), nil
}

// openLedger creates the attendance ledger and loads the persisted records.
func (b *backend) openLedger(ctx context.Context) (*ledger.Ledger, error) {
	l := ledger.New(b.store, ledger.WithLocation(b.cfg.Location))
	if err := l.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading attendance: %w", err)
	}
	return l, nil
}

// newGallery creates an empty gallery over the faces directory. Call Load to
// read the reference images.
func (b *backend) newGallery(opts ...gallery.Option) *gallery.Gallery {
	if b.cache != nil {
		opts = append(opts, gallery.WithCache(b.cache))
	}
	return gallery.New(b.cfg.FacesDir, b.extractor, opts...)
}

// newRunner wires the session controller and the frame loop. source may be nil
// when no camera is configured.
func (b *backend) newRunner(g *gallery.Gallery, l *ledger.Ledger, m *metrics.Metrics, source camera.Source) *session.Runner {
	controller := session.NewController(g, l, b.cfg.Tolerance, session.WithMetrics(m))
	return session.NewRunner(source, b.extractor, controller,
		session.WithFrameScale(b.cfg.FrameScale),
		session.WithFrameInterval(b.cfg.FrameInterval),
		session.WithRunnerMetrics(m),
	)
}

// cameraSource returns the configured camera, or nil. An HTTP snapshot camera
// wins over a replay directory.
func (b *backend) cameraSource(loop bool) camera.Source {
	if !b.cfg.Camera.Configured() {
		return nil
	}
	if b.cfg.Camera.URL != "" {
		return camera.NewHTTPSource(b.cfg.Camera.URL, cameraTimeout)
	}
	return camera.NewDirSource(b.cfg.Camera.Dir, loop)
}
