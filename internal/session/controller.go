// Package session turns camera frames into labeled faces and attendance records.
//
// Controller handles one frame's worth of embeddings: match each against the
// gallery and mark identified people present. Runner owns the camera and feeds
// frames to the controller one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

// ErrLengthMismatch is returned when probes and boxes do not pair up.
var ErrLengthMismatch = errors.New("probes and boxes differ in length")

// Matcher matches a probe against the current gallery snapshot.
type Matcher interface {
	Match(probe facematch.Embedding, tolerance float64) facematch.MatchResult
}

// Marker records attendance.
type Marker interface {
	Mark(ctx context.Context, name string, ts time.Time) (ledger.Outcome, error)
}

// LabeledBox is a detected face with the label to render next to it.
// Distance is left zero when the gallery is empty.
type LabeledBox struct {
	Box      facematch.BoundingBox `json:"box"`
	Label    string                `json:"label"`
	Distance float64               `json:"distance,omitempty"`
}

// FrameResult is the outcome of one frame.
type FrameResult struct {
	Labels     []LabeledBox `json:"labels"`
	Identified []string     `json:"identified"` // distinct names in the order first seen
}

// Controller processes frames sequentially. ProcessFrame calls never overlap.
type Controller struct {
	gallery   Matcher
	ledger    Marker
	tolerance float64
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu sync.Mutex
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller. A non-positive tolerance selects the
// default of 0.6.
func NewController(gallery Matcher, l Marker, tolerance float64, opts ...ControllerOption) *Controller {
	if tolerance <= 0 {
		tolerance = constants.DefaultTolerance
	}
	c := &Controller{
		gallery:   gallery,
		ledger:    l,
		tolerance: tolerance,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessFrame labels every probe and marks each identified person present at
// now. probes[i] belongs to boxes[i]. Every box gets a label even when marking
// fails; mark failures are joined into the returned error and the person is
// tried again on the next frame they appear in.
func (c *Controller) ProcessFrame(ctx context.Context, probes []facematch.Embedding, boxes []facematch.BoundingBox, now time.Time) (FrameResult, error) {
	if len(probes) != len(boxes) {
		return FrameResult{}, fmt.Errorf("%w: %d probes, %d boxes", ErrLengthMismatch, len(probes), len(boxes))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result := FrameResult{Labels: make([]LabeledBox, len(probes))}
	seen := make(map[string]struct{})

	for i, probe := range probes {
		match := c.gallery.Match(probe, c.tolerance)
		c.metrics.RecordMatch(match.Identified())

		result.Labels[i] = LabeledBox{
			Box:   boxes[i],
			Label: match.Label(constants.UnknownLabel),
		}
		if !math.IsInf(match.Distance, 1) {
			result.Labels[i].Distance = match.Distance
		}
		if !match.Identified() {
			continue
		}
		if _, ok := seen[match.Name]; ok {
			continue
		}
		seen[match.Name] = struct{}{}
		result.Identified = append(result.Identified, match.Name)
	}

	var errs []error
	for _, name := range result.Identified {
		outcome, err := c.ledger.Mark(ctx, name, now)
		c.metrics.RecordMark(outcome.String(), err)
		if err != nil {
			c.logger.Error("failed to record attendance", "name", name, "error", err)
			errs = append(errs, fmt.Errorf("marking %s: %w", name, err))
		}
	}

	return result, errors.Join(errs...)
}
