package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/metrics"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("session not running")
	// ErrCameraBusy is returned by Capture while the stream holds the camera.
	ErrCameraBusy = errors.New("camera is in use by the running session")
	// ErrNoCamera is returned when no camera source is configured.
	ErrNoCamera = errors.New("no camera configured")
)

// Status messages shown to operators.
const (
	MessageActive  = "Camera Active"
	MessageStopped = "Camera Stopped"
	MessageError   = "Error accessing camera!"
	MessageEnded   = "End of stream"
)

// CameraError reports that the camera could not be opened or stopped
// delivering frames.
type CameraError struct {
	Err error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("camera: %v", e.Err)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of a Runner.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// Status is a point-in-time view of a Runner.
type Status struct {
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Frames    int       `json:"frames"`
	LastError string    `json:"last_error,omitempty"`
}

// Detector finds faces in an encoded image.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]facematch.Detection, error)
}

// Registrar registers a person from an encoded image.
type Registrar interface {
	Register(ctx context.Context, name string, image []byte) error
}

// Runner drives a camera stream through the Controller, one frame at a time.
// The camera is opened by Start and closed when the stream ends, whatever the
// reason.
type Runner struct {
	source     camera.Source
	detector   Detector
	controller *Controller
	scale      int
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
	events     broadcaster

	pauseMu sync.Mutex

	mu        sync.Mutex
	state     State
	message   string
	lastErr   error
	sessionID string
	startedAt time.Time
	frames    int
	baseCtx   context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFrameScale sets the factor frames are shrunk by before detection.
func WithFrameScale(scale int) RunnerOption {
	return func(r *Runner) {
		if scale >= 1 {
			r.scale = scale
		}
	}
}

// WithFrameInterval sets the pause between frames.
func WithFrameInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.interval = d }
}

// WithClock sets the time source used to timestamp frames.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithRunnerMetrics enables metric recording.
func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner. source may be nil when no camera is attached;
// uploaded frames can still be processed with ProcessEncoded.
func NewRunner(source camera.Source, detector Detector, controller *Controller, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:     source,
		detector:   detector,
		controller: controller,
		scale:      constants.DefaultFrameScale,
		now:        time.Now,
		logger:     slog.Default(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the camera and starts the frame loop in the background. ctx
// bounds the whole session: cancelling it stops the stream like Stop does.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyRunning
	}
	if r.source == nil {
		return ErrNoCamera
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		camErr := &CameraError{Err: err}
		r.setStateLocked(StateError, MessageError, camErr)
		r.logger.Error("failed to open camera", "error", err)
		return camErr
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.baseCtx = ctx
	r.cancel = cancel
	r.done = done
	r.sessionID = uuid.NewString()
	r.startedAt = r.now()
	r.frames = 0
	r.setStateLocked(StateRunning, MessageActive, nil)
	r.metrics.SetSessionActive(true)

	r.logger.Info("session started", "session_id", r.sessionID)
	go r.loop(runCtx, stream, done)
	return nil
}

// Stop halts the frame loop and waits until the camera is released.
func (r *Runner) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done

	r.mu.Lock()
	r.setStateLocked(StateStopped, MessageStopped, nil)
	r.mu.Unlock()
	r.metrics.SetSessionActive(false)

	r.logger.Info("session stopped")
	return nil
}

// Wait blocks until the current stream ends. It returns immediately when no
// session is running.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a stream is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Status returns the current runner status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		State:     r.state,
		Message:   r.message,
		SessionID: r.sessionID,
		StartedAt: r.startedAt,
		Frames:    r.frames,
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}

// Subscribe returns a channel of recognition events and a function that
// cancels the subscription and closes the channel.
func (r *Runner) Subscribe() (<-chan FrameEvent, func()) {
	return r.events.subscribe()
}

// Paused runs fn with the stream stopped and resumes it afterwards if it was
// running. Gallery changes go through here so no frame is matched against a
// gallery that is being modified. Only fn's error is returned: a stream that
// fails to resume is logged and shows up in Status.
func (r *Runner) Paused(ctx context.Context, fn func(ctx context.Context) error) error {
	r.pauseMu.Lock()
	defer r.pauseMu.Unlock()

	r.mu.Lock()
	wasRunning := r.cancel != nil
	base := r.baseCtx
	r.mu.Unlock()

	if wasRunning {
		if err := r.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}

	err := fn(ctx)

	if wasRunning {
		if startErr := r.Start(base); startErr != nil {
			r.logger.Error("failed to resume session", "error", startErr)
		}
	}
	return err
}

// Capture grabs one full-resolution frame from the camera and returns it as
// JPEG. The camera is opened and released within the call, so Capture fails
// with ErrCameraBusy while a stream is running; use it inside Paused.
func (r *Runner) Capture(ctx context.Context) ([]byte, error) {
	if r.Running() {
		return nil, ErrCameraBusy
	}
	if r.source == nil {
		return nil, ErrNoCamera
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		return nil, &CameraError{Err: err}
	}
	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.Warn("failed to release camera", "error", err)
		}
	}()

	img, err := stream.Read(ctx)
	if err != nil {
		return nil, &CameraError{Err: err}
	}
	return extractor.EncodeJPEG(img, constants.FrameJPEGQuality)
}

// RegisterFromCamera pauses the stream, captures a frame and registers it as
// name. A frame without a face is discarded and reported as
// gallery.ErrNoFaceDetected.
func (r *Runner) RegisterFromCamera(ctx context.Context, name string, reg Registrar) error {
	return r.Paused(ctx, func(ctx context.Context) error {
		data, err := r.Capture(ctx)
		if err != nil {
			return err
		}
		return reg.Register(ctx, name, data)
	})
}

// ProcessEncoded decodes a JPEG or PNG frame and processes it.
func (r *Runner) ProcessEncoded(ctx context.Context, data []byte) (FrameResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return FrameResult{}, fmt.Errorf("%w: %w", gallery.ErrUnsupportedImage, err)
	}
	return r.ProcessImage(ctx, img)
}

// ProcessImage detects the faces in a frame, labels them and records
// attendance. Detection runs on a copy shrunk by the frame scale; the returned
// boxes are in full-frame coordinates.
func (r *Runner) ProcessImage(ctx context.Context, img image.Image) (FrameResult, error) {
	start := time.Now()
	now := r.now()

	data, err := extractor.EncodeJPEG(extractor.Shrink(img, r.scale), constants.FrameJPEGQuality)
	if err != nil {
		r.metrics.RecordFrame(0, 0, err)
		return FrameResult{}, err
	}

	detections, err := r.detector.DetectFaces(ctx, data)
	if err != nil {
		r.metrics.RecordFrame(0, 0, err)
		return FrameResult{}, &gallery.ExtractionError{Path: "frame", Err: err}
	}

	probes := make([]facematch.Embedding, len(detections))
	boxes := make([]facematch.BoundingBox, len(detections))
	for i, d := range detections {
		probes[i] = d.Embedding
		boxes[i] = d.Box.Scale(r.scale)
	}

	result, err := r.controller.ProcessFrame(ctx, probes, boxes, now)
	r.metrics.RecordFrame(time.Since(start), len(detections), nil)

	if len(result.Identified) > 0 {
		r.mu.Lock()
		sessionID := r.sessionID
		r.mu.Unlock()
		r.events.publish(FrameEvent{
			Time:      now,
			SessionID: sessionID,
			Names:     result.Identified,
			Labels:    result.Labels,
		})
	}
	return result, err
}

// loop reads frames until ctx is cancelled or the stream fails.
func (r *Runner) loop(ctx context.Context, stream camera.Stream, done chan struct{}) {
	var cause error
	defer close(done)
	defer func() { r.finish(done, cause) }()
	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.Warn("failed to release camera", "error", err)
		}
	}()

	var timer *time.Timer
	for {
		if ctx.Err() != nil {
			return
		}

		img, err := stream.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				cause = err
			}
			return
		}

		if _, err := r.ProcessImage(ctx, img); err != nil && ctx.Err() == nil {
			r.logger.Warn("frame processing failed", "error", err)
		}

		r.mu.Lock()
		r.frames++
		r.mu.Unlock()

		if r.interval > 0 {
			if timer == nil {
				timer = time.NewTimer(r.interval)
			} else {
				timer.Reset(r.interval)
			}
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// finish records why a stream ended unless Stop already took over.
func (r *Runner) finish(done chan struct{}, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != done {
		return
	}
	r.cancel()
	r.cancel, r.done = nil, nil
	r.metrics.SetSessionActive(false)

	switch {
	case cause == nil:
		r.setStateLocked(StateStopped, MessageStopped, nil)
	case errors.Is(cause, io.EOF):
		r.setStateLocked(StateStopped, MessageEnded, nil)
		r.logger.Info("camera stream ended", "session_id", r.sessionID)
	default:
		camErr := &CameraError{Err: cause}
		r.setStateLocked(StateError, MessageError, camErr)
		r.logger.Error("camera stream failed", "session_id", r.sessionID, "error", cause)
	}
}

func (r *Runner) setStateLocked(state State, message string, err error) {
	r.state = state
	r.message = message
	r.lastErr = err
}
