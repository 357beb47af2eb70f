// Package metrics provides the Prometheus collectors of the attendance service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the recognition and attendance metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FramesTotal     *prometheus.CounterVec
	FrameDuration   prometheus.Histogram
	FacesDetected   prometheus.Counter
	MatchesTotal    *prometheus.CounterVec
	AttendanceTotal *prometheus.CounterVec
	GallerySize     prometheus.Gauge
	SessionActive   prometheus.Gauge
}

// New creates the metrics and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_frames_total",
				Help: "Total number of processed frames partitioned by status.",
			},
			[]string{"status"},
		),
		FrameDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "attendance_frame_duration_seconds",
				Help:    "Time taken to detect, match and record one frame.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
			},
		),
		FacesDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "attendance_faces_detected_total",
				Help: "Total number of faces detected in frames.",
			},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_matches_total",
				Help: "Total number of match decisions partitioned by result.",
			},
			[]string{"result"},
		),
		AttendanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_marks_total",
				Help: "Total number of attendance marks partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		GallerySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "attendance_gallery_size",
				Help: "Number of people registered in the gallery.",
			},
		),
		SessionActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "attendance_session_active",
				Help: "Whether a camera session is running (1) or not (0).",
			},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register attendance metrics: %w", err)
	}
	return m, nil
}

// RecordFrame records one processed frame.
func (m *Metrics) RecordFrame(duration time.Duration, faces int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FramesTotal.WithLabelValues("error").Inc()
		return
	}
	m.FramesTotal.WithLabelValues("ok").Inc()
	m.FrameDuration.Observe(duration.Seconds())
	m.FacesDetected.Add(float64(faces))
}

// RecordMatch records one match decision.
func (m *Metrics) RecordMatch(identified bool) {
	if m == nil {
		return
	}
	if identified {
		m.MatchesTotal.WithLabelValues("identified").Inc()
	} else {
		m.MatchesTotal.WithLabelValues("unknown").Inc()
	}
}

// RecordMark records the outcome of an attendance mark ("recorded",
// "already_present"), or "error" when err is set.
func (m *Metrics) RecordMark(outcome string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		outcome = "error"
	}
	m.AttendanceTotal.WithLabelValues(outcome).Inc()
}

// SetGallerySize sets the gallery size gauge.
func (m *Metrics) SetGallerySize(n int) {
	if m == nil {
		return
	}
	m.GallerySize.Set(float64(n))
}

// SetSessionActive sets the session gauge.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesTotal.Describe(ch)
	ch <- m.FrameDuration.Desc()
	ch <- m.FacesDetected.Desc()
	m.MatchesTotal.Describe(ch)
	m.AttendanceTotal.Describe(ch)
	ch <- m.GallerySize.Desc()
	ch <- m.SessionActive.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesTotal.Collect(ch)
	ch <- m.FrameDuration
	ch <- m.FacesDetected
	m.MatchesTotal.Collect(ch)
	m.AttendanceTotal.Collect(ch)
	ch <- m.GallerySize
	ch <- m.SessionActive
}
