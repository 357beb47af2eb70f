package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFrame(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordFrame(20*time.Millisecond, 3, nil)
	m.RecordFrame(30*time.Millisecond, 1, nil)
	m.RecordFrame(0, 0, errors.New("camera gone"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.FacesDetected))
}

func TestRecordMatchAndMark(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordMatch(true)
	m.RecordMatch(false)
	m.RecordMatch(false)
	m.RecordMark("recorded", nil)
	m.RecordMark("already_present", nil)
	m.RecordMark("recorded", errors.New("disk full"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MatchesTotal.WithLabelValues("identified")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.MatchesTotal.WithLabelValues("unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AttendanceTotal.WithLabelValues("recorded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AttendanceTotal.WithLabelValues("already_present")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AttendanceTotal.WithLabelValues("error")))
}

func TestGauges(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetGallerySize(12)
	m.SetSessionActive(true)
	assert.Equal(t, float64(12), testutil.ToFloat64(m.GallerySize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionActive))

	m.SetSessionActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SessionActive))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFrame(time.Second, 1, nil)
		m.RecordMatch(true)
		m.RecordMark("recorded", nil)
		m.SetGallerySize(1)
		m.SetSessionActive(true)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err)
}
