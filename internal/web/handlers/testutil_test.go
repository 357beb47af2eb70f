package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	black = color.RGBA{A: 255}
)

// colorExtractor reports one face per image whose embedding is the normalized
// color of the top-left pixel. Dark images contain no face.
type colorExtractor struct{}

func (colorExtractor) DetectFaces(_ context.Context, data []byte) ([]facematch.Detection, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	if r+g+b < 0x3000 {
		return nil, nil
	}
	return []facematch.Detection{{
		Box:       facematch.BoundingBox{Top: 1, Right: 3, Bottom: 3, Left: 1},
		Embedding: facematch.Embedding{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff},
	}}, nil
}

// solidPNG encodes a 16x16 image filled with c.
func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// testEnv wires a gallery, ledger and runner the way the server does.
type testEnv struct {
	gallery *gallery.Gallery
	store   *mock.MockAttendanceStore
	ledger  *ledger.Ledger
	runner  *session.Runner
}

func newTestEnv(t *testing.T, source camera.Source) *testEnv {
	t.Helper()
	g := gallery.New(t.TempDir(), colorExtractor{})
	store := mock.NewMockAttendanceStore()
	l := ledger.New(store, ledger.WithLocation(time.UTC))
	clock := func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	runner := session.NewRunner(source, colorExtractor{}, session.NewController(g, l, 0.6),
		session.WithClock(clock), session.WithFrameScale(1))
	t.Cleanup(func() { _ = runner.Stop() })
	return &testEnv{gallery: g, store: store, ledger: l, runner: runner}
}

// register adds name to the gallery with a solid color reference image.
func (e *testEnv) register(t *testing.T, name string, c color.Color) {
	t.Helper()
	if err := e.gallery.Register(context.Background(), name, solidPNG(t, c)); err != nil {
		t.Fatalf("failed to register %s: %v", name, err)
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// writeFrames writes one solid color PNG frame per color and returns the
// directory, for use with camera.NewDirSource.
func writeFrames(t *testing.T, colors ...color.Color) string {
	t.Helper()
	dir := t.TempDir()
	for i, c := range colors {
		path := filepath.Join(dir, fmt.Sprintf("frame-%03d.png", i))
		if err := os.WriteFile(path, solidPNG(t, c), 0600); err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}
	return dir
}
