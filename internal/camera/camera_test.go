package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFrame(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHTTPSource(t *testing.T) {
	frame := pngFrame(t, 8, 6, color.White)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(frame)
	}))
	defer server.Close()

	ctx := context.Background()
	stream, err := NewHTTPSource(server.URL, time.Second).Open(ctx)
	require.NoError(t, err)

	img, err := stream.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, int32(1), hits.Load(), "probe frame is delivered by the first read")

	_, err = stream.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	require.NoError(t, stream.Close())
	_, err = stream.Read(ctx)
	assert.Error(t, err)
}

func TestHTTPSource_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sensor offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL, time.Second).Open(context.Background())
	require.ErrorIs(t, err, ErrNoFrame)
}

func TestHTTPSource_NotAnImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL, time.Second).Open(context.Background())
	require.Error(t, err)
}

func TestHTTPSource_NoURL(t *testing.T) {
	_, err := NewHTTPSource("", time.Second).Open(context.Background())
	require.Error(t, err)
}

func writeFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for i, name := range names {
		data := pngFrame(t, i+1, 1, color.Black)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "b.png", "a.png", "c.PNG")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0600))

	ctx := context.Background()
	stream, err := NewDirSource(dir, false).Open(ctx)
	require.NoError(t, err)
	defer stream.Close()

	// Frames come back in name order: a.png (2px), b.png (1px), c.PNG (3px).
	var widths []int
	for {
		img, err := stream.Read(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		widths = append(widths, img.Bounds().Dx())
	}
	assert.Equal(t, []int{2, 1, 3}, widths)
}

func TestDirSource_Loop(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "only.png")

	ctx := context.Background()
	stream, err := NewDirSource(dir, true).Open(ctx)
	require.NoError(t, err)
	defer stream.Close()

	for range 3 {
		_, err := stream.Read(ctx)
		require.NoError(t, err)
	}
}

func TestDirSource_Empty(t *testing.T) {
	_, err := NewDirSource(t.TempDir(), false).Open(context.Background())
	require.ErrorIs(t, err, ErrNoFrame)

	_, err = NewDirSource(filepath.Join(t.TempDir(), "missing"), false).Open(context.Background())
	require.Error(t, err)
}

func TestDirSource_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "a.png")

	stream, err := NewDirSource(dir, false).Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = stream.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
