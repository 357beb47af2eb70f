package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// HTTPSource reads frames from a network camera snapshot endpoint that returns
// one JPEG or PNG image per GET request.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a snapshot camera source.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}}
}

// Open checks that the camera answers and returns a stream over it.
func (s *HTTPSource) Open(ctx context.Context) (Stream, error) {
	if s.url == "" {
		return nil, errors.New("camera URL not configured")
	}
	stream := &httpStream{src: s}
	// The first frame doubles as the availability probe.
	img, err := stream.fetch(ctx)
	if err != nil {
		return nil, err
	}
	stream.pending = img
	return stream, nil
}

type httpStream struct {
	src     *HTTPSource
	pending image.Image
	closed  atomic.Bool
}

func (st *httpStream) Read(ctx context.Context) (image.Image, error) {
	if st.closed.Load() {
		return nil, errors.New("camera stream closed")
	}
	if img := st.pending; img != nil {
		st.pending = nil
		return img, nil
	}
	return st.fetch(ctx)
}

func (st *httpStream) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.src.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := st.src.client.Do(req) //nolint:gosec // URL comes from configuration
	if err != nil {
		return nil, fmt.Errorf("could not fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera returned status %d", ErrNoFrame, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("could not read frame: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode frame: %w", err)
	}
	return img, nil
}

func (st *httpStream) Close() error {
	st.closed.Store(true)
	st.pending = nil
	return nil
}
