package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var frameExtensions = []string{".jpg", ".jpeg", ".png"}

// DirSource replays the images of a directory in file name order, one frame
// per Read. Useful for testing a deployment without a camera.
type DirSource struct {
	dir  string
	loop bool
}

// NewDirSource creates a replay source. With loop set the stream restarts at
// the first frame instead of ending.
func NewDirSource(dir string, loop bool) *DirSource {
	return &DirSource{dir: dir, loop: loop}
}

// Open lists the frames. An empty or missing directory is an error.
func (s *DirSource) Open(_ context.Context) (Stream, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(s.dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrNoFrame, s.dir)
	}
	return &dirStream{paths: paths, loop: s.loop}, nil
}

type dirStream struct {
	paths  []string
	next   int
	loop   bool
	closed bool
}

func (st *dirStream) Read(ctx context.Context) (image.Image, error) {
	if st.closed {
		return nil, fmt.Errorf("frame directory stream closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.next >= len(st.paths) {
		if !st.loop {
			return nil, io.EOF
		}
		st.next = 0
	}

	path := st.paths[st.next]
	st.next++

	f, err := os.Open(path) //nolint:gosec // path is listed from the frame directory
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return img, nil
}

func (st *dirStream) Close() error {
	st.closed = true
	return nil
}
