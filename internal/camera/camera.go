// Package camera provides video frame sources for the recognition session.
package camera

import (
	"context"
	"errors"
	"image"

	// Frame decoders.
	_ "image/jpeg"
	_ "image/png"
)

// ErrNoFrame is returned when a source has no frame to deliver.
var ErrNoFrame = errors.New("no frame available")

// Source opens a video stream. Every successful Open must be paired with a
// Close on the returned Stream.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until it fails or is closed. Read returns io.EOF when a
// finite stream is exhausted.
type Stream interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}
