package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Shrink scales an image down by factor in both dimensions.
// A factor of 1 or less returns the image unchanged.
func Shrink(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}

	bounds := img.Bounds()
	newWidth := max(bounds.Dx()/factor, 1)
	newHeight := max(bounds.Dy()/factor, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes a frame for upload to the extractor.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
