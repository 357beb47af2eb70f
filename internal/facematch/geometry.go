package facematch

// BoxFromCorners converts an extractor bbox [x1, y1, x2, y2] in pixels to a
// BoundingBox. Returns false if the slice does not hold four coordinates.
func BoxFromCorners(bbox []float64) (BoundingBox, bool) {
	if len(bbox) != 4 {
		return BoundingBox{}, false
	}
	return BoundingBox{
		Left:   int(bbox[0]),
		Top:    int(bbox[1]),
		Right:  int(bbox[2]),
		Bottom: int(bbox[3]),
	}, true
}

// Scale multiplies every coordinate by factor.
// Used to map boxes detected on a downscaled frame back to the full frame.
func (b BoundingBox) Scale(factor int) BoundingBox {
	if factor <= 1 {
		return b
	}
	return BoundingBox{
		Top:    b.Top * factor,
		Right:  b.Right * factor,
		Bottom: b.Bottom * factor,
		Left:   b.Left * factor,
	}
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}
