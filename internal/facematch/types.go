// Package facematch provides the embedding types and the nearest-neighbour matcher
// shared between the gallery, the session controller and the web handlers.
package facematch

// Embedding is a fixed-length face descriptor produced by the extractor.
// Embeddings are treated as immutable once produced.
type Embedding []float32

// BoundingBox is a face location in pixel coordinates of the image it was detected in.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Entry is one registered person in the gallery.
type Entry struct {
	Name      string    `json:"name"`
	Embedding Embedding `json:"-"`
}

// MatchResult is the outcome of matching one probe against the gallery.
// Name is empty when the probe is unknown.
type MatchResult struct {
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"` // distance to the nearest entry, +Inf for an empty gallery
}

// Identified reports whether the probe matched a registered person.
func (r MatchResult) Identified() bool {
	return r.Name != ""
}

// Label returns the display label for the result.
func (r MatchResult) Label(unknown string) string {
	if r.Name == "" {
		return unknown
	}
	return r.Name
}

// Detection is one face reported by the extractor: where it is and its embedding.
type Detection struct {
	Box       BoundingBox
	Embedding Embedding
}
