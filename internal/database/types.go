package database

import (
	"time"
)

// StoredEmbedding is a cached reference embedding keyed by the SHA-256 of the
// reference image it was computed from.
type StoredEmbedding struct {
	ImageHash string
	Name      string
	Embedding []float32
	Dim       int
	CreatedAt time.Time
}

// Valid reports whether the embedding can be cached.
func (e *StoredEmbedding) Valid() bool {
	return len(e.ImageHash) == 64 && e.Name != "" && len(e.Embedding) > 0 && e.Dim == len(e.Embedding)
}

// Neighbor is a gallery entry close to a query embedding.
type Neighbor struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}
