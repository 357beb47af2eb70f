package database

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceStore persists attendance records in a database.
type AttendanceStore interface {
	ledger.Store
	// Count returns the total number of stored records
	Count(ctx context.Context) (int, error)
}

// EmbeddingCache stores reference embeddings keyed by image hash
type EmbeddingCache interface {
	// GetEmbedding returns the cached embedding for an image hash, ok is false on a miss
	GetEmbedding(ctx context.Context, imageHash string) (facematch.Embedding, bool, error)
	// PutEmbedding stores (or replaces) the embedding computed from an image
	PutEmbedding(ctx context.Context, imageHash, name string, embedding facematch.Embedding) error
	// Count returns the number of cached embeddings
	Count(ctx context.Context) (int, error)
}
