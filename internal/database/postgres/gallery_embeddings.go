package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// EmbeddingCache stores gallery reference embeddings keyed by the SHA-256 of
// the reference image, so a reload skips extraction for unchanged images.
type EmbeddingCache struct {
	pool *Pool
}

// NewEmbeddingCache creates a new PostgreSQL embedding cache
func NewEmbeddingCache(pool *Pool) *EmbeddingCache {
	return &EmbeddingCache{pool: pool}
}

// Get retrieves a cached embedding by image hash, returns nil if not found
func (c *EmbeddingCache) Get(ctx context.Context, imageHash string) (*database.StoredEmbedding, error) {
	query := `
		SELECT image_hash, name, embedding, dim, created_at
		FROM gallery_embeddings
		WHERE image_hash = $1
	`

	var emb database.StoredEmbedding
	var vec pgvector.Vector

	err := c.pool.QueryRow(ctx, query, imageHash).Scan(
		&emb.ImageHash,
		&emb.Name,
		&vec,
		&emb.Dim,
		&emb.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query gallery embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

// GetEmbedding returns the cached embedding for an image hash
func (c *EmbeddingCache) GetEmbedding(ctx context.Context, imageHash string) (facematch.Embedding, bool, error) {
	emb, err := c.Get(ctx, imageHash)
	if err != nil || emb == nil {
		return nil, false, err
	}
	return facematch.Embedding(emb.Embedding), true, nil
}

// PutEmbedding stores the embedding computed from an image, replacing any
// previous entry for the same hash
func (c *EmbeddingCache) PutEmbedding(ctx context.Context, imageHash, name string, embedding facematch.Embedding) error {
	emb := database.StoredEmbedding{
		ImageHash: imageHash,
		Name:      name,
		Embedding: embedding,
		Dim:       len(embedding),
	}
	if !emb.Valid() {
		return fmt.Errorf("invalid gallery embedding for %q", name)
	}

	query := `
		INSERT INTO gallery_embeddings (image_hash, name, embedding, dim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (image_hash) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`

	_, err := c.pool.Exec(ctx, query, emb.ImageHash, emb.Name, pgvector.NewVector(emb.Embedding), emb.Dim)
	if err != nil {
		return fmt.Errorf("save gallery embedding: %w", err)
	}
	return nil
}

// DeleteByName removes all cached embeddings stored for a person
func (c *EmbeddingCache) DeleteByName(ctx context.Context, name string) (int, error) {
	res, err := c.pool.Exec(ctx, "DELETE FROM gallery_embeddings WHERE name = $1", name)
	if err != nil {
		return 0, fmt.Errorf("delete gallery embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Count returns the number of cached embeddings
func (c *EmbeddingCache) Count(ctx context.Context) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM gallery_embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count gallery embeddings: %w", err)
	}
	return count, nil
}
