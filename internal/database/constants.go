package database

// HNSW index parameters for gallery embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 64
)

// HNSWExactSearchLimit is the gallery size up to which neighbour queries scan
// every entry instead of walking the graph.
const HNSWExactSearchLimit = 256
