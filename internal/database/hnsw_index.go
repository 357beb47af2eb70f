package database

import (
	"cmp"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// GalleryIndex is a nearest neighbour index over gallery entries, keyed by
// person name and using Euclidean distance. It answers "who does this face look
// like" questions (look-alike warnings at registration, the neighbors command).
// Identification itself always uses the exact matcher.
//
// Galleries up to HNSWExactSearchLimit entries are ranked by an exact scan.
// Larger ones collect candidates from the HNSW graph and re-rank them exactly.
type GalleryIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries []facematch.Entry
	dims    int
}

// NewGalleryIndex creates an empty index.
func NewGalleryIndex() *GalleryIndex {
	return &GalleryIndex{}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index content with entries. The first non-empty embedding
// fixes the dimensionality; entries of any other length are left out, as they
// are infinitely far from everything else.
func (h *GalleryIndex) Build(entries []facematch.Entry) {
	var (
		kept []facematch.Entry
		dims int
	)
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(e.Embedding)
		}
		if len(e.Embedding) != dims {
			continue
		}
		kept = append(kept, e)
	}

	var g *hnsw.Graph[string]
	if len(kept) > HNSWExactSearchLimit {
		g = newGraph()
		// The candidate pool spans the gallery so the walk cannot prune a
		// true neighbour before the exact re-rank.
		g.EfSearch = max(HNSWEfSearch, len(kept))
		for _, e := range kept {
			g.Add(hnsw.MakeNode(e.Name, []float32(e.Embedding)))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.entries = kept
	h.dims = dims
}

// Len returns the number of indexed entries.
func (h *GalleryIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Search returns up to k entries nearest to query, closest first. Equal
// distances keep gallery order. Entries named in exclude are skipped.
func (h *GalleryIndex) Search(query facematch.Embedding, k int, exclude ...string) []Neighbor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 || k <= 0 || len(query) != h.dims {
		return nil
	}

	candidates := h.entries
	if h.graph != nil {
		candidates = h.graphCandidates(query)
	}

	distances := facematch.Distances(query, candidates)
	neighbors := make([]Neighbor, 0, len(candidates))
	for i, e := range candidates {
		if slices.Contains(exclude, e.Name) {
			continue
		}
		neighbors = append(neighbors, Neighbor{Name: e.Name, Distance: distances[i]})
	}

	slices.SortStableFunc(neighbors, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// graphCandidates walks the graph for the whole node set, so the exact re-rank
// sees every reachable entry. Results come back in gallery order.
func (h *GalleryIndex) graphCandidates(query facematch.Embedding) []facematch.Entry {
	nodes := h.graph.Search([]float32(query), h.graph.Len())
	found := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		found[n.Key] = true
	}

	candidates := make([]facematch.Entry, 0, len(nodes))
	for _, e := range h.entries {
		if found[e.Name] {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

// Neighbors returns up to k entries nearest to the entry called name,
// excluding the entry itself. ok is false when name is not indexed.
func (h *GalleryIndex) Neighbors(name string, k int) (neighbors []Neighbor, ok bool) {
	h.mu.RLock()
	var vec facematch.Embedding
	for _, e := range h.entries {
		if e.Name == name {
			vec, ok = e.Embedding, true
			break
		}
	}
	h.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return h.Search(vec, k, name), true
}
