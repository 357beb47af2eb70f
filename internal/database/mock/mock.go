// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var (
	_ database.AttendanceStore = (*MockAttendanceStore)(nil)
	_ database.EmbeddingCache  = (*MockEmbeddingCache)(nil)
)

// MockAttendanceStore is a mock implementation of database.AttendanceStore
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records []ledger.Record

	// Error injection
	LoadError   error
	AppendError error
	CountError  error

	// Call tracking
	AppendCalls []ledger.Record
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{}
}

// AddRecord adds a record to the mock store without going through Append
func (m *MockAttendanceStore) AddRecord(rec ledger.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Load returns the stored records
func (m *MockAttendanceStore) Load(ctx context.Context) ([]ledger.Record, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// Append stores a record
func (m *MockAttendanceStore) Append(ctx context.Context, rec ledger.Record, all []ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, rec)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.records = append(m.records, rec)
	return nil
}

// Count returns the number of stored records
func (m *MockAttendanceStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Records returns a copy of the stored records
func (m *MockAttendanceStore) Records() []ledger.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// SetAppendError changes the injected Append error under the store lock
func (m *MockAttendanceStore) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendError = err
}

// MockEmbeddingCache is a mock implementation of database.EmbeddingCache
type MockEmbeddingCache struct {
	mu         sync.RWMutex
	embeddings map[string]facematch.Embedding
	names      map[string]string

	// Error injection
	GetError    error
	PutError    error
	CountError  error
	DeleteError error
}

// NewMockEmbeddingCache creates a new mock embedding cache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{
		embeddings: make(map[string]facematch.Embedding),
		names:      make(map[string]string),
	}
}

// GetEmbedding returns the cached embedding for an image hash
func (m *MockEmbeddingCache) GetEmbedding(ctx context.Context, imageHash string) (facematch.Embedding, bool, error) {
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	emb, ok := m.embeddings[imageHash]
	return emb, ok, nil
}

// PutEmbedding stores an embedding
func (m *MockEmbeddingCache) PutEmbedding(ctx context.Context, imageHash, name string, embedding facematch.Embedding) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[imageHash] = slices.Clone(embedding)
	m.names[imageHash] = name
	return nil
}

// DeleteByName removes every embedding stored for name
func (m *MockEmbeddingCache) DeleteByName(ctx context.Context, name string) (int, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for hash, n := range m.names {
		if n == name {
			delete(m.names, hash)
			delete(m.embeddings, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of cached embeddings
func (m *MockEmbeddingCache) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	return m.Len(), nil
}

// Len returns the number of cached embeddings, ignoring injected errors
func (m *MockEmbeddingCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}

// Name returns the person name stored with an image hash
func (m *MockEmbeddingCache) Name(imageHash string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[imageHash]
}
