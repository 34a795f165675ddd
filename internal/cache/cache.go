// Package cache memoizes model output per document chunk so repeated
// full-document scans do not call the model again for text it has seen.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Cache maps a chunk id to the model output produced for that chunk.
type Cache interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, chunkID string) ([]byte, bool, error)
	// Put stores value under chunkID, replacing any previous value.
	Put(ctx context.Context, chunkID string, value []byte) error
}

// ChunkID derives a stable id from the chunk text and the prompt version that
// produced the output, so a prompt change invalidates old entries.
func ChunkID(promptVersion, chunk string) string {
	sum := sha256.Sum256([]byte(promptVersion + "\x00" + chunk))
	return hex.EncodeToString(sum[:])
}

// Memory is an in-process Cache. It is safe for concurrent use and is lost
// when the process exits.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
	}
}

// Get implements Cache.
func (m *Memory) Get(ctx context.Context, chunkID string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[chunkID]
	if !ok {
		return nil, false, nil
	}
	// Return a copy to avoid external modifications
	return append([]byte(nil), v...), true, nil
}

// Put implements Cache.
func (m *Memory) Put(ctx context.Context, chunkID string, value []byte) error {
	if chunkID == "" {
		return fmt.Errorf("cache.Put: chunk id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[chunkID] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
