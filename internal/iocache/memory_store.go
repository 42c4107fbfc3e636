package iocache

import (
	"database/sql"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
)

// MemoryBackend labels the in-process store in status output.
const MemoryBackend = "memory"

// DefaultMemoryEntries sizes the in-process store used by long-lived servers.
const DefaultMemoryEntries = 512

type memoryEntry struct {
	value   []byte
	version int
	ts      int64
}

// MemoryCacheStore is a bounded in-process CacheStore. Least recently used
// entries are evicted once the size is reached. The lru cache does its own
// locking, so the store is safe for concurrent use.
type MemoryCacheStore struct {
	cache *lru.Cache[string, memoryEntry]
}

var _ contract.CacheStore = &MemoryCacheStore{} // Compile-time check

// NewMemoryCacheStore creates a store holding at most size entries.
func NewMemoryCacheStore(size int) (*MemoryCacheStore, error) {
	cache, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCacheStore{cache: cache}, nil
}

// Get retrieves a value by key. A miss is reported as sql.ErrNoRows, like
// the SQL backed store.
func (m *MemoryCacheStore) Get(key string) ([]byte, int, int64, error) {
	entry, ok := m.cache.Get(key)
	if !ok {
		return nil, 0, 0, sql.ErrNoRows
	}
	return entry.value, entry.version, entry.ts, nil
}

// Set inserts or replaces a key/value pair.
func (m *MemoryCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.cache.Add(key, memoryEntry{value: buf, version: version, ts: timestamp})
	return nil
}

// GetStatus reports the number of live entries and their age range.
func (m *MemoryCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: MemoryBackend, Connected: true}
	var last, oldest int64
	for _, key := range m.cache.Keys() {
		entry, ok := m.cache.Peek(key)
		if !ok {
			continue
		}
		status.TotalEntries++
		status.TableSizeBytes += int64(len(key) + len(entry.value))
		if last == 0 || entry.ts > last {
			last = entry.ts
		}
		if oldest == 0 || entry.ts < oldest {
			oldest = entry.ts
		}
	}
	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(last, 0)
		status.OldestEntryTime = time.Unix(oldest, 0)
	}
	return status, nil
}

// Close drops all entries.
func (m *MemoryCacheStore) Close() error {
	m.cache.Purge()
	return nil
}
