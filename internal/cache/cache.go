// Package cache provides the key/value store shared by the backend resolver
// and the rendering pipeline.
//
// Store is the contract both consumers depend on. Memory is the in-process
// implementation on top of ttlcache: per-entry TTLs, a max-entries bound
// enforced by least-recently-used eviction, and an optional janitor
// goroutine that drops expired entries. All methods are safe for concurrent
// use.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store is the minimal cache contract consumed by the resolver and pipeline.
type Store interface {
	// Get returns the value stored under key, or false when absent or expired.
	Get(key string) (any, bool)
	// Set stores value under key. A zero or negative ttl means no expiry.
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
	Stats() Stats
	// Shutdown stops background work. The store stays usable afterwards.
	Shutdown()
}

// Sizer lets values report their approximate memory footprint in bytes.
type Sizer interface {
	SizeBytes() int
}

// Stats is a point-in-time view of store counters.
type Stats struct {
	EntryCount    int     `json:"entryCount" yaml:"entryCount"`
	HitRate       float64 `json:"hitRate" yaml:"hitRate"`
	HitCount      int64   `json:"hitCount" yaml:"hitCount"`
	MissCount     int64   `json:"missCount" yaml:"missCount"`
	EvictionCount int64   `json:"evictionCount" yaml:"evictionCount"`
	MemoryUsageMB float64 `json:"memoryUsageMB" yaml:"memoryUsageMB"`
}

const (
	// DefaultMaxEntries bounds a Memory store without WithMaxEntries.
	DefaultMaxEntries = 1000

	// entryOverhead approximates list and bookkeeping cost per entry.
	entryOverhead = 128
)

// Memory is an in-process Store.
type Memory struct {
	items      *ttlcache.Cache[string, any]
	maxEntries int
	janitor    bool

	// Capacity evictions only; deletes and expiries are not counted.
	evictions atomic.Int64

	stopOnce sync.Once
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMaxEntries bounds the number of live entries. Values below 1 are ignored.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithJanitor starts a goroutine that removes entries as they expire,
// until Shutdown. Without it expired entries linger until read or evicted.
func WithJanitor() MemoryOption {
	return func(m *Memory) {
		m.janitor = true
	}
}

// NewMemory creates a Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(m)
	}

	m.items = ttlcache.New[string, any](
		ttlcache.WithCapacity[string, any](uint64(m.maxEntries)),
		ttlcache.WithDisableTouchOnHit[string, any](),
	)
	m.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, any]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			m.evictions.Add(1)
		}
	})
	if m.janitor {
		go m.items.Start()
	}
	return m
}

// Get implements Store.
func (m *Memory) Get(key string) (any, bool) {
	item := m.items.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set implements Store.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.items.Set(key, value, ttl)
}

// Delete implements Store.
func (m *Memory) Delete(key string) {
	m.items.Delete(key)
}

// Clear implements Store. Counters are kept.
func (m *Memory) Clear() {
	m.items.DeleteAll()
}

// Stats implements Store. Entry count and memory cover live entries only.
func (m *Memory) Stats() Stats {
	metrics := m.items.Metrics()
	s := Stats{
		HitCount:      int64(metrics.Hits),
		MissCount:     int64(metrics.Misses),
		EvictionCount: m.evictions.Load(),
	}
	if total := s.HitCount + s.MissCount; total > 0 {
		s.HitRate = float64(s.HitCount) / float64(total)
	}

	bytes := 0
	for key, item := range m.items.Items() {
		if item.IsExpired() {
			continue
		}
		s.EntryCount++
		bytes += sizeOf(key, item.Value())
	}
	s.MemoryUsageMB = float64(bytes) / (1 << 20)
	return s
}

// Shutdown implements Store.
func (m *Memory) Shutdown() {
	if !m.janitor {
		return
	}
	m.stopOnce.Do(m.items.Stop)
}

// DeleteExpired removes every expired entry now.
func (m *Memory) DeleteExpired() {
	m.items.DeleteExpired()
}

func sizeOf(key string, value any) int {
	n := len(key) + entryOverhead
	switch v := value.(type) {
	case Sizer:
		n += v.SizeBytes()
	case string:
		n += len(v)
	case []byte:
		n += len(v)
	}
	return n
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
