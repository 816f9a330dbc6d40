package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-mdrender/internal/cache"
)

func newTestStore(t *testing.T, opts ...cache.MemoryOption) *cache.Memory {
	t.Helper()
	m := cache.NewMemory(opts...)
	t.Cleanup(m.Shutdown)
	return m
}

// ---------------------------------------------------------------------------
// TestMemory_GetSet - Basic storage
// ---------------------------------------------------------------------------

func TestMemory_GetSet(t *testing.T) {
	t.Parallel()

	m := newTestStore(t)

	if _, ok := m.Get("missing"); ok {
		t.Fatal("Get(missing) ok = true, want false")
	}

	m.Set("k", "v", time.Hour)
	got, ok := m.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get(k) = %v, %v; want v, true", got, ok)
	}

	m.Set("k", "v2", time.Hour)
	got, _ = m.Get("k")
	if got != "v2" {
		t.Errorf("Get(k) after overwrite = %v, want v2", got)
	}

	m.Delete("k")
	if _, ok := m.Get("k"); ok {
		t.Error("Get(k) after Delete ok = true, want false")
	}
}

// ---------------------------------------------------------------------------
// TestMemory_TTL - Expiry semantics
// ---------------------------------------------------------------------------

func TestMemory_TTL(t *testing.T) {
	t.Parallel()

	m := newTestStore(t)

	m.Set("short", 1, 50*time.Millisecond)
	m.Set("long", 2, time.Hour)
	m.Set("forever", 3, 0)
	m.Set("negative", 4, -time.Second)

	if _, ok := m.Get("short"); !ok {
		t.Error("short entry expired too early")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := m.Get("short"); ok {
		t.Error("short entry still present after TTL")
	}
	for _, key := range []string{"long", "forever", "negative"} {
		if _, ok := m.Get(key); !ok {
			t.Errorf("entry %s expired, want present", key)
		}
	}
}

func TestMemory_TTLNotExtendedByReads(t *testing.T) {
	t.Parallel()

	m := newTestStore(t)
	m.Set("k", "v", 80*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get("k"); ok {
		t.Error("read extended the entry past its TTL")
	}
}

func TestMemory_DeleteExpired(t *testing.T) {
	t.Parallel()

	m := newTestStore(t)
	m.Set("a", 1, 20*time.Millisecond)
	m.Set("b", 2, 20*time.Millisecond)
	m.Set("c", 3, time.Hour)

	time.Sleep(50 * time.Millisecond)
	m.DeleteExpired()

	if got := m.Stats().EntryCount; got != 1 {
		t.Errorf("EntryCount = %d, want 1", got)
	}
	if got := m.Stats().EvictionCount; got != 0 {
		t.Errorf("EvictionCount = %d, want expiries not counted", got)
	}
}

func TestMemory_Janitor(t *testing.T) {
	t.Parallel()

	m := newTestStore(t, cache.WithJanitor())
	m.Set("a", 1, 20*time.Millisecond)
	m.Set("b", 2, time.Hour)

	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get("a"); ok {
		t.Error("expired entry a still readable")
	}
	if got := m.Stats().EntryCount; got != 1 {
		t.Errorf("EntryCount = %d, want 1", got)
	}

	m.Shutdown()
	m.Shutdown()
	m.Set("c", 3, 0)
	if _, ok := m.Get("c"); !ok {
		t.Error("store unusable after Shutdown")
	}
}

// ---------------------------------------------------------------------------
// TestMemory_Eviction - LRU bound
// ---------------------------------------------------------------------------

func TestMemory_Eviction(t *testing.T) {
	t.Parallel()

	m := newTestStore(t, cache.WithMaxEntries(2))

	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Get("a") // a becomes most recently used
	m.Set("c", 3, 0)

	if _, ok := m.Get("b"); ok {
		t.Error("least recently used entry b was not evicted")
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("recently used entry a was evicted")
	}
	if got := m.Stats().EvictionCount; got != 1 {
		t.Errorf("EvictionCount = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// TestMemory_Stats - Counters
// ---------------------------------------------------------------------------

func TestMemory_Stats(t *testing.T) {
	t.Parallel()

	m := newTestStore(t)
	m.Set("k", "value", 0)
	m.Get("k")
	m.Get("k")
	m.Get("nope")

	s := m.Stats()
	if s.HitCount != 2 || s.MissCount != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.HitCount, s.MissCount)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %f, want ~0.667", s.HitRate)
	}
	if s.MemoryUsageMB <= 0 {
		t.Errorf("MemoryUsageMB = %f, want > 0", s.MemoryUsageMB)
	}

	m.Clear()
	if got := m.Stats().EntryCount; got != 0 {
		t.Errorf("EntryCount after Clear = %d, want 0", got)
	}
	if got := m.Stats().HitCount; got != 2 {
		t.Errorf("HitCount after Clear = %d, want counters kept", got)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	t.Parallel()

	m := newTestStore(t, cache.WithMaxEntries(50), cache.WithJanitor())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("%d-%d", id, j%20)
				m.Set(key, j, time.Second)
				m.Get(key)
				if j%7 == 0 {
					m.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := m.Stats().EntryCount; got > 50 {
		t.Errorf("EntryCount = %d, exceeds max entries 50", got)
	}
}
