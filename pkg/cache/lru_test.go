package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("/dmps/10.48321/D1AAA", []byte(`{"title":"a"}`))
	got, ok := c.Get("/dmps/10.48321/D1AAA")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"title":"a"}`), got)

	// Overwrite in place.
	c.Set("/dmps/10.48321/D1AAA", []byte(`{"title":"b"}`))
	got, _ = c.Get("/dmps/10.48321/D1AAA")
	assert.Equal(t, []byte(`{"title":"b"}`), got)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache(10, 10*time.Millisecond)

	c.Set("key", []byte("value"))
	_, ok := c.Get("key")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewLRUCache(2, time.Minute)

	c.Set("a", []byte("1"))
	time.Sleep(time.Millisecond)
	c.Set("b", []byte("2"))
	time.Sleep(time.Millisecond)
	c.Set("c", []byte("3"))

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_InvalidatePrefix(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	c.Set("/dmps/10.48321/D1AAA", []byte("latest"))
	c.Set("/dmps/10.48321/D1AAA?version=tombstone", []byte("versioned"))
	c.Set("/dmps/10.48321/D1BBB", []byte("other"))

	c.InvalidatePrefix("/dmps/10.48321/D1AAA")

	_, ok := c.Get("/dmps/10.48321/D1AAA")
	assert.False(t, ok)
	_, ok = c.Get("/dmps/10.48321/D1AAA?version=tombstone")
	assert.False(t, ok)
	_, ok = c.Get("/dmps/10.48321/D1BBB")
	assert.True(t, ok, "other records must keep their entries")
}

func TestLRUCache_InvalidateAll(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.InvalidateAll()
	assert.Equal(t, 0, c.Size())
}

func TestManager_NilIsDisabled(t *testing.T) {
	var m *Manager
	m.InvalidateRecord("10.48321/D1AAA")
	m.InvalidateAll()
	assert.NotNil(t, m.Middleware())

	assert.Nil(t, NewManager(nil))
	assert.Nil(t, NewManager(&CacheConfig{Enabled: false}))
}
