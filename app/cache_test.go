package app

import (
	"bytes"
	"testing"
	"time"
)

func TestCacheHitAndMiss(t *testing.T) {
	cache := NewContentCache(1024, 512)
	mod := time.Now()

	if _, ok := cache.Get("/f.txt", 5, mod); ok {
		t.Fatal("empty cache must miss")
	}

	if !cache.Put("/f.txt", []byte("hello"), mod) {
		t.Fatal("put should accept a small entry")
	}
	data, ok := cache.Get("/f.txt", 5, mod)
	if !ok || !bytes.Equal(data, []byte("hello")) {
		t.Fatalf("expected hit with original bytes, got ok=%v data=%q", ok, data)
	}
}

func TestCacheStaleFingerprintEvicts(t *testing.T) {
	cache := NewContentCache(1024, 512)
	mod := time.Now()

	cache.Put("/f.txt", []byte("hello"), mod)

	// Changed modTime means the file changed on disk since caching.
	if _, ok := cache.Get("/f.txt", 5, mod.Add(time.Second)); ok {
		t.Fatal("stale modTime must miss")
	}
	// The stale entry is gone even for a matching lookup.
	if _, ok := cache.Get("/f.txt", 5, mod); ok {
		t.Fatal("stale entry must be evicted, not kept")
	}
	if entries, _ := cache.Stats(); entries != 0 {
		t.Errorf("expected 0 entries after staleness eviction, got %d", entries)
	}

	cache.Put("/f.txt", []byte("hello"), mod)
	if _, ok := cache.Get("/f.txt", 6, mod); ok {
		t.Fatal("changed size must miss")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewContentCache(30, 30)
	mod := time.Now()

	cache.Put("/a", make([]byte, 10), mod)
	cache.Put("/b", make([]byte, 10), mod)
	cache.Put("/c", make([]byte, 10), mod)

	// Touch /a so /b becomes the oldest.
	if _, ok := cache.Get("/a", 10, mod); !ok {
		t.Fatal("expected /a to be cached")
	}

	cache.Put("/d", make([]byte, 10), mod)

	if _, ok := cache.Get("/b", 10, mod); ok {
		t.Error("/b should have been evicted as least recently used")
	}
	if _, ok := cache.Get("/a", 10, mod); !ok {
		t.Error("/a was recently used and must survive")
	}
	if _, ok := cache.Get("/d", 10, mod); !ok {
		t.Error("/d was just inserted and must be present")
	}

	entries, total := cache.Stats()
	if entries != 3 || total != 30 {
		t.Errorf("expected 3 entries / 30 bytes, got %d / %d", entries, total)
	}
}

func TestCacheRejectsOversizedEntry(t *testing.T) {
	cache := NewContentCache(1024, 16)

	if cache.Cacheable(16) != true || cache.Cacheable(17) != false {
		t.Error("cacheable threshold should be the max entry size")
	}
	if cache.Put("/big", make([]byte, 17), time.Now()) {
		t.Error("oversized entry must be rejected")
	}
	if entries, _ := cache.Stats(); entries != 0 {
		t.Error("rejected entry must not be stored")
	}
}

func TestCachePutReplacesExisting(t *testing.T) {
	cache := NewContentCache(1024, 512)
	mod := time.Now()

	cache.Put("/f", []byte("old old old"), mod)
	cache.Put("/f", []byte("new"), mod)

	data, ok := cache.Get("/f", 3, mod)
	if !ok || string(data) != "new" {
		t.Fatalf("expected replacement content, got ok=%v data=%q", ok, data)
	}
	entries, total := cache.Stats()
	if entries != 1 || total != 3 {
		t.Errorf("expected 1 entry / 3 bytes, got %d / %d", entries, total)
	}
}

func TestCacheInvalidateTree(t *testing.T) {
	cache := NewContentCache(1024, 512)
	mod := time.Now()

	cache.Put("/dir", []byte("d"), mod)
	cache.Put("/dir/a.txt", []byte("a"), mod)
	cache.Put("/dir/sub/b.txt", []byte("b"), mod)
	cache.Put("/dirent.txt", []byte("x"), mod)

	cache.InvalidateTree("/dir")

	for _, p := range []string{"/dir", "/dir/a.txt", "/dir/sub/b.txt"} {
		if _, ok := cache.Get(p, 1, mod); ok {
			t.Errorf("%s should have been invalidated", p)
		}
	}
	// /dirent.txt shares the string prefix but not the path boundary.
	if _, ok := cache.Get("/dirent.txt", 1, mod); !ok {
		t.Error("/dirent.txt must survive tree invalidation of /dir")
	}
}
