package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JubinSaniei/filesystem/models"
)

// setupTestStore creates a temporary SQLite-backed store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := OpenStore(dbPath, models.QueryConfig{DefaultLimit: 1000, MaxLimit: 10000})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// testRecord builds a plausible file record rooted at dir.
func testRecord(dir, name string, size int64, isDir bool) models.FileRecord {
	path := filepath.Join(dir, name)
	rec := models.FileRecord{
		Path:         path,
		ParentDir:    filepath.Dir(path),
		Name:         filepath.Base(path),
		IsDirectory:  isDir,
		CreatedTime:  time.Now(),
		ModifiedTime: time.Now(),
		LastIndexed:  time.Now(),
	}
	if !isDir {
		rec.SizeBytes = size
		rec.Extension = filepath.Ext(name)
		rec.MimeType = "application/octet-stream"
	}
	return rec
}

// writeTestFile creates a file with content under dir, creating parents.
func writeTestFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// setupTestService builds a full service over a temp database with fast
// watcher timings so tests don't wait on production intervals.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "metadata.db")
	cfg.Watch.ScanIntervalSeconds = 1
	cfg.Watch.BatchAgeMillis = 50
	cfg.Watch.BatchSize = 50

	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { service.Close() })

	return service
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}
