package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JubinSaniei/filesystem/models"
)

func setupScanTree(t *testing.T) (string, *Scanner, *Store) {
	t.Helper()

	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "alpha")
	writeTestFile(t, dir, "sub/b.txt", "beta")
	writeTestFile(t, dir, "sub/c.go", "package c")

	store := setupTestStore(t)
	return dir, NewScanner(store, NewMatcher(nil)), store
}

func TestScanIndexesNewTree(t *testing.T) {
	dir, scanner, store := setupScanTree(t)

	res, err := scanner.Scan(context.Background(), dir, false, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	// Root dir + sub dir + three files.
	if res.Added != 5 {
		t.Errorf("expected 5 added, got %+v", res)
	}
	if res.Updated != 0 || res.Removed != 0 {
		t.Errorf("fresh scan should only add: %+v", res)
	}
	// Files leaves the two directories out.
	if res.Files != 3 {
		t.Errorf("expected 3 files, got %+v", res)
	}
	if res.FileCount() != 3 {
		t.Errorf("file count must match the file tally, got %d", res.FileCount())
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 indexed rows, got %d", count)
	}

	rec, err := store.GetByPath(filepath.Join(dir, "sub", "c.go"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.Extension != ".go" || rec.SizeBytes != int64(len("package c")) {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRescanUnchangedSkipsEverything(t *testing.T) {
	dir, scanner, _ := setupScanTree(t)

	if _, err := scanner.Scan(context.Background(), dir, false, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	res, err := scanner.Scan(context.Background(), dir, false, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}

	if res.Added != 0 || res.Updated != 0 || res.Removed != 0 {
		t.Errorf("unchanged tree must produce no changes: %+v", res)
	}
	if res.Skipped != 5 {
		t.Errorf("expected 5 skipped, got %+v", res)
	}
	if res.Files != 3 {
		t.Errorf("skipped files still count as seen, got %+v", res)
	}
}

func TestScanDetectsModifiedFile(t *testing.T) {
	dir, scanner, store := setupScanTree(t)

	if _, err := scanner.Scan(context.Background(), dir, false, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("alpha grew longer"), 0644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	// Push the mtime forward in case the rewrite lands in the same second.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	res, err := scanner.Scan(context.Background(), dir, false, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("expected 1 updated, got %+v", res)
	}

	rec, err := store.GetByPath(path)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.SizeBytes != int64(len("alpha grew longer")) {
		t.Errorf("index should carry the new size, got %d", rec.SizeBytes)
	}
}

func TestForceScanRemovesVanishedEntries(t *testing.T) {
	dir, scanner, store := setupScanTree(t)

	if _, err := scanner.Scan(context.Background(), dir, false, nil); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	res, err := scanner.Scan(context.Background(), dir, true, nil)
	if err != nil {
		t.Fatalf("force scan failed: %v", err)
	}
	// sub, sub/b.txt and sub/c.go are gone.
	if res.Removed != 3 {
		t.Errorf("expected 3 removed, got %+v", res)
	}

	if _, err := store.GetByPath(filepath.Join(dir, "sub", "b.txt")); !errors.Is(err, ErrNotFound) {
		t.Errorf("removed file must leave the index, got %v", err)
	}
	if _, err := store.GetByPath(filepath.Join(dir, "a.txt")); err != nil {
		t.Errorf("surviving file must stay indexed: %v", err)
	}
}

func TestScanPrunesIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "keep.txt", "k")
	writeTestFile(t, dir, "node_modules/pkg/index.js", "x")
	writeTestFile(t, dir, "logs/app.log", "l")

	store := setupTestStore(t)
	scanner := NewScanner(store, NewMatcher([]string{"*.log"}))

	if _, err := scanner.Scan(context.Background(), dir, false, nil); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if _, err := store.GetByPath(filepath.Join(dir, "node_modules")); !errors.Is(err, ErrNotFound) {
		t.Error("node_modules must be pruned, not indexed")
	}
	if _, err := store.GetByPath(filepath.Join(dir, "node_modules", "pkg", "index.js")); !errors.Is(err, ErrNotFound) {
		t.Error("files under pruned directories must not be indexed")
	}
	if _, err := store.GetByPath(filepath.Join(dir, "logs", "app.log")); !errors.Is(err, ErrNotFound) {
		t.Error("*.log files must be skipped")
	}
	if _, err := store.GetByPath(filepath.Join(dir, "keep.txt")); err != nil {
		t.Errorf("regular file must be indexed: %v", err)
	}
	if _, err := store.GetByPath(filepath.Join(dir, "logs")); err != nil {
		t.Errorf("the logs directory itself is not ignored: %v", err)
	}
}

func TestScanEmitModeLeavesStoreUntouched(t *testing.T) {
	dir, scanner, store := setupScanTree(t)

	var events []models.ChangeEvent
	res, err := scanner.Scan(context.Background(), dir, true, func(ev models.ChangeEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if res.Added != 5 {
		t.Errorf("expected 5 added, got %+v", res)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 emitted events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Source != models.SourceScanDiff {
			t.Errorf("event %s must be tagged as scan-diff, got %v", ev.Path, ev.Source)
		}
		if ev.Kind != models.ChangeCreated {
			t.Errorf("event %s should be a create, got %v", ev.Path, ev.Kind)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("emit mode must not write to the store, found %d rows", count)
	}
}

func TestScanRejectsNonDirectoryRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "file.txt", "x")

	store := setupTestStore(t)
	scanner := NewScanner(store, NewMatcher(nil))

	if _, err := scanner.Scan(context.Background(), path, false, nil); err == nil {
		t.Error("scanning a plain file must fail")
	}
	if _, err := scanner.Scan(context.Background(), filepath.Join(dir, "missing"), false, nil); err == nil {
		t.Error("scanning a missing path must fail")
	}
}

func TestScanCollectsPerFileErrors(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission tests are meaningless as root")
	}

	dir := t.TempDir()
	writeTestFile(t, dir, "ok.txt", "fine")
	locked := filepath.Join(dir, "locked")
	if err := os.Mkdir(locked, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	writeTestFile(t, dir, "locked/secret.txt", "s")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	store := setupTestStore(t)
	scanner := NewScanner(store, NewMatcher(nil))

	res, err := scanner.Scan(context.Background(), dir, false, nil)
	if err != nil {
		t.Fatalf("scan must not abort on per-file errors: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Error("expected the unreadable directory to be reported")
	}
	if _, err := store.GetByPath(filepath.Join(dir, "ok.txt")); err != nil {
		t.Errorf("readable siblings must still be indexed: %v", err)
	}
}

func TestBuildRecordMimeDetection(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "page.html", "<html></html>")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	rec := BuildRecord(path, info)
	if rec.MimeType != "text/html" {
		t.Errorf("expected text/html, got %q", rec.MimeType)
	}

	binPath := writeTestFile(t, dir, "blob.xyzunknown", "data")
	binInfo, err := os.Stat(binPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if rec := BuildRecord(binPath, binInfo); rec.MimeType != "application/octet-stream" {
		t.Errorf("unknown extension should fall back, got %q", rec.MimeType)
	}
}
