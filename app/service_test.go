package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JubinSaniei/filesystem/models"
)

func TestWriteThenReadFile(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "doc.txt")

	if err := svc.WriteFile(path, []byte("first version"), models.WriteOverwrite); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := svc.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "first version" {
		t.Errorf("expected written content back, got %q", data)
	}

	// The write indexed the file synchronously, no watcher involved.
	rec, err := svc.GetMetadata(path)
	if err != nil {
		t.Fatalf("metadata lookup failed: %v", err)
	}
	if rec.SizeBytes != int64(len("first version")) {
		t.Errorf("index should carry the written size, got %d", rec.SizeBytes)
	}
}

func TestWriteFileAppendAndPrepend(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "log.txt")

	if err := svc.WriteFile(path, []byte("middle"), models.WriteOverwrite); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := svc.WriteFile(path, []byte(" end"), models.WriteAppend); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// A read immediately after an append must see the appended bytes, never
	// a stale cached copy.
	data, err := svc.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "middle end" {
		t.Errorf("expected appended content, got %q", data)
	}

	if err := svc.WriteFile(path, []byte("start "), models.WritePrepend); err != nil {
		t.Fatalf("prepend failed: %v", err)
	}
	data, err = svc.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "start middle end" {
		t.Errorf("expected prepended content, got %q", data)
	}
}

func TestWriteFileAppendCreatesMissingFile(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "nested", "deep", "new.txt")

	if err := svc.WriteFile(path, []byte("born by append"), models.WriteAppend); err != nil {
		t.Fatalf("append to missing file failed: %v", err)
	}
	data, err := svc.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "born by append" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestWriteFileRejectsUnknownMode(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "x.txt")

	if err := svc.WriteFile(path, []byte("x"), "truncate"); err == nil {
		t.Error("unknown write mode must be rejected")
	}
}

func TestReadFileErrors(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()

	if _, err := svc.ReadFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file must map to ErrNotFound, got %v", err)
	}
	if _, err := svc.ReadFile(dir); err == nil {
		t.Error("reading a directory must fail")
	}
}

func TestReadFileBypassesCacheForLargeFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "metadata.db")
	cfg.Cache.MaxBytes = 1024
	cfg.Cache.MaxEntryBytes = 8

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	dir := t.TempDir()
	big := writeTestFile(t, dir, "big.bin", "definitely more than eight bytes")
	small := writeTestFile(t, dir, "small.bin", "tiny")

	if _, err := svc.ReadFile(big); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if entries, _ := svc.cache.Stats(); entries != 0 {
		t.Errorf("oversized file must not enter the cache, found %d entries", entries)
	}

	if _, err := svc.ReadFile(small); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if entries, _ := svc.cache.Stats(); entries != 1 {
		t.Errorf("small file should be cached, found %d entries", entries)
	}
}

func TestDeleteFileSyncsIndex(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "gone.txt")

	if err := svc.WriteFile(path, []byte("bye"), models.WriteOverwrite); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := svc.Delete(path, false); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone from disk")
	}
	if _, err := svc.GetMetadata(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("file should be gone from the index, got %v", err)
	}
	if err := svc.Delete(path, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting a missing path must fail with ErrNotFound, got %v", err)
	}
}

func TestDeleteDirectoryRequiresRecursive(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "tree/leaf.txt", "l")
	tree := filepath.Join(dir, "tree")

	if err := svc.Delete(tree, false); err == nil {
		t.Error("non-recursive delete of a populated directory must fail")
	}
	if err := svc.Delete(tree, true); err != nil {
		t.Fatalf("recursive delete failed: %v", err)
	}
	if _, err := os.Stat(tree); !os.IsNotExist(err) {
		t.Error("tree should be gone from disk")
	}
}

func TestMoveFileSyncsIndex(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "old.txt")
	dst := filepath.Join(dir, "sub", "new.txt")

	if err := svc.WriteFile(src, []byte("movable"), models.WriteOverwrite); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := svc.Move(context.Background(), src, dst); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone from disk")
	}
	if _, err := svc.GetMetadata(src); !errors.Is(err, ErrNotFound) {
		t.Errorf("source should be gone from the index, got %v", err)
	}

	rec, err := svc.GetMetadata(dst)
	if err != nil {
		t.Fatalf("destination missing from index: %v", err)
	}
	if rec.SizeBytes != int64(len("movable")) {
		t.Errorf("unexpected destination record: %+v", rec)
	}

	data, err := svc.ReadFile(dst)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "movable" {
		t.Errorf("content must travel with the move, got %q", data)
	}
}

func TestMoveDirectoryReindexesSubtree(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "src/a.txt", "a")
	writeTestFile(t, dir, "src/inner/b.txt", "b")
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	// Seed the index with the source tree first.
	if _, err := svc.Index(context.Background(), src); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	if err := svc.Move(context.Background(), src, dst); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	if _, err := svc.GetMetadata(filepath.Join(src, "a.txt")); !errors.Is(err, ErrNotFound) {
		t.Errorf("old subtree should leave the index, got %v", err)
	}
	if _, err := svc.GetMetadata(filepath.Join(dst, "inner", "b.txt")); err != nil {
		t.Errorf("moved subtree should be reindexed: %v", err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()

	err := svc.Move(context.Background(), filepath.Join(dir, "ghost"), filepath.Join(dir, "dst"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDirectoryIndexes(t *testing.T) {
	svc := setupTestService(t)
	path := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := svc.CreateDirectory(path); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rec, err := svc.GetMetadata(path)
	if err != nil {
		t.Fatalf("metadata lookup failed: %v", err)
	}
	if !rec.IsDirectory {
		t.Error("created directory must be indexed as a directory")
	}

	// Creating it again is a no-op.
	if err := svc.CreateDirectory(path); err != nil {
		t.Errorf("recreate should succeed: %v", err)
	}
}

func TestServiceQueryAndSearch(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "one.go", "package one")
	writeTestFile(t, dir, "two.md", "# two")

	if _, err := svc.Index(context.Background(), dir); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	res, err := svc.Query(context.Background(),
		"SELECT path FROM file_metadata WHERE extension = ?", []any{".go"}, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if res.RowCount != 1 {
		t.Errorf("expected 1 row, got %d", res.RowCount)
	}

	if _, err := svc.Query(context.Background(), "DELETE FROM file_metadata", nil, 0); err == nil {
		t.Error("write statements must be rejected")
	}

	search, err := svc.Search(context.Background(), models.SearchFilter{Extensions: []string{".md"}})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if search.Total != 1 {
		t.Errorf("expected 1 markdown file, got %d", search.Total)
	}
}

func TestServiceListDirectory(t *testing.T) {
	svc := setupTestService(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "z.txt", "z")
	writeTestFile(t, dir, "folder/f.txt", "f")

	if _, err := svc.Index(context.Background(), dir); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	entries, err := svc.ListDirectory(dir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 direct children, got %d", len(entries))
	}
	if entries[0].Name != "folder" || !entries[0].IsDirectory {
		t.Errorf("directories sort first, got %+v", entries[0])
	}
	if entries[1].Name != "z.txt" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestServiceScanAllWatchedRoots(t *testing.T) {
	svc := setupTestService(t)
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeTestFile(t, dirA, "a.txt", "a")
	writeTestFile(t, dirB, "b.txt", "b")

	if _, err := svc.Watch(dirA); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if _, err := svc.Watch(dirB); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	scanned, err := svc.Scan(context.Background(), "", false)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(scanned) != 2 {
		t.Errorf("expected both roots scanned, got %v", scanned)
	}
	if _, err := svc.GetMetadata(filepath.Join(dirA, "a.txt")); err != nil {
		t.Errorf("root A never indexed: %v", err)
	}
	if _, err := svc.GetMetadata(filepath.Join(dirB, "b.txt")); err != nil {
		t.Errorf("root B never indexed: %v", err)
	}
}
