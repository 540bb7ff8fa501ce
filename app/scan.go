package app

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JubinSaniei/filesystem/models"
)

// scanBatchSize is how many records accumulate before a batch upsert.
const scanBatchSize = 1000

// Scanner walks a directory subtree depth-first, diffs it against the store
// and applies (or emits) the differences. Ignored directories are pruned
// entirely, not descended into.
type Scanner struct {
	store  *Store
	ignore *Matcher
}

func NewScanner(store *Store, ignore *Matcher) *Scanner {
	return &Scanner{store: store, ignore: ignore}
}

// Scan reconciles the subtree under root with the index.
//
// With emit == nil, differences are applied directly to the store in batched
// transactions. With emit != nil, each difference is reported as a ChangeEvent
// tagged scan-diff and the store is left untouched; the change consumer
// applies them later.
//
// When force is set, previously indexed paths no longer present on disk are
// removed (or reported as deleted events). Unchanged entries are skipped by
// comparing size and modification time. Per-file errors are collected into
// the result; they never abort the scan.
func (sc *Scanner) Scan(ctx context.Context, root string, force bool, emit func(models.ChangeEvent)) (*models.ScanResult, error) {
	root = filepath.Clean(root)

	rootInfo, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root %s: %w", root, err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	stamps, err := sc.store.StampsUnder(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load index stamps for %s: %w", root, err)
	}

	w := &walkState{
		scanner: sc,
		ctx:     ctx,
		root:    root,
		emit:    emit,
		stamps:  stamps,
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
		result:  &models.ScanResult{Root: root},
	}

	w.observe(root, rootInfo)
	w.walk(root)

	if err := w.flush(); err != nil {
		return w.result, err
	}

	if force {
		var removed []string
		for path := range stamps {
			if !w.seen[path] {
				removed = append(removed, path)
			}
		}
		w.result.Removed = len(removed)
		if emit != nil {
			now := time.Now()
			for _, path := range removed {
				emit(models.ChangeEvent{
					Path:       path,
					Kind:       models.ChangeDeleted,
					DetectedAt: now,
					Source:     models.SourceScanDiff,
				})
			}
		} else if err := sc.store.DeleteBatch(ctx, removed); err != nil {
			return w.result, fmt.Errorf("failed to remove vanished entries: %w", err)
		}
	}

	return w.result, nil
}

type walkState struct {
	scanner *Scanner
	ctx     context.Context
	root    string
	emit    func(models.ChangeEvent)

	stamps  map[string]Stamp
	seen    map[string]bool
	visited map[string]bool // resolved real paths, guards symlink cycles
	batch   []models.FileRecord
	result  *models.ScanResult
}

func (w *walkState) walk(dir string) {
	if w.ctx.Err() != nil {
		return
	}

	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.fail(dir, err)
		return
	}
	if w.visited[real] {
		// A symlink loop brought us back somewhere already walked.
		log.Printf("Skipping already visited directory %s (via %s)", real, dir)
		w.result.Skipped++
		return
	}
	w.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.fail(dir, err)
		return
	}

	for _, entry := range entries {
		if w.ctx.Err() != nil {
			return
		}

		full := filepath.Join(dir, entry.Name())
		rel, _ := filepath.Rel(w.root, full)
		if w.scanner.ignore.IsIgnored(rel, entry.IsDir()) {
			w.result.Skipped++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Vanished mid-walk or permission denied; isolated, not fatal.
			w.fail(full, err)
			continue
		}

		w.observe(full, info)

		if entry.IsDir() {
			w.walk(full)
		}
	}
}

// observe diffs one filesystem entry against its indexed stamp and records
// the outcome.
func (w *walkState) observe(path string, info os.FileInfo) {
	w.seen[path] = true
	if !info.IsDir() {
		w.result.Files++
	}

	st, known := w.stamps[path]
	switch {
	case !known:
		w.result.Added++
		w.record(path, info, models.ChangeCreated)
	case st.IsDirectory != info.IsDir(),
		!info.IsDir() && (st.SizeBytes != info.Size() || st.ModifiedUnix != info.ModTime().Unix()):
		w.result.Updated++
		w.record(path, info, models.ChangeModified)
	default:
		w.result.Skipped++
	}
}

func (w *walkState) record(path string, info os.FileInfo, kind models.ChangeKind) {
	if w.emit != nil {
		w.emit(models.ChangeEvent{
			Path:       path,
			Kind:       kind,
			DetectedAt: time.Now(),
			Source:     models.SourceScanDiff,
		})
		return
	}

	w.batch = append(w.batch, BuildRecord(path, info))
	if len(w.batch) >= scanBatchSize {
		if err := w.flush(); err != nil {
			w.fail(path, err)
		}
	}
}

func (w *walkState) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	err := w.scanner.store.UpsertBatch(w.ctx, w.batch)
	w.batch = w.batch[:0]
	return err
}

func (w *walkState) fail(path string, err error) {
	w.result.Errors = append(w.result.Errors, models.ScanError{Path: path, Err: err.Error()})
}

// BuildRecord turns a stat result into an index record.
func BuildRecord(path string, info os.FileInfo) models.FileRecord {
	rec := models.FileRecord{
		Path:        path,
		ParentDir:   filepath.Dir(path),
		Name:        filepath.Base(path),
		IsDirectory: info.IsDir(),
		// Birth time is not portably available; modification time is the
		// closest stable stand-in.
		CreatedTime:  info.ModTime(),
		ModifiedTime: info.ModTime(),
		LastIndexed:  time.Now(),
	}
	if !info.IsDir() {
		rec.SizeBytes = info.Size()
		rec.Extension = strings.ToLower(filepath.Ext(path))
		rec.MimeType = detectMimeType(rec.Extension)
	}
	return rec
}

func detectMimeType(ext string) string {
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// Strip charset parameters, the index stores the bare type.
		if i := strings.Index(t, ";"); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return "application/octet-stream"
}
