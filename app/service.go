package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JubinSaniei/filesystem/models"
)

// Service is the core facade handed to the API layer. It owns the store, the
// cache, the worker pool and the watcher, and expects pre-validated,
// normalized absolute paths from its callers.
type Service struct {
	cfg     *models.AppConfig
	store   *Store
	cache   *ContentCache
	pool    *WorkerPool
	ignore  *Matcher
	scanner *Scanner
	watcher *Watcher

	queryTimeout time.Duration
}

func NewService(cfg *models.AppConfig) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	store, err := OpenStore(cfg.DBPath, cfg.Query)
	if err != nil {
		return nil, err
	}

	matcher := LoadMatcher(cfg.IgnoreFile)
	scanner := NewScanner(store, matcher)
	cache := NewContentCache(cfg.Cache.MaxBytes, cfg.Cache.MaxEntryBytes)
	pool := NewWorkerPool(cfg.Pool.Workers, cfg.Pool.QueueSize, cfg.Pool.FailFast)

	watcher, err := NewWatcher(store, scanner, matcher, cache, pool, cfg.Watch)
	if err != nil {
		store.Close()
		pool.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Query.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		cfg:          cfg,
		store:        store,
		cache:        cache,
		pool:         pool,
		ignore:       matcher,
		scanner:      scanner,
		watcher:      watcher,
		queryTimeout: timeout,
	}, nil
}

// Start launches the watcher loops and registers the configured roots.
func (s *Service) Start() {
	s.watcher.Start()
	for _, root := range s.cfg.Watch.Roots {
		if _, err := s.Watch(root); err != nil {
			log.Printf("Failed to watch configured root %s: %v", root, err)
		}
	}
}

func (s *Service) Close() {
	s.watcher.Stop()
	s.pool.Close()
	if err := s.store.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
}

// Store exposes the metadata store for read-only callers.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) Watch(path string) (models.WatchResult, error) {
	return s.watcher.Watch(path)
}

func (s *Service) Unwatch(path string) (models.WatchResult, error) {
	return s.watcher.Unwatch(path)
}

func (s *Service) Status() models.WatcherStatus {
	return s.watcher.Status()
}

// Scan runs a reconciling scan of one path, or of every watched root when
// path is empty. Scans execute on the worker pool; Scan waits for them.
func (s *Service) Scan(ctx context.Context, path string, force bool) ([]string, error) {
	var roots []string
	if path != "" {
		roots = []string{filepath.Clean(path)}
	} else {
		roots = s.watcher.Roots()
	}

	var scanned []string
	for _, root := range roots {
		root := root
		err := s.pool.Run(func() error {
			res, err := s.scanner.Scan(ctx, root, force, nil)
			if err != nil {
				return err
			}
			if err := s.store.SetLastScan(root, time.Now()); err != nil {
				log.Printf("Failed to persist last scan time for %s: %v", root, err)
			}
			log.Printf("Scan of %s: %d added, %d updated, %d removed, %d skipped, %d errors",
				root, res.Added, res.Updated, res.Removed, res.Skipped, len(res.Errors))
			return nil
		})
		if err != nil {
			return scanned, err
		}
		scanned = append(scanned, root)
	}
	return scanned, nil
}

// Index forces a full reindex of a subtree and returns the number of live
// entries it saw.
func (s *Service) Index(ctx context.Context, path string) (int, error) {
	path = filepath.Clean(path)

	var count int
	err := s.pool.Run(func() error {
		res, err := s.scanner.Scan(ctx, path, true, nil)
		if err != nil {
			return err
		}
		count = res.FileCount()
		return nil
	})
	return count, err
}

// Query executes a raw SELECT with the configured timeout. On expiry the
// accumulated rows come back flagged as truncated.
func (s *Service) Query(ctx context.Context, query string, params []any, limit int) (*models.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.store.RawQuery(ctx, query, params, limit)
}

// Search runs a structured metadata search with the configured timeout.
func (s *Service) Search(ctx context.Context, filter models.SearchFilter) (*models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.store.StructuredSearch(ctx, filter)
}

// GetMetadata returns the index record for a path.
func (s *Service) GetMetadata(path string) (*models.FileRecord, error) {
	return s.store.GetByPath(filepath.Clean(path))
}

// ListDirectory returns the indexed direct children of a directory.
func (s *Service) ListDirectory(path string) ([]models.FileRecord, error) {
	return s.store.ListDir(filepath.Clean(path))
}

// Stat reports live filesystem state for a path, mapping absence to
// ErrNotFound.
func (s *Service) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return info, err
}

// ReadFile returns file content, consulting the cache first. Files above the
// cache entry ceiling always come straight from disk and are never cached.
func (s *Service) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)

	info, err := s.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if !s.cache.Cacheable(info.Size()) {
		return os.ReadFile(path)
	}

	if data, ok := s.cache.Get(path, info.Size(), info.ModTime()); ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.cache.Put(path, data, info.ModTime())
	return data, nil
}

// WriteFile writes content to a file and synchronously updates the index and
// cache before returning, independent of watcher latency.
func (s *Service) WriteFile(path string, content []byte, mode models.WriteMode) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	var full []byte
	switch mode {
	case models.WriteOverwrite, "":
		full = content
		if err := os.WriteFile(path, content, 0644); err != nil {
			return err
		}
	case models.WriteAppend:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	case models.WritePrepend:
		old, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		full = append(append([]byte{}, content...), old...)
		if err := os.WriteFile(path, full, 0644); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid write mode %q", mode)
	}

	// Stale bytes must never survive a write, even within one coarse
	// modified-time tick.
	s.cache.Invalidate(path)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.shouldIndex(path, false) {
		if err := s.store.Upsert(BuildRecord(path, info)); err != nil {
			return fmt.Errorf("failed to index written file: %w", err)
		}
	}
	if full != nil && s.cache.Cacheable(info.Size()) {
		s.cache.Put(path, full, info.ModTime())
	}

	s.watcher.Notify(filepath.Dir(path), models.ChangeModified)
	return nil
}

// Delete removes a path from disk, the index and the cache.
func (s *Service) Delete(path string, recursive bool) error {
	path = filepath.Clean(path)

	if _, err := s.Stat(path); err != nil {
		return err
	}

	if recursive {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	} else if err := os.Remove(path); err != nil {
		return err
	}

	if _, err := s.store.Delete(path, recursive); err != nil {
		return fmt.Errorf("failed to remove %s from index: %w", path, err)
	}
	s.cache.InvalidateTree(path)
	s.watcher.Notify(filepath.Dir(path), models.ChangeModified)
	return nil
}

// Move renames a path, reindexes the destination and invalidates cache
// entries on both sides.
func (s *Service) Move(ctx context.Context, source, destination string) error {
	source = filepath.Clean(source)
	destination = filepath.Clean(destination)

	if _, err := s.Stat(source); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("failed to create destination parent: %w", err)
	}
	if err := os.Rename(source, destination); err != nil {
		return err
	}

	if _, err := s.store.Delete(source, true); err != nil {
		return fmt.Errorf("failed to remove %s from index: %w", source, err)
	}
	s.cache.InvalidateTree(source)
	s.cache.Invalidate(destination)

	info, err := os.Stat(destination)
	if err != nil {
		return err
	}
	if info.IsDir() {
		err = s.pool.Run(func() error {
			_, err := s.scanner.Scan(ctx, destination, false, nil)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to reindex moved tree: %w", err)
		}
	} else if s.shouldIndex(destination, false) {
		if err := s.store.Upsert(BuildRecord(destination, info)); err != nil {
			return fmt.Errorf("failed to index moved file: %w", err)
		}
	}

	s.watcher.Notify(filepath.Dir(source), models.ChangeModified)
	s.watcher.Notify(filepath.Dir(destination), models.ChangeModified)
	return nil
}

// CreateDirectory makes a directory (and parents) and indexes it.
func (s *Service) CreateDirectory(path string) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.shouldIndex(path, true) {
		if err := s.store.Upsert(BuildRecord(path, info)); err != nil {
			return fmt.Errorf("failed to index directory: %w", err)
		}
	}
	return nil
}

// shouldIndex applies ignore rules relative to the owning watched root, or
// to the path's parent when it is outside every root.
func (s *Service) shouldIndex(path string, isDir bool) bool {
	for _, root := range s.watcher.Roots() {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			rel, _ := filepath.Rel(root, path)
			return !s.ignore.IsIgnored(rel, isDir)
		}
	}
	return !s.ignore.IsIgnored(filepath.Base(path), isDir)
}
