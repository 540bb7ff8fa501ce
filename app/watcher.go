package app

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JubinSaniei/filesystem/models"
)

// watchTarget tracks one registered root.
type watchTarget struct {
	path         string
	registeredAt time.Time
	lastScan     time.Time
	active       bool
	scanning     bool
	lastErr      error
}

// Watcher keeps the metadata index synchronized with live filesystem state.
// OS notifications and periodic reconciliation scans both feed the same
// bounded change queue as tagged ChangeEvents; a single consumer drains the
// queue in batches and applies them to the store. The periodic scan is the
// safety net against dropped OS events.
type Watcher struct {
	store   *Store
	scanner *Scanner
	ignore  *Matcher
	cache   *ContentCache
	pool    *WorkerPool

	scanInterval time.Duration
	batchSize    int
	batchAge     time.Duration

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	targets map[string]*watchTarget
	started bool

	queue chan models.ChangeEvent
	retry []models.ChangeEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWatcher(store *Store, scanner *Scanner, ignore *Matcher, cache *ContentCache, pool *WorkerPool, cfg models.WatchConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	interval := time.Duration(cfg.ScanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	batchAge := time.Duration(cfg.BatchAgeMillis) * time.Millisecond
	if batchAge <= 0 {
		batchAge = 2 * time.Second
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		store:        store,
		scanner:      scanner,
		ignore:       ignore,
		cache:        cache,
		pool:         pool,
		scanInterval: interval,
		batchSize:    batchSize,
		batchAge:     batchAge,
		fsw:          fsw,
		targets:      make(map[string]*watchTarget),
		queue:        make(chan models.ChangeEvent, queueSize),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the event, consumer and reconciliation loops.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(3)
	go w.eventLoop()
	go w.consumeLoop()
	go w.reconcileLoop()
}

// Stop shuts the watcher down and waits for its goroutines.
func (w *Watcher) Stop() {
	w.cancel()
	if err := w.fsw.Close(); err != nil {
		log.Printf("Error closing fsnotify watcher: %v", err)
	}
	w.wg.Wait()
}

// Watch registers a directory root. Registration is idempotent: watching an
// already watched path changes nothing. The initial scan runs through the
// reconciliation path shortly after registration.
func (w *Watcher) Watch(path string) (models.WatchResult, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return models.WatchResult{}, fmt.Errorf("cannot watch %s: %w", path, ErrNotFound)
	}
	if !info.IsDir() {
		return models.WatchResult{}, fmt.Errorf("cannot watch %s: not a directory", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.targets[path]; ok {
		return models.WatchResult{Path: path, Changed: false, WatchedCount: len(w.targets)}, nil
	}

	w.targets[path] = &watchTarget{
		path:         path,
		registeredAt: time.Now(),
		active:       true,
	}
	w.subscribeTree(path)
	log.Printf("Watching directory %s", path)

	return models.WatchResult{Path: path, Changed: true, WatchedCount: len(w.targets)}, nil
}

// Unwatch cancels the subscription for a root. Queued events under the root
// are discarded at consumption time; index records for the root stay intact.
// An in-flight scan for the root is not interrupted.
func (w *Watcher) Unwatch(path string) (models.WatchResult, error) {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.targets[path]; !ok {
		return models.WatchResult{Path: path, Changed: false, WatchedCount: len(w.targets)}, nil
	}

	delete(w.targets, path)
	for _, watched := range w.fsw.WatchList() {
		if watched == path || strings.HasPrefix(watched, path+string(filepath.Separator)) {
			w.fsw.Remove(watched)
		}
	}
	log.Printf("Stopped watching directory %s", path)

	return models.WatchResult{Path: path, Changed: true, WatchedCount: len(w.targets)}, nil
}

// Status reports watcher state, per-target scan scheduling and queue depths.
func (w *Watcher) Status() models.WatcherStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := models.WatcherStatus{
		State:               "inactive",
		WatchedDirectories:  make([]string, 0, len(w.targets)),
		PerDirectory:        make(map[string]models.TargetStatus, len(w.targets)),
		ScanIntervalSeconds: int(w.scanInterval / time.Second),
		PendingQueueDepth:   len(w.queue),
		WorkerQueueDepth:    w.pool.QueueDepth(),
		BatchSize:           w.batchSize,
	}
	if w.started && len(w.targets) > 0 {
		status.State = "active"
	}

	now := time.Now()
	for path, t := range w.targets {
		status.WatchedDirectories = append(status.WatchedDirectories, path)

		ts := models.TargetStatus{Active: t.active, LastScanTime: t.lastScan}
		if !t.lastScan.IsZero() {
			ts.SecondsAgo = int(now.Sub(t.lastScan) / time.Second)
			ts.NextScanIn = int(w.scanInterval/time.Second) - ts.SecondsAgo
			if ts.NextScanIn < 0 {
				ts.NextScanIn = 0
			}
		}
		if t.lastErr != nil {
			ts.LastError = t.lastErr.Error()
		}
		status.PerDirectory[path] = ts
	}
	sort.Strings(status.WatchedDirectories)

	return status
}

// Notify feeds an externally detected change into the queue. Write paths use
// this after their synchronous index update so coalescing still applies to
// any follow-up OS events.
func (w *Watcher) Notify(path string, kind models.ChangeKind) {
	w.enqueue(models.ChangeEvent{
		Path:       path,
		Kind:       kind,
		DetectedAt: time.Now(),
		Source:     models.SourceNotification,
	}, false)
}

// subscribeTree adds fsnotify subscriptions for root and every non-ignored
// directory below it. fsnotify watches are not recursive on their own.
func (w *Watcher) subscribeTree(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if w.ignore.IsIgnored(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("Failed to subscribe to %s: %v", path, err)
		}
		return nil
	})
}

// eventLoop converts fsnotify events into ChangeEvents on the queue.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			var kind models.ChangeKind
			switch {
			case event.Has(fsnotify.Create):
				kind = models.ChangeCreated
			case event.Has(fsnotify.Write):
				kind = models.ChangeModified
			case event.Has(fsnotify.Remove):
				kind = models.ChangeDeleted
			case event.Has(fsnotify.Rename):
				// The new name arrives as its own create event.
				kind = models.ChangeDeleted
			default:
				continue
			}

			w.enqueue(models.ChangeEvent{
				Path:       filepath.Clean(event.Name),
				Kind:       kind,
				DetectedAt: time.Now(),
				Source:     models.SourceNotification,
			}, false)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// enqueue adds an event to the bounded queue. Scan-diff producers block so a
// reconciliation scan cannot silently lose its findings; notification
// producers drop on overflow since the next reconciliation repairs the gap.
func (w *Watcher) enqueue(ev models.ChangeEvent, block bool) {
	if block {
		select {
		case w.queue <- ev:
		case <-w.ctx.Done():
		}
		return
	}

	select {
	case w.queue <- ev:
	default:
		log.Printf("Change queue full, dropping event for %s", ev.Path)
	}
}

// consumeLoop drains the queue in batches. A batch flushes when it reaches
// batchSize or when batchAge elapses, whichever comes first. Events for the
// same path coalesce to the most recent kind.
func (w *Watcher) consumeLoop() {
	defer w.wg.Done()

	batch := make(map[string]models.ChangeEvent)
	timer := time.NewTimer(w.batchAge)
	defer timer.Stop()

	flush := func() {
		if len(batch) > 0 || len(w.retry) > 0 {
			w.applyBatch(batch)
			batch = make(map[string]models.ChangeEvent)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.batchAge)
	}

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev := <-w.queue:
			if prev, ok := batch[ev.Path]; !ok || !ev.DetectedAt.Before(prev.DetectedAt) {
				batch[ev.Path] = ev
			}
			if len(batch) >= w.batchSize {
				flush()
			}

		case <-timer.C:
			flush()
		}
	}
}

// applyBatch applies one coalesced batch to the store. Upsert failures are
// kept for retry on the next consumer tick rather than surfaced.
func (w *Watcher) applyBatch(batch map[string]models.ChangeEvent) {
	events := make([]models.ChangeEvent, 0, len(batch)+len(w.retry))
	events = append(events, w.retry...)
	w.retry = nil
	for _, ev := range batch {
		events = append(events, ev)
	}
	// Across batches, application follows detection order.
	sort.Slice(events, func(i, j int) bool {
		return events[i].DetectedAt.Before(events[j].DetectedAt)
	})

	var upserts []models.FileRecord
	var contributors []models.ChangeEvent // events behind the upserts, for retry
	var pending []models.ChangeEvent

	for _, ev := range events {
		root, ok := w.owningRoot(ev.Path)
		if !ok {
			// Root was unwatched after the event was queued.
			continue
		}
		rel, _ := filepath.Rel(root, ev.Path)

		if ev.Kind == models.ChangeDeleted {
			// The entry is gone, so whether it was a directory is unknowable;
			// testing as a directory covers both rule forms.
			if w.ignore.IsIgnored(rel, true) {
				continue
			}
			if _, err := w.store.Delete(ev.Path, true); err != nil {
				log.Printf("Failed to remove %s from index: %v", ev.Path, err)
				pending = append(pending, ev)
				continue
			}
			w.cache.InvalidateTree(ev.Path)
			continue
		}

		info, err := os.Stat(ev.Path)
		if err != nil {
			// Gone by the time the batch ran; treat as a delete.
			if _, derr := w.store.Delete(ev.Path, true); derr != nil {
				pending = append(pending, ev)
			}
			w.cache.InvalidateTree(ev.Path)
			continue
		}

		if w.ignore.IsIgnored(rel, info.IsDir()) {
			continue
		}

		upserts = append(upserts, BuildRecord(ev.Path, info))
		contributors = append(contributors, ev)
		w.cache.Invalidate(ev.Path)

		if info.IsDir() && ev.Kind == models.ChangeCreated {
			// New directory: subscribe it and pick up contents that may
			// have appeared before the subscription existed.
			w.subscribeTree(ev.Path)
			dir := ev.Path
			if err := w.pool.TrySubmit(func() {
				if _, err := w.scanner.Scan(w.ctx, dir, false, nil); err != nil {
					log.Printf("Subtree scan of %s failed: %v", dir, err)
				}
			}); err != nil {
				log.Printf("Subtree scan of %s not scheduled: %v", dir, err)
			}
		}
	}

	if err := w.store.UpsertBatch(w.ctx, upserts); err != nil {
		log.Printf("Batch upsert of %d records failed, retrying next tick: %v", len(upserts), err)
		// Only the events that produced records go back on the retry list;
		// ignored and unwatched events were already settled above.
		pending = append(pending, contributors...)
	}
	w.retry = pending
}

// Roots returns the currently watched roots.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	roots := make([]string, 0, len(w.targets))
	for root := range w.targets {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

func (w *Watcher) owningRoot(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for root := range w.targets {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// reconcileLoop schedules a full reconciliation scan per target whenever its
// interval elapses. The first scan after registration runs on the next tick.
// A failing target stays registered and is retried; it never affects others.
func (w *Watcher) reconcileLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.scheduleDueScans()
		}
	}
}

func (w *Watcher) scheduleDueScans() {
	w.mu.Lock()
	now := time.Now()
	var due []string
	for path, t := range w.targets {
		if t.scanning {
			continue
		}
		if !t.lastScan.IsZero() && now.Sub(t.lastScan) < w.scanInterval {
			continue
		}
		t.scanning = true
		due = append(due, path)
	}
	w.mu.Unlock()

	// Submission happens outside the mutex and never blocks: a saturated
	// pool must not wedge Status, Watch or the change consumer. A root that
	// misses a slot is picked up again on a later tick.
	for _, root := range due {
		root := root
		if err := w.pool.TrySubmit(func() { w.reconcile(root) }); err != nil {
			w.mu.Lock()
			if t, ok := w.targets[root]; ok {
				t.scanning = false
			}
			w.mu.Unlock()
		}
	}
}

// reconcile runs one full scan of a root, feeding its diffs into the change
// queue as scan-diff events.
func (w *Watcher) reconcile(root string) {
	res, err := w.scanner.Scan(w.ctx, root, true, func(ev models.ChangeEvent) {
		w.enqueue(ev, true)
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.targets[root]
	if !ok {
		// Unwatched while the scan was in flight; its diffs are simply the
		// last update for that root.
		return
	}
	t.scanning = false
	t.lastScan = time.Now()

	if err != nil {
		// Root removed externally or unreadable: mark unavailable, keep
		// trying on the regular interval.
		t.active = false
		t.lastErr = err
		log.Printf("Reconciliation scan of %s failed: %v", root, err)
		return
	}

	t.active = true
	t.lastErr = nil
	if err := w.store.SetLastScan(root, t.lastScan); err != nil {
		log.Printf("Failed to persist last scan time for %s: %v", root, err)
	}
	if res.Added+res.Updated+res.Removed > 0 {
		log.Printf("Reconciliation of %s: %d added, %d updated, %d removed, %d errors",
			root, res.Added, res.Updated, res.Removed, len(res.Errors))
	}
}
