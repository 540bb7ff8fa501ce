package models

import "time"

// ScanResult summarizes one scan of a directory subtree. Per-file errors are
// collected here; they never abort the scan itself.
type ScanResult struct {
	Root    string      `json:"root"`
	Added   int         `json:"added"`
	Updated int         `json:"updated"`
	Removed int         `json:"removed"`
	Skipped int         `json:"skipped"`
	Files   int         `json:"files"`
	Errors  []ScanError `json:"errors,omitempty"`
}

// FileCount is the number of live non-directory entries the scan saw under
// the root. Added/Updated/Skipped count directories too, Files does not.
func (r *ScanResult) FileCount() int {
	return r.Files
}

type ScanError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// TargetStatus reports per-watched-directory scheduling state.
type TargetStatus struct {
	Active       bool      `json:"active"`
	LastScanTime time.Time `json:"lastScanTime"`
	SecondsAgo   int       `json:"secondsAgo"`
	NextScanIn   int       `json:"nextScanIn"`
	LastError    string    `json:"lastError,omitempty"`
}

// WatcherStatus is the status() contract of the core.
type WatcherStatus struct {
	State               string                  `json:"state"`
	WatchedDirectories  []string                `json:"watchedDirectories"`
	PerDirectory        map[string]TargetStatus `json:"perDirectory"`
	ScanIntervalSeconds int                     `json:"scanIntervalSeconds"`
	PendingQueueDepth   int                     `json:"pendingQueueDepth"`
	WorkerQueueDepth    int                     `json:"workerQueueDepth"`
	BatchSize           int                     `json:"batchSize"`
}

// WatchResult is returned by watch/unwatch operations.
type WatchResult struct {
	Path         string `json:"path"`
	Changed      bool   `json:"changed"`
	WatchedCount int    `json:"watchedCount"`
}

// QueryResult is the outcome of a raw SELECT against the metadata store.
type QueryResult struct {
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	EffectiveQuery  string           `json:"effectiveQuery"`
	Truncated       bool             `json:"truncated"`
}

// SearchFilter is the typed filter for structured metadata search. It is
// always translated to a parameterized query, never to SQL fragments.
type SearchFilter struct {
	Query          string    `json:"query,omitempty"`
	Extensions     []string  `json:"extensions,omitempty"`
	IsDirectory    *bool     `json:"isDirectory,omitempty"`
	MinSize        int64     `json:"minSize,omitempty"`
	MaxSize        int64     `json:"maxSize,omitempty"`
	ModifiedAfter  time.Time `json:"modifiedAfter,omitempty"`
	ModifiedBefore time.Time `json:"modifiedBefore,omitempty"`
	PathPrefix     string    `json:"pathPrefix,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
}

// SearchResult is a paginated structured search response.
type SearchResult struct {
	Items     []FileRecord `json:"items"`
	Total     int          `json:"total"`
	Offset    int          `json:"offset"`
	Limit     int          `json:"limit"`
	Truncated bool         `json:"truncated,omitempty"`
}
