package models

import "time"

// FileRecord is one row of the file_metadata table. Path is the unique key,
// always absolute and normalized. Extension and SizeBytes are empty/zero for
// directories and stored as NULL.
type FileRecord struct {
	ID             int64     `db:"id"`
	Path           string    `db:"path"`
	ParentDir      string    `db:"parent_dir"`
	Name           string    `db:"name"`
	Extension      string    `db:"extension"`
	IsDirectory    bool      `db:"is_directory"`
	SizeBytes      int64     `db:"size_bytes"`
	CreatedTime    time.Time `db:"created_time"`
	ModifiedTime   time.Time `db:"modified_time"`
	LastIndexed    time.Time `db:"last_indexed"`
	ContentSummary string    `db:"content_summary"`
	MimeType       string    `db:"mime_type"`
}
