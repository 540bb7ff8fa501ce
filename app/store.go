package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JubinSaniei/filesystem/models"

	_ "modernc.org/sqlite"
)

// Store is the persistent metadata index. All mutations are serialized
// through writeMu (single-writer discipline); reads go straight to the WAL
// database and proceed concurrently.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex

	defaultLimit int
	maxLimit     int
}

func OpenStore(dbPath string, qcfg models.QueryConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal_mode = WAL: %w", err)
	}
	db.Exec(`PRAGMA busy_timeout = 5000`)
	db.Exec(`PRAGMA foreign_keys = ON`)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	defaultLimit := qcfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 1000
	}
	maxLimit := qcfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 10000
	}

	return &Store{db: db, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only callers (status counts).
func (s *Store) DB() *sql.DB {
	return s.db
}

const upsertSQL = `
	INSERT INTO file_metadata(path, parent_dir, name, extension, is_directory,
		size_bytes, created_time, modified_time, last_indexed, content_summary, mime_type)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		parent_dir = excluded.parent_dir,
		name = excluded.name,
		extension = excluded.extension,
		is_directory = excluded.is_directory,
		size_bytes = excluded.size_bytes,
		created_time = excluded.created_time,
		modified_time = excluded.modified_time,
		last_indexed = excluded.last_indexed,
		mime_type = excluded.mime_type`

// Upsert inserts or replaces a record keyed by path. Idempotent.
func (s *Store) Upsert(rec models.FileRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(upsertSQL, upsertArgs(rec)...)
	return err
}

// UpsertBatch applies a batch of records in one transaction.
func (s *Store) UpsertBatch(ctx context.Context, recs []models.FileRecord) error {
	if len(recs) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, upsertArgs(rec)...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	committed = true
	return nil
}

func upsertArgs(rec models.FileRecord) []any {
	var ext, summary any
	var size any
	if rec.IsDirectory {
		ext, size = nil, nil
	} else {
		ext, size = strings.ToLower(rec.Extension), rec.SizeBytes
	}
	if rec.ContentSummary != "" {
		summary = rec.ContentSummary
	}
	return []any{
		rec.Path, rec.ParentDir, rec.Name, ext, boolToInt(rec.IsDirectory),
		size, rec.CreatedTime.Unix(), rec.ModifiedTime.Unix(), rec.LastIndexed.Unix(),
		summary, nullable(rec.MimeType),
	}
}

// Delete removes the record for path. If recursive, all descendant records
// are removed as well. Returns the number of rows removed.
func (s *Store) Delete(path string, recursive bool) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var res sql.Result
	var err error
	if recursive {
		res, err = s.db.Exec(
			`DELETE FROM file_metadata WHERE path = ? OR path LIKE ?`,
			path, path+"/%")
	} else {
		res, err = s.db.Exec(`DELETE FROM file_metadata WHERE path = ?`, path)
	}
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteBatch removes a set of exact paths in one transaction.
func (s *Store) DeleteBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM file_metadata WHERE path = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete batch: %w", err)
	}
	committed = true
	return nil
}

const recordColumns = `id, path, parent_dir, name, extension, is_directory,
	size_bytes, created_time, modified_time, last_indexed, content_summary, mime_type`

// GetByPath returns the record for an exact path, or ErrNotFound.
func (s *Store) GetByPath(path string) (*models.FileRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+recordColumns+` FROM file_metadata WHERE path = ? LIMIT 1`, path)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Stamp is the change-detection key for one indexed entry.
type Stamp struct {
	SizeBytes    int64
	ModifiedUnix int64
	IsDirectory  bool
}

// StampsUnder returns path -> stamp for the root and everything below it.
// The scanner diffs live filesystem state against this map.
func (s *Store) StampsUnder(root string) (map[string]Stamp, error) {
	rows, err := s.db.Query(`
		SELECT path, COALESCE(size_bytes, 0), COALESCE(modified_time, 0), is_directory
		FROM file_metadata
		WHERE path = ? OR path LIKE ?`, root, root+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stamps := make(map[string]Stamp)
	for rows.Next() {
		var path string
		var st Stamp
		var isDir int
		if err := rows.Scan(&path, &st.SizeBytes, &st.ModifiedUnix, &isDir); err != nil {
			return nil, err
		}
		st.IsDirectory = isDir != 0
		stamps[path] = st
	}
	return stamps, rows.Err()
}

// ListDir returns the direct children of a directory path, directories
// first, then by name.
func (s *Store) ListDir(path string) ([]models.FileRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+recordColumns+` FROM file_metadata
		WHERE parent_dir = ?
		ORDER BY is_directory DESC, name`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FileRecord
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Count returns the number of indexed entries.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM file_metadata`).Scan(&n)
	return n, err
}

func (s *Store) SetLastScan(root string, t time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO metadata(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		"last_scan:"+root, t.Format(time.RFC3339))
	return err
}

func (s *Store) LastScan(root string) (time.Time, error) {
	var ts string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, "last_scan:"+root).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, ts)
}

var (
	bannedKeywordRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|pragma|attach|detach|vacuum|reindex)\b`)
	limitClauseRe   = regexp.MustCompile(`(?i)\blimit\s+(\d+)`)
)

// RawQuery executes a caller-supplied statement against the index. Only a
// single read-only SELECT is allowed; everything else fails closed with
// QuerySecurityError before touching the database. A LIMIT is injected when
// absent and clamped to the configured maximum otherwise.
func (s *Store) RawQuery(ctx context.Context, query string, params []any, limit int) (*models.QueryResult, error) {
	effective, err := s.prepareRawQuery(query, limit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, effective, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{EffectiveQuery: effective}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			// Timeout returns what accumulated so far, flagged, not an error.
			result.Truncated = true
			result.RowCount = len(result.Rows)
			result.ExecutionTimeMs = time.Since(start).Milliseconds()
			return result, nil
		default:
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			result.Truncated = true
		} else {
			return nil, err
		}
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// prepareRawQuery validates the statement and returns the effective query
// with its LIMIT normalized.
func (s *Store) prepareRawQuery(query string, limit int) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")

	if q == "" {
		return "", &QuerySecurityError{Reason: "empty query"}
	}
	if strings.Contains(q, ";") {
		return "", &QuerySecurityError{Reason: "multiple statements are not allowed"}
	}
	if !strings.HasPrefix(strings.ToLower(q), "select") {
		return "", &QuerySecurityError{Reason: "only SELECT statements are allowed"}
	}
	if m := bannedKeywordRe.FindString(q); m != "" {
		return "", &QuerySecurityError{Reason: "disallowed keyword: " + strings.ToLower(m)}
	}

	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	if m := limitClauseRe.FindStringSubmatch(q); m != nil {
		inline, err := strconv.Atoi(m[1])
		if err == nil && inline > s.maxLimit {
			q = limitClauseRe.ReplaceAllString(q, fmt.Sprintf("LIMIT %d", s.maxLimit))
		}
	} else {
		q = fmt.Sprintf("%s LIMIT %d", q, limit)
	}

	return q, nil
}

// StructuredSearch translates a typed filter into a parameterized query.
// Filter values are never interpolated into SQL text.
func (s *Store) StructuredSearch(ctx context.Context, f models.SearchFilter) (*models.SearchResult, error) {
	var conds []string
	var args []any

	if f.Query != "" {
		conds = append(conds, `(name LIKE ? OR content_summary LIKE ?)`)
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}
	if len(f.Extensions) > 0 {
		placeholders := make([]string, len(f.Extensions))
		for i, ext := range f.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			placeholders[i] = "?"
			args = append(args, ext)
		}
		conds = append(conds, `extension IN (`+strings.Join(placeholders, ", ")+`)`)
	}
	if f.IsDirectory != nil {
		conds = append(conds, `is_directory = ?`)
		args = append(args, boolToInt(*f.IsDirectory))
	}
	if f.MinSize > 0 {
		conds = append(conds, `size_bytes >= ?`)
		args = append(args, f.MinSize)
	}
	if f.MaxSize > 0 {
		conds = append(conds, `size_bytes <= ?`)
		args = append(args, f.MaxSize)
	}
	if !f.ModifiedAfter.IsZero() {
		conds = append(conds, `modified_time >= ?`)
		args = append(args, f.ModifiedAfter.Unix())
	}
	if !f.ModifiedBefore.IsZero() {
		conds = append(conds, `modified_time <= ?`)
		args = append(args, f.ModifiedBefore.Unix())
	}
	if f.PathPrefix != "" {
		conds = append(conds, `(path = ? OR path LIKE ?)`)
		args = append(args, f.PathPrefix, f.PathPrefix+"/%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_metadata`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	queryArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM file_metadata`+where+` ORDER BY path LIMIT ? OFFSET ?`,
		queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &models.SearchResult{Total: total, Offset: offset, Limit: limit}
	for rows.Next() {
		select {
		case <-ctx.Done():
			result.Truncated = true
			return result, nil
		default:
		}

		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *rec)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			result.Truncated = true
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.FileRecord, error) {
	var rec models.FileRecord
	var ext, summary, mime sql.NullString
	var size sql.NullInt64
	var created, modified, indexed sql.NullInt64
	var isDir int

	err := row.Scan(&rec.ID, &rec.Path, &rec.ParentDir, &rec.Name, &ext, &isDir,
		&size, &created, &modified, &indexed, &summary, &mime)
	if err != nil {
		return nil, err
	}

	rec.Extension = ext.String
	rec.IsDirectory = isDir != 0
	rec.SizeBytes = size.Int64
	rec.ContentSummary = summary.String
	rec.MimeType = mime.String
	if created.Valid {
		rec.CreatedTime = time.Unix(created.Int64, 0)
	}
	if modified.Valid {
		rec.ModifiedTime = time.Unix(modified.Int64, 0)
	}
	if indexed.Valid {
		rec.LastIndexed = time.Unix(indexed.Int64, 0)
	}
	return &rec, nil
}

func scanRecordRows(rows *sql.Rows) (*models.FileRecord, error) {
	return scanRecord(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
