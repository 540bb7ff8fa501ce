package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/JubinSaniei/filesystem/models"
)

const (
	// contentSearchMaxFiles caps how many files one search may open.
	contentSearchMaxFiles = 10000
	// contentSearchSizeLimit skips files above this size entirely.
	contentSearchSizeLimit = 100 * 1024 * 1024
	// contentMatchesPerFile caps matches collected from a single file.
	contentMatchesPerFile = 1000
)

// binaryExtensions are skipped without opening: no line-oriented content.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".bin": true,
	".zip": true, ".tar": true, ".gz": true, ".7z": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".mp3": true, ".mp4": true, ".pdf": true, ".db": true,
}

// SearchContent runs a line-oriented, case-insensitive substring search over
// the files under filter.Path. The walk and the reads run as one job on the
// worker pool so request handling never blocks on file I/O. On timeout the
// accumulated matches come back flagged as truncated.
func (s *Service) SearchContent(ctx context.Context, filter models.ContentFilter) (*models.ContentSearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var result *models.ContentSearchResult
	err := s.pool.Run(func() error {
		var jobErr error
		result, jobErr = s.searchContent(ctx, filter)
		return jobErr
	})
	return result, err
}

func (s *Service) searchContent(ctx context.Context, filter models.ContentFilter) (*models.ContentSearchResult, error) {
	base := filepath.Clean(filter.Path)
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, ErrNotFound)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", base)
	}

	pattern := filter.FilePattern
	if pattern == "" {
		pattern = "*"
	}
	queryLower := strings.ToLower(filter.Query)
	start := time.Now()

	result := &models.ContentSearchResult{}
	var matches []models.ContentMatch

	files := s.collectSearchFiles(base, pattern, filter.Recursive, result)
	for _, path := range files {
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}

		skipped, err := searchFile(path, queryLower, &matches)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, models.ScanError{Path: path, Err: err.Error()})
		case skipped:
			result.FilesSkipped++
		default:
			result.FilesScanned++
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > s.store.maxLimit {
		limit = s.store.maxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	result.Total = len(matches)
	result.Offset = offset
	result.Limit = limit
	if offset < len(matches) {
		end := offset + limit
		if end > len(matches) {
			end = len(matches)
		}
		result.Matches = matches[offset:end]
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// collectSearchFiles gathers candidate file paths, pruning ignored
// directories and capping the candidate set.
func (s *Service) collectSearchFiles(base, pattern string, recursive bool, result *models.ContentSearchResult) []string {
	var files []string

	if !recursive {
		entries, err := os.ReadDir(base)
		if err != nil {
			result.Errors = append(result.Errors, models.ScanError{Path: base, Err: err.Error()})
			return nil
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if ok, _ := filepath.Match(pattern, entry.Name()); ok {
				files = append(files, filepath.Join(base, entry.Name()))
			}
		}
		return files
	}

	filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, models.ScanError{Path: path, Err: err.Error()})
			return nil
		}
		rel, _ := filepath.Rel(base, path)
		if d.IsDir() {
			if s.ignore.IsIgnored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.ignore.IsIgnored(rel, false) {
			return nil
		}
		if len(files) >= contentSearchMaxFiles {
			result.Truncated = true
			return filepath.SkipAll
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// searchFile scans one file line by line. Binary and oversized files are
// skipped, not errors.
func searchFile(path, queryLower string, matches *[]models.ContentMatch) (skipped bool, err error) {
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return true, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.Size() > contentSearchSizeLimit {
		return true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	if head, _ := reader.Peek(1024); looksBinary(head) {
		return true, nil
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fileMatches := 0
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if !strings.Contains(strings.ToLower(text), queryLower) {
			continue
		}
		*matches = append(*matches, models.ContentMatch{
			Path:       path,
			LineNumber: line,
			Line:       strings.TrimSpace(text),
		})
		fileMatches++
		if fileMatches >= contentMatchesPerFile {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// looksBinary reports whether a content sample is mostly control bytes.
func looksBinary(sample []byte) bool {
	control := 0
	for _, b := range sample {
		if b == 0 || (b < 32 && b != '\r' && b != '\n' && b != '\t') {
			control++
		}
	}
	return control > len(sample)/10
}

// Tree builds a recursive view of a directory from live filesystem state,
// directories first within each level. Hidden entries are excluded unless
// requested; unreadable directories carry the error on their node.
func (s *Service) Tree(path string, maxDepth int, includeHidden bool) (*models.TreeNode, error) {
	path = filepath.Clean(path)

	info, err := s.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	if maxDepth <= 0 {
		maxDepth = 5
	}

	root := treeNode(path, info)
	s.fillTree(root, maxDepth, includeHidden)
	return root, nil
}

func (s *Service) fillTree(node *models.TreeNode, depth int, includeHidden bool) {
	if depth <= 0 {
		return
	}

	entries, err := os.ReadDir(node.Path)
	if err != nil {
		node.Err = err.Error()
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if !includeHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		child := treeNode(filepath.Join(node.Path, entry.Name()), info)
		if info.IsDir() {
			s.fillTree(child, depth-1, includeHidden)
		}
		node.Children = append(node.Children, child)
	}
}

func treeNode(path string, info os.FileInfo) *models.TreeNode {
	node := &models.TreeNode{
		Name:        filepath.Base(path),
		Path:        path,
		IsDirectory: info.IsDir(),
	}
	if !info.IsDir() {
		node.SizeBytes = info.Size()
	}
	return node
}

// EditFile applies exact-match text replacements to a file; each edit
// replaces the first occurrence of its OldText in the current content. With
// dryRun the would-be unified diff is returned and nothing is written;
// otherwise the file, the index and the cache update synchronously through
// the regular write path.
func (s *Service) EditFile(path string, edits []models.EditOp, dryRun bool) (string, error) {
	path = filepath.Clean(path)

	data, err := s.ReadFile(path)
	if err != nil {
		return "", err
	}
	original := string(data)

	modified := original
	for _, edit := range edits {
		if !strings.Contains(modified, edit.OldText) {
			return "", fmt.Errorf("edit %q: %w", truncateForError(edit.OldText), ErrEditMismatch)
		}
		modified = strings.Replace(modified, edit.OldText, edit.NewText, 1)
	}

	if dryRun {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(original),
			B:        difflib.SplitLines(modified),
			FromFile: "a/" + path,
			ToFile:   "b/" + path,
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("failed to build diff: %w", err)
		}
		return diff, nil
	}

	if err := s.WriteFile(path, []byte(modified), models.WriteOverwrite); err != nil {
		return "", err
	}
	return "", nil
}

func truncateForError(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
