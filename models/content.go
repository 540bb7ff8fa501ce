package models

// ContentFilter selects files for line-oriented content search under a base
// directory. Query matching is case-insensitive substring.
type ContentFilter struct {
	Path        string `json:"path"`
	Query       string `json:"query"`
	Recursive   bool   `json:"recursive"`
	FilePattern string `json:"filePattern,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// ContentMatch is one matching line.
type ContentMatch struct {
	Path       string `json:"path"`
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
}

// ContentSearchResult is a paginated content search response. Per-file read
// errors are collected, never fatal; binary and oversized files are skipped
// and counted.
type ContentSearchResult struct {
	Matches         []ContentMatch `json:"matches"`
	Total           int            `json:"total"`
	Offset          int            `json:"offset"`
	Limit           int            `json:"limit"`
	FilesScanned    int            `json:"filesScanned"`
	FilesSkipped    int            `json:"filesSkipped"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	Truncated       bool           `json:"truncated,omitempty"`
	Errors          []ScanError    `json:"errors,omitempty"`
}

// TreeNode is one entry of a recursive directory tree.
type TreeNode struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	IsDirectory bool        `json:"isDirectory"`
	SizeBytes   int64       `json:"sizeBytes,omitempty"`
	Children    []*TreeNode `json:"children,omitempty"`
	Err         string      `json:"error,omitempty"`
}

// EditOp is one exact-match text replacement; the first occurrence of
// OldText is replaced.
type EditOp struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
}
