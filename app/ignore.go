package app

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// builtinPatterns are always merged ahead of user-supplied patterns, so a
// user negation can re-include anything they match. Version control, build
// output and dependency directories.
var builtinPatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"__pycache__/",
	".vs/",
	".vscode/",
	".idea/",
	"bin/",
	"obj/",
	"build/",
	"dist/",
	"out/",
	"target/",
}

// Matcher evaluates gitignore-style exclusion rules. Rules are evaluated in
// order with the last matching rule winning; a leading ! re-includes a path.
type Matcher struct {
	gi       *ignore.GitIgnore
	patterns []string
}

// NewMatcher builds a matcher from the built-in rules plus userPatterns.
// Malformed patterns are skipped by the underlying engine, never fatal.
func NewMatcher(userPatterns []string) *Matcher {
	lines := make([]string, 0, len(builtinPatterns)+len(userPatterns))
	lines = append(lines, builtinPatterns...)
	for _, p := range userPatterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		lines = append(lines, p)
	}

	return &Matcher{
		gi:       ignore.CompileIgnoreLines(lines...),
		patterns: lines,
	}
}

// LoadMatcher reads patterns from a single file at startup. A missing file is
// not an error: the built-in rules still apply. Changes to the file require a
// restart to take effect.
func LoadMatcher(path string) *Matcher {
	if path == "" {
		return NewMatcher(nil)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("Ignore file %s not loaded: %v", path, err)
		return NewMatcher(nil)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "syntax:") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Error reading ignore file %s: %v", path, err)
	}

	m := NewMatcher(patterns)
	log.Printf("Loaded %d ignore patterns from %s", len(m.patterns), path)
	return m
}

// IsIgnored reports whether the path, relative to its indexed root, matches
// the rule set. Directory paths are also tested with a trailing slash so
// directory-only patterns apply.
func (m *Matcher) IsIgnored(relPath string, isDir bool) bool {
	p := filepath.ToSlash(relPath)
	if p == "" || p == "." {
		return false
	}
	if m.gi.MatchesPath(p) {
		return true
	}
	if isDir && m.gi.MatchesPath(p+"/") {
		return true
	}
	return false
}

// Patterns returns the effective rule list, built-ins included.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}
