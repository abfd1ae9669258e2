package gitignore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// specCacheSize bounds the number of per-directory compiled rule sets kept
// in memory for a long-running proxy.
const specCacheSize = 1000

// Filter answers "is this path ignored?" for one watched root.
//
// Rules are resolved lazily: the first query for a path under some directory
// collects every .gitignore from the root down to that directory, compiles
// them root-first (so nearer rules override via negation), and caches the
// compiled Matcher keyed by directory. A directory with no applicable
// patterns caches a nil marker so the tree is not re-scanned.
//
// Cache entries are never invalidated; edits to a .gitignore after the first
// lookup are picked up on restart only.
type Filter struct {
	root  string
	cache *lru.Cache[string, *Matcher]
}

// NewFilter creates a filter rooted at the given directory.
func NewFilter(root string) (*Filter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, *Matcher](specCacheSize)
	if err != nil {
		return nil, err
	}

	return &Filter{
		root:  absRoot,
		cache: cache,
	}, nil
}

// Root returns the absolute root directory of the filter.
func (f *Filter) Root() string {
	return f.root
}

// IsIgnored reports whether the path is excluded by gitignore rules.
// Paths outside the filter's root are never ignored.
func (f *Filter) IsIgnored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	// Rules are looked up from the containing directory: the parent for
	// files, the path itself for directories.
	dir := abs
	isDir := true
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
		isDir = false
	}

	matcher := f.matcherFor(dir)
	if matcher == nil {
		return false
	}

	return matcher.Match(rel, isDir)
}

// matcherFor returns the compiled rule set for a directory, building and
// caching it on first use. A nil return means no rules apply.
func (f *Filter) matcherFor(dir string) *Matcher {
	if m, ok := f.cache.Get(dir); ok {
		return m
	}

	matcher := New()
	for _, gi := range f.findGitignoreFiles(dir) {
		base, _ := filepath.Rel(f.root, filepath.Dir(gi))
		if base == "." {
			base = ""
		}
		if err := matcher.AddFromFile(gi, filepath.ToSlash(base)); err != nil {
			slog.Debug("failed to read gitignore file",
				slog.String("path", gi),
				slog.String("error", err.Error()))
		}
	}

	if matcher.Len() == 0 {
		matcher = nil // explicit "no rules" marker
	}

	f.cache.Add(dir, matcher)
	return matcher
}

// findGitignoreFiles collects .gitignore files walking up from dir to the
// root, returned in root-to-dir order so root rules compile first.
func (f *Filter) findGitignoreFiles(dir string) []string {
	var found []string

	current := dir
	for {
		rel, err := filepath.Rel(f.root, current)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			break
		}

		candidate := filepath.Join(current, ".gitignore")
		if _, err := os.Stat(candidate); err == nil {
			found = append(found, candidate)
		}

		if current == f.root {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	// reverse to root-first order
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}
