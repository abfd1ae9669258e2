package syncer

import (
	"path/filepath"
	"strings"

	"github.com/agentmemory/amp/internal/config"
)

// Pair is one resolved propagation: read Source, overwrite Target.
type Pair struct {
	Source string
	Target string
}

// Matcher resolves a modified file against the configured mappings.
type Matcher struct {
	dir       string
	mappings  []config.Mapping
	recursive bool
}

// NewMatcher creates a matcher for one watched directory's configuration.
func NewMatcher(cfg *config.WatchConfig) *Matcher {
	return &Matcher{
		dir:       cfg.Directory,
		mappings:  cfg.Mappings,
		recursive: cfg.Recursive,
	}
}

// Targets returns the (source, target) pairs to propagate for a modified
// file, in mapping declaration order. A file matching no mapping yields
// nil, which is not an error.
//
// An exact match on the configured source syncs to the directory-level
// target. In recursive mode a file with the same name anywhere under the
// directory syncs to a target colocated with it, not forced to the root.
func (m *Matcher) Targets(modified string) []Pair {
	var pairs []Pair

	for _, mp := range m.mappings {
		sourcePath := filepath.Join(m.dir, mp.SourceName)

		switch {
		case modified == sourcePath:
			pairs = append(pairs, Pair{
				Source: modified,
				Target: filepath.Join(m.dir, mp.TargetRel),
			})

		case m.recursive &&
			filepath.Base(modified) == filepath.Base(sourcePath) &&
			isUnder(m.dir, modified):
			pairs = append(pairs, Pair{
				Source: modified,
				Target: filepath.Join(filepath.Dir(modified), mp.TargetRel),
			})
		}
	}

	return pairs
}

// isUnder reports whether path is located under dir (at any depth).
func isUnder(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
