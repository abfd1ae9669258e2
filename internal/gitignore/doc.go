// Package gitignore provides gitignore pattern matching for the amp proxy.
//
// It has two layers:
//
//   - Matcher: a compiled set of gitignore patterns, implementing the syntax
//     documented at https://git-scm.com/docs/gitignore (wildcards, **,
//     anchoring, directory-only patterns, negation, nested bases).
//   - Filter: a per-watched-root view that lazily collects the .gitignore
//     files applying to a path, compiles them root-first, and caches the
//     compiled result per directory.
//
// Usage:
//
//	f, err := gitignore.NewFilter("/path/to/project")
//	if err != nil {
//	    return err
//	}
//	if f.IsIgnored("/path/to/project/build/out.tmp") {
//	    // skip
//	}
//
// Both layers are safe for concurrent use.
package gitignore
