// Package walker enumerates candidate source files under a project root.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathNotFound reports a root that does not exist or cannot be read. It is
// the fatal error class: nothing is enumerated when the root itself is bad.
var ErrPathNotFound = errors.New("path not found or unreadable")

// Result holds one traversal's output. Files are absolute paths in
// lexicographic order on path segments, so repeated runs on an unchanged tree
// enumerate identically. Warnings record skipped unreadable subdirectories.
type Result struct {
	Files    []string
	Warnings []string
}

// skipDirs are directory names excluded by convention: build output,
// dependency caches, and version control.
var skipDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	"vendor":       true,
	".git":         true,
}

// Walk enumerates all .rs files under root. An unreadable subdirectory is
// recorded as a warning and skipped; an unreadable root fails the walk.
func Walk(root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrPathNotFound, root)
	}

	res := &Result{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return fmt.Errorf("%w: %s", ErrPathNotFound, root)
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipping %s: %v", path, walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".rs" {
			res.Files = append(res.Files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// WalkDir visits entries in lexical order per directory, which yields
	// lexicographic order on path segments overall.
	return res, nil
}
