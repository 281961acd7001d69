package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Target is one file to audit. Display is the slash path relative to the
// root when the file lives under it, and the given path otherwise.
type Target struct {
	Path    string `json:"path"`
	Display string `json:"display"`
	Depth   int    `json:"depth"`
}

// Targets expands the given paths into files, keeping argument order and
// sorting the files found inside each directory. Paths that do not exist
// are kept so the failure is reported per file.
func Targets(paths []string, opts Options) ([]Target, error) {
	if _, err := filepath.Match(opts.Include, ""); err != nil {
		return nil, fmt.Errorf("invalid include pattern %q: %w", opts.Include, err)
	}

	var out []Target
	seen := make(map[string]bool)
	add := func(p string) {
		t := NewTarget(opts.Root, p)
		if seen[t.Path] {
			return
		}
		seen[t.Path] = true
		out = append(out, t)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			add(p)
			continue
		}
		var files []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if ok, _ := filepath.Match(opts.Include, d.Name()); ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(files)
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

func NewTarget(root, path string) Target {
	t := Target{Path: path, Display: filepath.ToSlash(path)}
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return t
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return t
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return t
	}
	t.Display = filepath.ToSlash(rel)
	t.Depth = strings.Count(t.Display, "/")
	return t
}
