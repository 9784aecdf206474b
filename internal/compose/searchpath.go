package compose

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SearchPath is an ordered set of absolute artifact paths.
// Extending it with a path it already holds is a no-op.
type SearchPath struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// NewSearchPath creates an empty search path
func NewSearchPath() *SearchPath {
	return &SearchPath{seen: map[string]struct{}{}}
}

// Extend appends paths not already present and returns how many were added
func (p *SearchPath) Extend(paths ...string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, ok := p.seen[path]; ok {
			continue
		}
		p.seen[path] = struct{}{}
		p.paths = append(p.paths, path)
		added++
	}

	return added
}

// Paths returns a copy of the paths in insertion order
func (p *SearchPath) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

// Contains reports whether path has been added
func (p *SearchPath) Contains(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[path]
	return ok
}

// Dirs returns the distinct parent directories of the paths, in order
func (p *SearchPath) Dirs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := map[string]struct{}{}
	var dirs []string
	for _, path := range p.paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	return dirs
}

// PATHValue returns current with the artifact directories prepended.
// Directories already listed in current are not repeated.
func (p *SearchPath) PATHValue(current string) string {
	existing := map[string]struct{}{}
	for _, dir := range filepath.SplitList(current) {
		existing[dir] = struct{}{}
	}

	var prefix []string
	for _, dir := range p.Dirs() {
		if _, ok := existing[dir]; !ok {
			prefix = append(prefix, dir)
		}
	}

	if len(prefix) == 0 {
		return current
	}
	if current == "" {
		return strings.Join(prefix, string(os.PathListSeparator))
	}
	return strings.Join(prefix, string(os.PathListSeparator)) + string(os.PathListSeparator) + current
}

// ExportPATH prepends the artifact directories to the process PATH
func (p *SearchPath) ExportPATH() error {
	return os.Setenv("PATH", p.PATHValue(os.Getenv("PATH")))
}
