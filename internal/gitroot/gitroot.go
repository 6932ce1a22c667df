// internal/gitroot/gitroot.go
package gitroot

import (
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// Resolver locates the enclosing repository root for filesystem paths
// and shortens them for diff headers. Lookups are cached per directory;
// the cache is safe to share across trackers.
type Resolver struct {
	cache *lru.Cache[string, string]
}

func NewResolver() *Resolver {
	cache, err := lru.New[string, string](defaultCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Resolver{cache: cache}
}

// Find walks parent directories looking for a .git entry (directory or
// worktree file) and returns the repository root, or "" when the path
// is not inside a repository.
func (r *Resolver) Find(path string) string {
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}

	visited := make([]string, 0, 8)
	for {
		if root, ok := r.cache.Get(dir); ok {
			r.remember(visited, root)
			return root
		}

		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			r.remember(append(visited, dir), dir)
			return dir
		}

		visited = append(visited, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (r *Resolver) remember(dirs []string, root string) {
	for _, d := range dirs {
		r.cache.Add(d, root)
	}
}

// Display returns path relative to its repository root when one is
// discoverable, otherwise the literal path. Separators are normalized
// to forward slashes either way.
func (r *Resolver) Display(path string) string {
	if root := r.Find(path); root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
