package formatkit

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// propertyCache memoizes expensive per-fileset values keyed by name,
// invalidating whenever the modification-time fingerprint of the covered
// files changes.
type propertyCache struct {
	mu          sync.RWMutex
	fingerprint string
	values      map[string]any
}

func newPropertyCache() *propertyCache {
	return &propertyCache{values: make(map[string]any)}
}

func (c *propertyCache) invalidate() {
	c.mu.Lock()
	c.fingerprint = ""
	c.values = make(map[string]any)
	c.mu.Unlock()
}

// CachedValue computes a value at most once per on-disk state of the
// file-set. The fingerprint covers the path, size and mtime of every file
// in the set, so touching any of them recomputes on the next access. The
// stale check is repeated under the write lock in case another goroutine
// refreshed the cache in between.
func (fs *FileSet) CachedValue(name string, compute func() (any, error)) (any, error) {
	fp, err := fs.cacheFingerprint()
	if err != nil {
		return nil, err
	}
	fs.cache.mu.RLock()
	if fs.cache.fingerprint == fp {
		if v, ok := fs.cache.values[name]; ok {
			fs.cache.mu.RUnlock()
			return v, nil
		}
	}
	fs.cache.mu.RUnlock()

	fs.cache.mu.Lock()
	defer fs.cache.mu.Unlock()
	if fs.cache.fingerprint == fp {
		if v, ok := fs.cache.values[name]; ok {
			return v, nil
		}
	} else {
		fs.cache.fingerprint = fp
		fs.cache.values = make(map[string]any)
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	fs.cache.values[name] = v
	return v, nil
}

func (fs *FileSet) cacheFingerprint() (string, error) {
	if fs.mock {
		return "mock:" + strings.Join(fs.paths, "\x00"), nil
	}
	paths, err := fs.AllFilePaths()
	if err != nil {
		return "", err
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat %q: %w", p, err)
		}
		fmt.Fprintf(&b, "%s\x00%d\x00%d\x00", p, info.Size(), info.ModTime().UnixNano())
	}
	return b.String(), nil
}
