package formatkit

import (
	"sync"
)

// Loader parses a file-set into an in-memory value.
type Loader func(fs *FileSet) (any, error)

// Saver writes an in-memory value to a path in the format's encoding.
type Saver func(value any, path string) error

// MetadataReader extracts format-specific metadata from a file-set.
type MetadataReader func(fs *FileSet) (map[string]any, error)

// SampleGenerator writes a small valid specimen of a format under destDir
// and returns its paths; used by tests and documentation examples.
type SampleGenerator func(destDir string) ([]string, error)

type extrasRegistry struct {
	mu       sync.RWMutex
	loaders  map[*Format]Loader
	savers   map[*Format]Saver
	metadata map[*Format]MetadataReader
	samples  map[*Format]SampleGenerator
}

var extras = &extrasRegistry{
	loaders:  make(map[*Format]Loader),
	savers:   make(map[*Format]Saver),
	metadata: make(map[*Format]MetadataReader),
	samples:  make(map[*Format]SampleGenerator),
}

// RegisterLoader attaches a Loader to a format. Subtypes without their own
// loader inherit the closest ancestor's.
func RegisterLoader(f *Format, l Loader) {
	extras.mu.Lock()
	extras.loaders[f] = l
	extras.mu.Unlock()
}

// RegisterSaver attaches a Saver to a format.
func RegisterSaver(f *Format, s Saver) {
	extras.mu.Lock()
	extras.savers[f] = s
	extras.mu.Unlock()
}

// RegisterMetadataReader attaches a MetadataReader to a format.
func RegisterMetadataReader(f *Format, m MetadataReader) {
	extras.mu.Lock()
	extras.metadata[f] = m
	extras.mu.Unlock()
}

// RegisterSampleGenerator attaches a SampleGenerator to a format.
func RegisterSampleGenerator(f *Format, g SampleGenerator) {
	extras.mu.Lock()
	extras.samples[f] = g
	extras.mu.Unlock()
}

// resolveExtra walks the format and its ancestors, most derived first,
// and returns the first format with a registration, as decided by found.
func resolveExtra(f *Format, found func(*Format) bool) bool {
	queue := []*Format{f}
	visited := map[*Format]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if found(cur) {
			return true
		}
		if cur.unclassified != nil {
			queue = append(queue, cur.unclassified)
		}
		queue = append(queue, cur.parents...)
	}
	return false
}

// Load parses the file-set with the loader registered for its format or
// the closest ancestor format.
func (fs *FileSet) Load() (any, error) {
	var loader Loader
	extras.mu.RLock()
	resolveExtra(fs.format, func(f *Format) bool {
		loader = extras.loaders[f]
		return loader != nil
	})
	extras.mu.RUnlock()
	if loader == nil {
		return nil, NewError(KindExtras,
			"no loader registered for %s or any of its ancestors; import the package providing %s extras",
			fs.format, fs.format.Namespace())
	}
	return loader(fs)
}

// Save writes a value to the given path in this format's encoding and
// returns the validated file-set.
func (f *Format) Save(value any, path string) (*FileSet, error) {
	var saver Saver
	extras.mu.RLock()
	resolveExtra(f, func(g *Format) bool {
		saver = extras.savers[g]
		return saver != nil
	})
	extras.mu.RUnlock()
	if saver == nil {
		return nil, NewError(KindExtras,
			"no saver registered for %s or any of its ancestors; import the package providing %s extras",
			f, f.Namespace())
	}
	if err := saver(value, path); err != nil {
		return nil, err
	}
	return f.New(path)
}

// Metadata extracts the file-set's format-specific metadata, memoized per
// on-disk state.
func (fs *FileSet) Metadata() (map[string]any, error) {
	var reader MetadataReader
	extras.mu.RLock()
	resolveExtra(fs.format, func(f *Format) bool {
		reader = extras.metadata[f]
		return reader != nil
	})
	extras.mu.RUnlock()
	if reader == nil {
		return nil, NewError(KindExtras,
			"no metadata reader registered for %s or any of its ancestors", fs.format)
	}
	v, err := fs.CachedValue("metadata", func() (any, error) {
		return reader(fs)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Sample writes a small valid specimen of the format under destDir.
func (f *Format) Sample(destDir string) (*FileSet, error) {
	var gen SampleGenerator
	extras.mu.RLock()
	resolveExtra(f, func(g *Format) bool {
		gen = extras.samples[g]
		return gen != nil
	})
	extras.mu.RUnlock()
	if gen == nil {
		return nil, NewError(KindExtras,
			"no sample generator registered for %s or any of its ancestors", f)
	}
	paths, err := gen(destDir)
	if err != nil {
		return nil, err
	}
	return f.New(paths...)
}
