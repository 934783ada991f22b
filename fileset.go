package formatkit

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FileSet is a set of file-system paths validated against a format. The
// zero value is not usable; construct one with Format.New or
// Format.NewMock.
type FileSet struct {
	format *Format
	paths  []string
	mock   bool

	cache *propertyCache
}

// New validates the given paths against the format and wraps them into a
// FileSet. All paths must exist; validation evaluates the format's
// required properties and checks and trims the path set down to the paths
// those properties reference.
func (f *Format) New(paths ...string) (*FileSet, error) {
	if f.abstract && f.classifierSpec == nil {
		return nil, NewError(KindDefinition, "cannot instantiate abstract format %s", f)
	}
	if f.wildcard || len(f.WildcardClassifiers()) > 0 {
		return nil, NewError(KindDefinition,
			"cannot instantiate %s while it contains unresolved type variables", f)
	}
	fileset, err := f.newFileSet(paths, false)
	if err != nil {
		return nil, err
	}
	if err := fileset.Validate(); err != nil {
		return nil, err
	}
	fileset.TrimPaths()
	return fileset, nil
}

// NewMock wraps the given paths without touching the file system: neither
// path existence nor format constraints are checked. Mocks stand in for
// real file-sets in dry runs and tests of path-manipulating code.
func (f *Format) NewMock(paths ...string) *FileSet {
	fileset := &FileSet{format: f, mock: true, cache: newPropertyCache()}
	for _, p := range paths {
		fileset.paths = append(fileset.paths, filepath.Clean(p))
	}
	sort.Strings(fileset.paths)
	return fileset
}

// Matches reports whether the paths satisfy the format's constraints.
// Mismatches return (false, nil); missing paths and I/O failures return
// the error.
func (f *Format) Matches(paths ...string) (bool, error) {
	fileset, err := f.newFileSet(paths, false)
	if err != nil {
		return false, err
	}
	if err := fileset.Validate(); err != nil {
		if IsMismatch(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *Format) newFileSet(paths []string, mock bool) (*FileSet, error) {
	if len(paths) == 0 {
		return nil, NewError(KindNotFound, "no paths provided to %s", f)
	}
	fileset := &FileSet{format: f, mock: mock, cache: newPropertyCache()}
	var missing []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, abs)
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", abs, err)
		}
		fileset.paths = append(fileset.paths, abs)
	}
	if len(missing) > 0 {
		return nil, &Error{
			Kind:       KindNotFound,
			Message:    "paths provided to " + f.String() + " do not exist",
			Candidates: missing,
		}
	}
	sort.Strings(fileset.paths)
	return fileset, nil
}

// Format returns the format the file-set was validated against.
func (fs *FileSet) Format() *Format { return fs.format }

// Paths returns the file-set's paths in sorted order.
func (fs *FileSet) Paths() []string {
	out := make([]string, len(fs.paths))
	copy(out, fs.paths)
	return out
}

// IsMock reports whether the file-set was constructed without validation.
func (fs *FileSet) IsMock() bool { return fs.mock }

func (fs *FileSet) String() string {
	return fs.format.String() + "(" + strings.Join(fs.paths, ", ") + ")"
}

// Validate evaluates the format's required properties and checks against
// the paths. A constraint violation returns a mismatch error; evaluation
// failures propagate as-is.
func (fs *FileSet) Validate() error {
	f := fs.format
	if f.isDir {
		if len(fs.paths) != 1 {
			return mismatchError("%s represents a single directory, got %d paths", f, len(fs.paths))
		}
		info, err := os.Stat(fs.paths[0])
		if err != nil {
			return fmt.Errorf("stat %q: %w", fs.paths[0], err)
		}
		if !info.IsDir() {
			return mismatchError("%s requires a directory, %q is a file", f, fs.paths[0])
		}
	} else if f.ext != "" {
		if len(fs.SelectByExt(f.Extensions()...)) == 0 {
			return mismatchError("no path with extension %q (or %v) among %v provided to %s",
				f.ext, f.alternateExts, fs.paths, f)
		}
	}
	for _, p := range f.RequiredProperties() {
		if _, err := p.Get(fs); err != nil {
			return err
		}
	}
	for _, c := range f.Checks() {
		if err := c.Run(fs); err != nil {
			return err
		}
	}
	return nil
}

// SelectByExt returns the paths ending in any of the given extensions.
// With no arguments the format's own extensions are used.
func (fs *FileSet) SelectByExt(exts ...string) []string {
	if len(exts) == 0 {
		exts = fs.format.Extensions()
	}
	var out []string
	for _, p := range fs.paths {
		for _, ext := range exts {
			if strings.HasSuffix(p, ext) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Primary returns the path the format's magic number and content
// constraints apply to: the single path carrying the format's extension,
// or the sole path of the set.
func (fs *FileSet) Primary() (string, error) {
	if fs.format.ext != "" {
		selected := fs.SelectByExt()
		switch len(selected) {
		case 1:
			return selected[0], nil
		case 0:
			return "", mismatchError("no path with extension %q among %v", fs.format.ext, fs.paths)
		default:
			return "", mismatchError("multiple paths with extension %q among %v", fs.format.ext, fs.paths)
		}
	}
	if len(fs.paths) == 1 {
		return fs.paths[0], nil
	}
	return "", mismatchError("cannot select a primary path of %s from %v", fs.format, fs.paths)
}

// Open opens the primary path for reading.
func (fs *FileSet) Open() (*os.File, error) {
	p, err := fs.Primary()
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Contents reads the primary path in full.
func (fs *FileSet) Contents() ([]byte, error) {
	p, err := fs.Primary()
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (fs *FileSet) checkMagic(magic []byte, offset int) error {
	f, err := fs.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return fmt.Errorf("seeking to magic number of %s: %w", fs, err)
		}
	}
	read := make([]byte, len(magic))
	n, err := io.ReadFull(f, read)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return mismatchError("file is too short (%d bytes after offset %d) to hold the magic number of %s",
			n, offset, fs.format)
	}
	if err != nil {
		return fmt.Errorf("reading magic number of %s: %w", fs, err)
	}
	if !bytes.Equal(read, magic) {
		return mismatchError("magic number of %s is %q, expected %q for %s",
			fs, hex.EncodeToString(read), hex.EncodeToString(magic), fs.format)
	}
	return nil
}

// RequiredPaths returns the paths referenced by the format's required
// properties: every property value that is a path, a path slice, a
// FileSet or a FileSet slice contributes its paths. Formats without
// path-valued properties require all of their paths.
func (fs *FileSet) RequiredPaths() ([]string, error) {
	required := map[string]bool{}
	found := false
	for _, p := range fs.format.RequiredProperties() {
		v, err := p.Get(fs)
		if err != nil {
			return nil, err
		}
		for _, path := range pathsOf(v) {
			required[path] = true
			found = true
		}
	}
	if !found {
		return fs.Paths(), nil
	}
	out := make([]string, 0, len(required))
	for p := range required {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func pathsOf(v any) []string {
	switch t := v.(type) {
	case string:
		if filepath.IsAbs(t) {
			return []string{t}
		}
	case []string:
		var out []string
		for _, s := range t {
			if filepath.IsAbs(s) {
				out = append(out, s)
			}
		}
		return out
	case *FileSet:
		if t != nil {
			return t.Paths()
		}
	case []*FileSet:
		var out []string
		for _, f := range t {
			if f != nil {
				out = append(out, f.Paths()...)
			}
		}
		return out
	}
	return nil
}

// TrimPaths drops paths that no required property references, leaving the
// set minimal. Sets whose format declares no path-valued properties are
// left untouched.
func (fs *FileSet) TrimPaths() {
	required, err := fs.RequiredPaths()
	if err != nil {
		return
	}
	keep := map[string]bool{}
	for _, p := range required {
		keep[p] = true
	}
	var trimmed []string
	for _, p := range fs.paths {
		if keep[p] {
			trimmed = append(trimmed, p)
			continue
		}
		// A directory stays when a required path lives under it.
		prefix := p + string(filepath.Separator)
		for _, r := range required {
			if strings.HasPrefix(r, prefix) {
				trimmed = append(trimmed, p)
				break
			}
		}
	}
	if len(trimmed) > 0 {
		fs.paths = trimmed
		fs.cache.invalidate()
	}
}

// AllFilePaths expands the path set to every regular file it covers,
// walking directories recursively. The result is sorted.
func (fs *FileSet) AllFilePaths() ([]string, error) {
	var out []string
	for _, p := range fs.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d iofs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Hash digests the file-set's contents: every covered file's name
// relative to its top-level path and its bytes feed one xxhash. Equal
// trees hash equal regardless of their absolute location.
func (fs *FileSet) Hash() (string, error) {
	paths, err := fs.AllFilePaths()
	if err != nil {
		return "", err
	}
	digest := xxhash.New()
	for _, p := range paths {
		digest.WriteString(fs.relName(p))
		digest.Write([]byte{0})
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("hashing %q: %w", p, err)
		}
		_, err = io.Copy(digest, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %q: %w", p, err)
		}
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// HashFiles digests each covered file separately, keyed by its name
// relative to its top-level path.
func (fs *FileSet) HashFiles() (map[string]string, error) {
	paths, err := fs.AllFilePaths()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		rel := fs.relName(p)
		digest := xxhash.New()
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("hashing %q: %w", p, err)
		}
		_, err = io.Copy(digest, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("hashing %q: %w", p, err)
		}
		out[rel] = fmt.Sprintf("%016x", digest.Sum64())
	}
	return out, nil
}

// relName locates the top-level path a file belongs to and names it
// relative to that path: files inside a directory path keep their
// position within it, top-level files reduce to their base name.
func (fs *FileSet) relName(file string) string {
	for _, p := range fs.paths {
		if file == p {
			return filepath.Base(p)
		}
		prefix := p + string(filepath.Separator)
		if strings.HasPrefix(file, prefix) {
			rel, err := filepath.Rel(p, file)
			if err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(file)
}

// LastModified returns the newest modification time across every covered
// file.
func (fs *FileSet) LastModified() (time.Time, error) {
	paths, err := fs.AllFilePaths()
	if err != nil {
		return time.Time{}, err
	}
	var latest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("stat %q: %w", p, err)
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}

// MTimes returns every covered file with its modification time, keyed by
// path.
func (fs *FileSet) MTimes() (map[string]time.Time, error) {
	paths, err := fs.AllFilePaths()
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		out[p] = info.ModTime()
	}
	return out, nil
}
