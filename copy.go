package formatkit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CopyMode is a bitmask of the ways a file-set may be materialized at a
// destination, from cheapest to most expensive: leaving the files where
// they are, symlinking, hardlinking or copying bytes.
type CopyMode uint8

const (
	ModeLeave CopyMode = 1 << iota
	ModeSymlink
	ModeHardlink
	ModeCopy

	// ModeAny permits every mechanism; the cheapest feasible one wins.
	ModeAny = ModeLeave | ModeSymlink | ModeHardlink | ModeCopy

	// ModeLink permits either link flavour with a byte-copy fallback.
	ModeLink = ModeSymlink | ModeHardlink | ModeCopy
)

func (m CopyMode) String() string {
	var parts []string
	if m&ModeLeave != 0 {
		parts = append(parts, "leave")
	}
	if m&ModeSymlink != 0 {
		parts = append(parts, "symlink")
	}
	if m&ModeHardlink != 0 {
		parts = append(parts, "hardlink")
	}
	if m&ModeCopy != 0 {
		parts = append(parts, "copy")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// constrain masks out mechanisms the source/destination filesystem pair
// cannot support.
func (m CopyMode) constrain(symlinksOK, sameMount bool) CopyMode {
	if !symlinksOK {
		m &^= ModeSymlink
	}
	if !sameMount {
		m &^= ModeHardlink
	}
	return m
}

// Collation constrains how the materialized paths relate to each other.
type Collation int

const (
	// CollateAny places no constraint on the destination layout.
	CollateAny Collation = iota

	// CollateSiblings requires all paths to share one parent directory.
	CollateSiblings

	// CollateAdjacent requires siblings that additionally share a stem,
	// differing only in extension.
	CollateAdjacent
)

// CopyOption configures CopyTo and MoveTo.
type CopyOption func(*copyConfig)

type copyConfig struct {
	mode      CopyMode
	newStem   string
	collation Collation
	makeDirs  bool
	overwrite bool
}

// WithMode restricts the permitted copy mechanisms. The default comes
// from DefaultCopyMode.
func WithMode(mode CopyMode) CopyOption {
	return func(c *copyConfig) { c.mode = mode }
}

// WithNewStem renames every path to the given stem, keeping extensions.
func WithNewStem(stem string) CopyOption {
	return func(c *copyConfig) { c.newStem = stem }
}

// WithCollation constrains the destination layout. Copying always lands
// everything under one directory, so collation mainly decides whether the
// leave mode may keep scattered source paths in place and whether stems
// are unified.
func WithCollation(c Collation) CopyOption {
	return func(cfg *copyConfig) { cfg.collation = c }
}

// WithMakeDirs creates the destination directory (and parents) if needed.
func WithMakeDirs() CopyOption {
	return func(c *copyConfig) { c.makeDirs = true }
}

// WithOverwrite replaces existing destination paths instead of
// disambiguating them with a counter suffix.
func WithOverwrite() CopyOption {
	return func(c *copyConfig) { c.overwrite = true }
}

// CopyTo materializes the file-set under destDir using the cheapest
// permitted and feasible mechanism, preferring leave over symlink over
// hardlink over byte copy. It returns a new FileSet of the same format
// over the destination paths. A mode mask that leaves no feasible
// mechanism yields a copy-mode error naming the constraint that ruled
// each one out.
func (fs *FileSet) CopyTo(destDir string, opts ...CopyOption) (*FileSet, error) {
	cfg := copyConfig{mode: DefaultCopyMode()}
	for _, opt := range opts {
		opt(&cfg)
	}
	destDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}
	if cfg.makeDirs {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %q: %w", destDir, err)
		}
	}

	if cfg.mode&ModeLeave != 0 && cfg.newStem == "" && fs.collated(cfg.collation) {
		return fs, nil
	}
	if cfg.collation == CollateAdjacent && cfg.newStem == "" {
		cfg.newStem, _ = fs.format.SplitExtension(fs.paths[0])
	}

	symlinksOK, err := SymlinksSupported(destDir)
	if err != nil {
		return nil, err
	}
	sameMount := true
	for _, p := range fs.paths {
		same, err := OnSameMount(p, destDir)
		if err != nil {
			return nil, err
		}
		if !same {
			sameMount = false
			break
		}
	}
	feasible := (cfg.mode &^ ModeLeave).constrain(symlinksOK, sameMount)
	if feasible == 0 {
		msg := fmt.Sprintf("no permitted copy mode of %s is feasible for %s -> %q", cfg.mode, fs, destDir)
		var reasons []string
		if cfg.mode&ModeLeave != 0 {
			if cfg.newStem != "" {
				reasons = append(reasons, "leaving in place cannot apply a new stem")
			} else {
				reasons = append(reasons, "the existing paths do not satisfy the requested collation")
			}
		}
		if cfg.mode&ModeSymlink != 0 && !symlinksOK {
			reasons = append(reasons, "destination filesystem does not support symlinks")
		}
		if cfg.mode&ModeHardlink != 0 && !sameMount {
			reasons = append(reasons, "source and destination are on different mounts")
		}
		return nil, &Error{Kind: KindCopyMode, Message: msg, Candidates: reasons}
	}
	var mechanism CopyMode
	switch {
	case feasible&ModeSymlink != 0:
		mechanism = ModeSymlink
	case feasible&ModeHardlink != 0:
		mechanism = ModeHardlink
	default:
		mechanism = ModeCopy
	}

	var newPaths []string
	for _, src := range fs.paths {
		dest, err := fs.destPath(src, destDir, cfg)
		if err != nil {
			return nil, err
		}
		if err := transferPath(src, dest, mechanism); err != nil {
			return nil, err
		}
		newPaths = append(newPaths, dest)
	}
	sort.Strings(newPaths)
	out := &FileSet{format: fs.format, paths: newPaths, mock: fs.mock, cache: newPropertyCache()}
	return out, nil
}

// MoveTo relocates the file-set under destDir, renaming within a mount
// and falling back to copy-then-remove across mounts. Unlike CopyTo it
// mutates the receiver: the path set is repointed at the destination and
// cached properties are dropped, since the source paths are gone
// afterwards. The receiver is also returned for chaining.
func (fs *FileSet) MoveTo(destDir string, opts ...CopyOption) (*FileSet, error) {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	destDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}
	if cfg.makeDirs {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %q: %w", destDir, err)
		}
	}
	if cfg.collation == CollateAdjacent && cfg.newStem == "" {
		cfg.newStem, _ = fs.format.SplitExtension(fs.paths[0])
	}
	var newPaths []string
	for _, src := range fs.paths {
		dest, err := fs.destPath(src, destDir, cfg)
		if err != nil {
			return nil, err
		}
		if err := os.Rename(src, dest); err != nil {
			if err := transferPath(src, dest, ModeCopy); err != nil {
				return nil, err
			}
			if err := os.RemoveAll(src); err != nil {
				return nil, fmt.Errorf("removing %q after move: %w", src, err)
			}
		}
		newPaths = append(newPaths, dest)
	}
	sort.Strings(newPaths)
	fs.paths = newPaths
	fs.cache = newPropertyCache()
	return fs, nil
}

// collated reports whether the existing paths already satisfy the
// requested layout, which lets the leave mode keep them in place.
func (fs *FileSet) collated(c Collation) bool {
	if c == CollateAny || len(fs.paths) < 2 {
		return true
	}
	dir := filepath.Dir(fs.paths[0])
	stem, _ := fs.format.SplitExtension(fs.paths[0])
	for _, p := range fs.paths[1:] {
		if filepath.Dir(p) != dir {
			return false
		}
		if c == CollateAdjacent {
			s, _ := fs.format.SplitExtension(p)
			if s != stem {
				return false
			}
		}
	}
	return true
}

// destPath computes where a source path lands, applying the stem rename
// and disambiguating collisions with a "-N" counter before the extension.
func (fs *FileSet) destPath(src, destDir string, cfg copyConfig) (string, error) {
	stem, ext := fs.format.SplitExtension(src)
	if cfg.newStem != "" {
		stem = cfg.newStem
	}
	dest := filepath.Join(destDir, stem+ext)
	if cfg.overwrite {
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("overwriting %q: %w", dest, err)
		}
		return dest, nil
	}
	for counter := 1; ; counter++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			return dest, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %q: %w", dest, err)
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s-%d%s", stem, counter, ext))
	}
}

func transferPath(src, dest string, mechanism CopyMode) error {
	switch mechanism {
	case ModeSymlink:
		return os.Symlink(src, dest)
	case ModeHardlink:
		return linkPath(src, dest)
	default:
		return copyPath(src, dest)
	}
}

func linkPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %q: %w", src, err)
	}
	if !info.IsDir() {
		return os.Link(src, dest)
	}
	// Directories cannot be hardlinked, so link their files into a
	// recreated tree.
	if err := os.MkdirAll(dest, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := linkPath(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %q: %w", src, err)
	}
	if info.IsDir() {
		if err := os.MkdirAll(dest, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyPath(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %q: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %q: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %q -> %q: %w", src, dest, err)
	}
	return out.Close()
}
