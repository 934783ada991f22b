package generic

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"

	formatkit "github.com/gobeaver/formatkit"
)

// SelectContents returns the paths under a directory file-set whose
// path relative to the directory matches the glob pattern. Patterns use
// '/' as separator; "**" crosses directory boundaries ("**/*.json").
func SelectContents(dirSet *formatkit.FileSet, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, formatkit.NewError(formatkit.KindDefinition, "invalid content pattern %q: %v", pattern, err)
	}
	if !dirSet.Format().IsDir() {
		var out []string
		for _, p := range dirSet.Paths() {
			if g.Match(filepath.Base(p)) {
				out = append(out, p)
			}
		}
		return out, nil
	}
	root := dirSet.Paths()[0]
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if g.Match(filepath.ToSlash(rel)) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
