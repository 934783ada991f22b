// Package generic provides the format-agnostic file and directory types
// that concrete formats derive from, including the classifiable
// Directory and SetOf containers (DirectoryOf(Json), SetOf(Png, Csv)).
package generic

import (
	"os"

	formatkit "github.com/gobeaver/formatkit"
)

// FsObject matches any existing file-system path. It carries no
// constraints, so discovery skips it unless asked not to.
var FsObject = formatkit.New("generic", "FsObject")

// File matches a set containing exactly one regular file.
var File = formatkit.New("generic", "File",
	formatkit.WithParents(FsObject),
	formatkit.WithStructuralProperty("file", func(fs *formatkit.FileSet) (any, error) {
		// Formats with a declared extension select their file by it;
		// sidecar paths are trimmed rather than rejected.
		candidates := fs.Paths()
		if fs.Format().Ext() != "" {
			candidates = fs.SelectByExt()
		}
		var files []string
		for _, p := range candidates {
			if fs.IsMock() {
				files = append(files, p)
				continue
			}
			info, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				files = append(files, p)
			}
		}
		if len(files) != 1 {
			return nil, formatkit.NewError(formatkit.KindMismatch,
				"expected exactly one file among %v, found %d", candidates, len(files))
		}
		return files[0], nil
	}),
)

// Directory matches a single directory. Classifying it binds required
// content types: DirectoryOf(Json) matches only directories holding at
// least one JSON file.
var Directory = formatkit.New("generic", "Directory",
	formatkit.WithParents(FsObject),
	formatkit.AsDirectory(),
	formatkit.Classifiable(formatkit.ClassifierSpec{
		Multiple:     true,
		Generic:      true,
		BindContents: true,
	}),
	formatkit.WithCheck("required_contents", requiredContents),
)

// SetOf matches a loose set of paths where every bound content type is
// represented. Unlike Directory the members need not share a parent.
var SetOf = formatkit.New("generic", "SetOf",
	formatkit.WithParents(FsObject),
	formatkit.Classifiable(formatkit.ClassifierSpec{
		Multiple:     true,
		Generic:      true,
		BindContents: true,
	}),
	formatkit.WithCheck("required_contents", requiredContents),
)

// DirectoryOf is shorthand for Directory.Of.
func DirectoryOf(contents ...*formatkit.Format) *formatkit.Format {
	return Directory.Of(contents...)
}

// requiredContents checks that every non-Optional content type matches at
// least one member path. Matching failures of individual members count as
// absence; any other error aborts the check.
func requiredContents(fs *formatkit.FileSet) error {
	types := fs.Format().ContentTypes()
	if len(types) == 0 {
		return nil
	}
	members, err := Members(fs)
	if err != nil {
		return err
	}
	for _, ct := range types {
		required := !ct.IsOptional()
		target := ct.Unwrap()
		found := false
		for _, m := range members {
			ok, err := target.Matches(m)
			if err != nil {
				return err
			}
			if ok {
				found = true
				break
			}
		}
		if required && !found {
			return formatkit.NewError(formatkit.KindMismatch,
				"no member of %s matches required content type %s", fs, target)
		}
	}
	return nil
}

// Members lists the paths the content check runs against: the entries of
// the directory for directory formats, the paths themselves otherwise.
// The listing is memoized against the set's modification times.
func Members(fs *formatkit.FileSet) ([]string, error) {
	if !fs.Format().IsDir() {
		return fs.Paths(), nil
	}
	v, err := fs.CachedValue("members", func() (any, error) {
		return listDir(fs.Paths()[0])
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, dir+string(os.PathSeparator)+e.Name())
	}
	return out, nil
}
