// Package text declares the plain-text document formats.
package text

import (
	"os"
	"unicode/utf8"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/generic"
)

var Plain = formatkit.New("text", "Plain",
	formatkit.WithParents(generic.File),
	formatkit.WithIANA("text/plain"),
	formatkit.WithExtension(".txt"),
)

var Csv = formatkit.New("text", "Csv",
	formatkit.WithParents(Plain),
	formatkit.WithIANA("text/csv"),
	formatkit.WithExtension(".csv"),
)

var Tsv = formatkit.New("text", "Tsv",
	formatkit.WithParents(Plain),
	formatkit.WithIANA("text/tab-separated-values"),
	formatkit.WithExtension(".tsv"),
)

var Html = formatkit.New("text", "Html",
	formatkit.WithParents(Plain),
	formatkit.WithIANA("text/html"),
	formatkit.WithExtension(".html", ".htm"),
)

var Markdown = formatkit.New("text", "Markdown",
	formatkit.WithParents(Plain),
	formatkit.WithIANA("text/markdown"),
	formatkit.WithExtension(".md", ".markdown"),
)

func init() {
	formatkit.RegisterLoader(Plain, func(fs *formatkit.FileSet) (any, error) {
		contents, err := fs.Contents()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(contents) {
			return nil, formatkit.NewError(formatkit.KindMismatch,
				"%s is not valid UTF-8 text", fs)
		}
		return string(contents), nil
	})
	formatkit.RegisterSaver(Plain, func(value any, path string) error {
		s, ok := value.(string)
		if !ok {
			return formatkit.NewError(formatkit.KindExtras, "text saver expects a string, got %T", value)
		}
		return os.WriteFile(path, []byte(s), 0o644)
	})
	formatkit.RegisterSampleGenerator(Plain, func(destDir string) ([]string, error) {
		path := destDir + string(os.PathSeparator) + "sample.txt"
		if err := os.WriteFile(path, []byte("lorem ipsum dolor sit amet\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	})
	formatkit.RegisterSampleGenerator(Csv, func(destDir string) ([]string, error) {
		path := destDir + string(os.PathSeparator) + "sample.csv"
		if err := os.WriteFile(path, []byte("id,name\n1,alpha\n2,beta\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	})
}
