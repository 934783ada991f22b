// Package application declares the structured-document and archive
// formats, their loaders and the converters between them (json <-> yaml,
// archive pack/unpack).
package application

import (
	"encoding/json"
	"encoding/xml"

	"gopkg.in/yaml.v3"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/generic"
)

var Json = formatkit.New("application", "Json",
	formatkit.WithParents(generic.File),
	formatkit.WithIANA("application/json"),
	formatkit.WithExtension(".json"),
	formatkit.WithCheck("well_formed", func(fs *formatkit.FileSet) error {
		contents, err := fs.Contents()
		if err != nil {
			return err
		}
		if !json.Valid(contents) {
			return formatkit.NewError(formatkit.KindMismatch, "%s is not well-formed JSON", fs)
		}
		return nil
	}),
)

var Yaml = formatkit.New("application", "Yaml",
	formatkit.WithParents(generic.File),
	formatkit.WithIANA("application/yaml"),
	formatkit.WithExtension(".yaml", ".yml"),
	formatkit.WithCheck("well_formed", func(fs *formatkit.FileSet) error {
		contents, err := fs.Contents()
		if err != nil {
			return err
		}
		var v any
		if err := yaml.Unmarshal(contents, &v); err != nil {
			return formatkit.NewError(formatkit.KindMismatch, "%s is not well-formed YAML: %v", fs, err)
		}
		return nil
	}),
)

var Xml = formatkit.New("application", "Xml",
	formatkit.WithParents(generic.File),
	formatkit.WithIANA("application/xml"),
	formatkit.WithExtension(".xml"),
	formatkit.WithCheck("well_formed", func(fs *formatkit.FileSet) error {
		contents, err := fs.Contents()
		if err != nil {
			return err
		}
		var v any
		if err := xml.Unmarshal(contents, &v); err != nil {
			return formatkit.NewError(formatkit.KindMismatch, "%s is not well-formed XML: %v", fs, err)
		}
		return nil
	}),
)

// Archive is the category ancestor of the archive formats. Archives
// classify generically over the archived type: Zip.Of(Json) identifies a
// zip file holding JSON.
var Archive = formatkit.New("application", "Archive",
	formatkit.WithParents(generic.File),
	formatkit.Abstract(),
)

var archiveSpec = formatkit.ClassifierSpec{Generic: true}

var Zip = formatkit.New("application", "Zip",
	formatkit.WithParents(Archive),
	formatkit.WithCategory(Archive),
	formatkit.WithIANA("application/zip"),
	formatkit.WithExtension(".zip"),
	formatkit.WithMagic([]byte{0x50, 0x4B, 0x03, 0x04}),
	formatkit.Classifiable(archiveSpec),
)

var Gzip = formatkit.New("application", "Gzip",
	formatkit.WithParents(Archive),
	formatkit.WithCategory(Archive),
	formatkit.WithIANA("application/gzip"),
	formatkit.WithExtension(".gz"),
	formatkit.WithMagic([]byte{0x1F, 0x8B}),
	formatkit.Classifiable(archiveSpec),
)

// Tar's magic sits in the ustar header block rather than at the start of
// the file.
var Tar = formatkit.New("application", "Tar",
	formatkit.WithParents(Archive),
	formatkit.WithCategory(Archive),
	formatkit.WithExtension(".tar"),
	formatkit.WithMagicAt(257, []byte("ustar")),
	formatkit.Classifiable(archiveSpec),
)

var TarGzip = formatkit.New("application", "TarGzip",
	formatkit.WithParents(Archive),
	formatkit.WithCategory(Archive),
	formatkit.WithExtension(".tar.gz", ".tgz"),
	formatkit.WithMagic([]byte{0x1F, 0x8B}),
	formatkit.Classifiable(archiveSpec),
)
