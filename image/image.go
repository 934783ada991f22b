// Package image declares the raster image formats.
package image

import (
	"bytes"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/generic"
)

// RasterImage is the category ancestor of every raster format, so at most
// one raster classifier may appear in an unordered classifier set.
var RasterImage = formatkit.New("image", "RasterImage",
	formatkit.WithParents(generic.File),
	formatkit.Abstract(),
)

var Png = formatkit.New("image", "Png",
	formatkit.WithParents(RasterImage),
	formatkit.WithCategory(RasterImage),
	formatkit.WithIANA("image/png"),
	formatkit.WithExtension(".png"),
	formatkit.WithMagic([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}),
)

var Jpeg = formatkit.New("image", "Jpeg",
	formatkit.WithParents(RasterImage),
	formatkit.WithCategory(RasterImage),
	formatkit.WithIANA("image/jpeg"),
	formatkit.WithExtension(".jpg", ".jpeg"),
	formatkit.WithMagic([]byte{0xFF, 0xD8, 0xFF}),
)

var Gif = formatkit.New("image", "Gif",
	formatkit.WithParents(RasterImage),
	formatkit.WithCategory(RasterImage),
	formatkit.WithIANA("image/gif"),
	formatkit.WithExtension(".gif"),
	// Covers both GIF87a and GIF89a.
	formatkit.WithMagic([]byte("GIF8")),
)

var Bmp = formatkit.New("image", "Bmp",
	formatkit.WithParents(RasterImage),
	formatkit.WithCategory(RasterImage),
	formatkit.WithIANA("image/bmp"),
	formatkit.WithExtension(".bmp"),
	formatkit.WithMagic([]byte("BM")),
)

// Tiff headers come in little and big endian variants, so it checks both
// instead of declaring a single magic number.
var Tiff = formatkit.New("image", "Tiff",
	formatkit.WithParents(RasterImage),
	formatkit.WithCategory(RasterImage),
	formatkit.WithIANA("image/tiff"),
	formatkit.WithExtension(".tiff", ".tif"),
	formatkit.WithCheck("magic_number", func(fs *formatkit.FileSet) error {
		contents, err := fs.Contents()
		if err != nil {
			return err
		}
		le := []byte{0x49, 0x49, 0x2A, 0x00}
		be := []byte{0x4D, 0x4D, 0x00, 0x2A}
		if len(contents) < 4 || (!bytes.HasPrefix(contents, le) && !bytes.HasPrefix(contents, be)) {
			return formatkit.NewError(formatkit.KindMismatch,
				"%s does not start with a TIFF header in either byte order", fs)
		}
		return nil
	}),
)
