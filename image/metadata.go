package image

import (
	"encoding/binary"

	formatkit "github.com/gobeaver/formatkit"
)

func init() {
	formatkit.RegisterMetadataReader(Png, pngMetadata)
	formatkit.RegisterSampleGenerator(Png, pngSample)
}

// pngMetadata reads the IHDR chunk, which always directly follows the
// 8-byte signature.
func pngMetadata(fs *formatkit.FileSet) (map[string]any, error) {
	contents, err := fs.Contents()
	if err != nil {
		return nil, err
	}
	if len(contents) < 29 || string(contents[12:16]) != "IHDR" {
		return nil, formatkit.NewError(formatkit.KindMismatch, "%s has no IHDR chunk", fs)
	}
	return map[string]any{
		"width":      int(binary.BigEndian.Uint32(contents[16:20])),
		"height":     int(binary.BigEndian.Uint32(contents[20:24])),
		"bit_depth":  int(contents[24]),
		"color_type": int(contents[25]),
	}, nil
}
