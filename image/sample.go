package image

import (
	"os"
	"path/filepath"
)

// minimalPng is a 1x1 RGBA header: signature plus IHDR. Enough to satisfy
// the magic number and metadata checks without a real encoder.
var minimalPng = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // Signature
	0x00, 0x00, 0x00, 0x0D, // IHDR length
	0x49, 0x48, 0x44, 0x52, // "IHDR"
	0x00, 0x00, 0x00, 0x01, // Width: 1
	0x00, 0x00, 0x00, 0x01, // Height: 1
	0x08, 0x06, 0x00, 0x00, 0x00, // Bit depth, color type, compression, filter, interlace
	0x1F, 0x15, 0xC4, 0x89, // CRC
}

func pngSample(destDir string) ([]string, error) {
	path := filepath.Join(destDir, "sample.png")
	if err := os.WriteFile(path, minimalPng, 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}
