package formatkit

import (
	"path/filepath"
	"strings"
)

// ExtensionPolicy selects how a file name is split into stem and
// extension when the format itself does not pin an extension down.
type ExtensionPolicy int

const (
	// ExtNone treats the whole base name as the stem.
	ExtNone ExtensionPolicy = iota

	// ExtSingle splits at the last dot (".tar.gz" yields ext ".gz").
	ExtSingle

	// ExtMultiple splits at the first dot after the leading character, so
	// multi-part extensions like ".tar.gz" stay whole.
	ExtMultiple
)

// Decompose splits a path into directory, stem and extension according to
// the policy. The extension includes its leading dot; hidden files keep
// their leading dot in the stem.
func Decompose(path string, policy ExtensionPolicy) (dir, stem, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	switch policy {
	case ExtNone:
		return dir, base, ""
	case ExtSingle:
		if i := strings.LastIndex(base[1:], "."); i >= 0 {
			return dir, base[:i+1], base[i+1:]
		}
		return dir, base, ""
	default:
		if i := strings.Index(base[1:], "."); i >= 0 {
			return dir, base[:i+1], base[i+1:]
		}
		return dir, base, ""
	}
}

// SplitExtension splits a path on the format's declared extension when the
// path carries one, falling back to ExtMultiple so multi-part extensions
// survive round-trips through renaming.
func (f *Format) SplitExtension(path string) (stem, ext string) {
	base := filepath.Base(path)
	for _, known := range f.Extensions() {
		if strings.HasSuffix(base, known) && len(base) > len(known) {
			return base[:len(base)-len(known)], known
		}
	}
	_, stem, ext = Decompose(path, ExtMultiple)
	return stem, ext
}
