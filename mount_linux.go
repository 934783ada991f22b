package formatkit

import "golang.org/x/sys/unix"

// Statfs magic numbers for the filesystems the copy-mode logic cares
// about distinguishing.
const (
	cifsMagic  = 0xff534d42
	smb2Magic  = 0xfe534d42
	msdosMagic = 0x4d44
	exfatMagic = 0x2011bab0
)

// statfsType identifies the filesystem type of a path directly from the
// kernel when the mount table has no covering entry (private mount
// namespaces, chroots).
func statfsType(path string) (string, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", false
	}
	switch uint32(st.Type) {
	case cifsMagic, smb2Magic:
		return "cifs", true
	case msdosMagic:
		return "msdos", true
	case exfatMagic:
		return "exfat", true
	}
	return "unknown", true
}
