package formatkit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// MountEntry is one mounted filesystem: its mount point and filesystem
// type.
type MountEntry struct {
	Point  string
	FSType string
}

var (
	mountMu    sync.RWMutex
	mountTable []MountEntry
	mountRead  bool
)

// symlink support is what the copy-mode fallbacks care about; FAT variants
// and CIFS shares lack it.
var noSymlinkFS = map[string]bool{
	"cifs":  true,
	"vfat":  true,
	"msdos": true,
	"fat":   true,
	"exfat": true,
}

var mountLineRe = regexp.MustCompile(`^\S+ on (/\S*) (?:type )?\(?(\w+)`)

// SetMountTable replaces the mount table used by mount-point resolution
// and returns a function restoring the previous state. Tests use it to
// simulate filesystem layouts (CIFS shares, separate volumes) without
// mounting anything.
func SetMountTable(entries []MountEntry) (restore func()) {
	mountMu.Lock()
	prevTable, prevRead := mountTable, mountRead
	mountTable = append([]MountEntry(nil), entries...)
	mountRead = true
	mountMu.Unlock()
	return func() {
		mountMu.Lock()
		mountTable, mountRead = prevTable, prevRead
		mountMu.Unlock()
	}
}

func getMountTable() ([]MountEntry, error) {
	mountMu.RLock()
	if mountRead {
		defer mountMu.RUnlock()
		return mountTable, nil
	}
	mountMu.RUnlock()

	mountMu.Lock()
	defer mountMu.Unlock()
	if mountRead {
		return mountTable, nil
	}
	entries, err := readMountTable()
	if err != nil {
		return nil, err
	}
	mountTable = entries
	mountRead = true
	return mountTable, nil
}

func readMountTable() ([]MountEntry, error) {
	if data, err := os.ReadFile("/proc/mounts"); err == nil {
		var entries []MountEntry
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			entries = append(entries, MountEntry{Point: fields[1], FSType: fields[2]})
		}
		return entries, nil
	}
	out, err := exec.Command("mount").Output()
	if err != nil {
		return nil, fmt.Errorf("listing mounts: %w", err)
	}
	var entries []MountEntry
	for _, line := range strings.Split(string(out), "\n") {
		m := mountLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, MountEntry{Point: m[1], FSType: m[2]})
	}
	return entries, nil
}

// MountPoint resolves the mount entry a path lives on by longest-prefix
// match over the mount table.
func MountPoint(path string) (MountEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return MountEntry{}, err
	}
	table, err := getMountTable()
	if err != nil {
		return MountEntry{}, err
	}
	best := MountEntry{}
	bestLen := -1
	for _, e := range table {
		if !pathHasPrefix(abs, e.Point) {
			continue
		}
		if len(e.Point) > bestLen {
			best = e
			bestLen = len(e.Point)
		}
	}
	if bestLen < 0 {
		if fstype, ok := statfsType(abs); ok {
			return MountEntry{Point: "/", FSType: fstype}, nil
		}
		return MountEntry{}, fmt.Errorf("no mount entry covers %q", abs)
	}
	return best, nil
}

func pathHasPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// OnSameMount reports whether two paths live on the same mounted
// filesystem.
func OnSameMount(a, b string) (bool, error) {
	ma, err := MountPoint(a)
	if err != nil {
		return false, err
	}
	mb, err := MountPoint(b)
	if err != nil {
		return false, err
	}
	return ma.Point == mb.Point, nil
}

// SymlinksSupported reports whether the filesystem holding the path
// supports symbolic links.
func SymlinksSupported(path string) (bool, error) {
	m, err := MountPoint(path)
	if err != nil {
		return false, err
	}
	return !noSymlinkFS[strings.ToLower(m.FSType)], nil
}
