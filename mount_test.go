package formatkit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	formatkit "github.com/gobeaver/formatkit"
)

func TestMountPointLongestPrefix(t *testing.T) {
	restore := formatkit.SetMountTable([]formatkit.MountEntry{
		{Point: "/", FSType: "ext4"},
		{Point: "/mnt", FSType: "xfs"},
		{Point: "/mnt/share", FSType: "cifs"},
	})
	defer restore()

	tests := []struct {
		path string
		want string
	}{
		{"/home/u/file.txt", "/"},
		{"/mnt/data/file.txt", "/mnt"},
		{"/mnt/share/file.txt", "/mnt/share"},
		{"/mnt/sharedir/file.txt", "/mnt"},
	}
	for _, tt := range tests {
		entry, err := formatkit.MountPoint(tt.path)
		require.NoError(t, err)
		require.Equal(t, tt.want, entry.Point, "mount of %s", tt.path)
	}
}

func TestOnSameMount(t *testing.T) {
	restore := formatkit.SetMountTable([]formatkit.MountEntry{
		{Point: "/", FSType: "ext4"},
		{Point: "/mnt", FSType: "xfs"},
	})
	defer restore()

	same, err := formatkit.OnSameMount("/home/a", "/home/b")
	require.NoError(t, err)
	require.True(t, same)

	same, err = formatkit.OnSameMount("/home/a", "/mnt/b")
	require.NoError(t, err)
	require.False(t, same)
}

func TestSymlinksSupported(t *testing.T) {
	restore := formatkit.SetMountTable([]formatkit.MountEntry{
		{Point: "/", FSType: "ext4"},
		{Point: "/mnt/share", FSType: "cifs"},
		{Point: "/mnt/usb", FSType: "vfat"},
	})
	defer restore()

	ok, err := formatkit.SymlinksSupported("/home/u")
	require.NoError(t, err)
	require.True(t, ok)

	for _, p := range []string{"/mnt/share/f", "/mnt/usb/f"} {
		ok, err = formatkit.SymlinksSupported(p)
		require.NoError(t, err)
		require.False(t, ok, "%s", p)
	}
}
