package formatkit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/application"
	"github.com/gobeaver/formatkit/generic"
	"github.com/gobeaver/formatkit/text"
)

func TestCopyToByteCopy(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.json", []byte(`{"a": 1}`))

	fs, err := application.Json.New(path)
	require.NoError(t, err)

	copied, err := fs.CopyTo(dest, formatkit.WithMode(formatkit.ModeCopy))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "doc.json")}, copied.Paths())

	data, err := os.ReadFile(copied.Paths()[0])
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a": 1}`), data)
}

func TestCopyToPrefersLeave(t *testing.T) {
	src := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("stay"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	left, err := fs.CopyTo(t.TempDir(), formatkit.WithMode(formatkit.ModeAny))
	require.NoError(t, err)
	require.Equal(t, fs.Paths(), left.Paths(), "leave returns the original paths untouched")
}

func TestCopyToSymlink(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("linked"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	restore := formatkit.SetMountTable([]formatkit.MountEntry{{Point: "/", FSType: "ext4"}})
	defer restore()

	linked, err := fs.CopyTo(dest, formatkit.WithMode(formatkit.ModeSymlink|formatkit.ModeCopy))
	require.NoError(t, err)
	info, err := os.Lstat(linked.Paths()[0])
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "symlink should be preferred over copy")
}

func TestCopyModeMaskedBySymlinkSupport(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("x"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	// Destination sits on a share without symlink support.
	restore := formatkit.SetMountTable([]formatkit.MountEntry{
		{Point: "/", FSType: "ext4"},
		{Point: dest, FSType: "cifs"},
	})
	defer restore()

	_, err = fs.CopyTo(dest, formatkit.WithMode(formatkit.ModeSymlink))
	require.True(t, formatkit.IsKind(err, formatkit.KindCopyMode), "got %v", err)

	// With a copy fallback permitted the transfer succeeds.
	copied, err := fs.CopyTo(dest, formatkit.WithMode(formatkit.ModeSymlink|formatkit.ModeCopy))
	require.NoError(t, err)
	info, err := os.Lstat(copied.Paths()[0])
	require.NoError(t, err)
	require.Zero(t, info.Mode()&os.ModeSymlink)
}

func TestCopyModeMaskedByMountBoundary(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("x"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	// Source and destination on different volumes: hardlinks impossible.
	restore := formatkit.SetMountTable([]formatkit.MountEntry{
		{Point: "/", FSType: "ext4"},
		{Point: dest, FSType: "xfs"},
	})
	defer restore()

	_, err = fs.CopyTo(dest, formatkit.WithMode(formatkit.ModeHardlink))
	require.True(t, formatkit.IsKind(err, formatkit.KindCopyMode), "got %v", err)
}

func TestCopyToDisambiguatesCollisions(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("new"))
	writeFile(t, dest, "doc.txt", []byte("existing"))

	fs, err := text.Plain.New(path)
	require.NoError(t, err)
	copied, err := fs.CopyTo(dest)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "doc-1.txt")}, copied.Paths())

	existing, err := os.ReadFile(filepath.Join(dest, "doc.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("existing"), existing)
}

func TestCopyToOverwrite(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("new"))
	writeFile(t, dest, "doc.txt", []byte("existing"))

	fs, err := text.Plain.New(path)
	require.NoError(t, err)
	copied, err := fs.CopyTo(dest, formatkit.WithOverwrite())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "doc.txt")}, copied.Paths())
	data, err := os.ReadFile(copied.Paths()[0])
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)
}

func TestCopyToNewStem(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("renamed"))

	fs, err := text.Plain.New(path)
	require.NoError(t, err)
	copied, err := fs.CopyTo(dest, formatkit.WithNewStem("renamed"))
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "renamed.txt")}, copied.Paths())
}

func TestMoveTo(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("moving"))

	fs, err := text.Plain.New(path)
	require.NoError(t, err)
	moved, err := fs.MoveTo(dest)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dest, "doc.txt")}, moved.Paths())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "source should be gone after a move")
}

func TestCopyLeaveRespectsCollation(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	a := writeFile(t, dirA, "doc.json", []byte(`{}`))
	b := writeFile(t, dirB, "doc.txt", []byte("x"))

	fs, err := generic.SetOf.Of(application.Json, text.Plain).New(a, b)
	require.NoError(t, err)

	// Scattered across two directories: leave cannot satisfy a siblings
	// layout, so the set is gathered into the destination instead.
	dest := t.TempDir()
	gathered, err := fs.CopyTo(dest,
		formatkit.WithMode(formatkit.ModeLeave|formatkit.ModeCopy),
		formatkit.WithCollation(formatkit.CollateSiblings))
	require.NoError(t, err)
	for _, p := range gathered.Paths() {
		require.Equal(t, dest, filepath.Dir(p))
	}

	// Without a collation constraint leave keeps the scattered originals.
	left, err := fs.CopyTo(t.TempDir(), formatkit.WithMode(formatkit.ModeLeave|formatkit.ModeCopy))
	require.NoError(t, err)
	require.Equal(t, fs.Paths(), left.Paths())
}

func TestCopyAdjacentUnifiesStems(t *testing.T) {
	src := t.TempDir()
	a := writeFile(t, src, "data.json", []byte(`{}`))
	b := writeFile(t, src, "readme.txt", []byte("x"))

	fs, err := generic.SetOf.Of(application.Json, text.Plain).New(a, b)
	require.NoError(t, err)
	dest := t.TempDir()
	copied, err := fs.CopyTo(dest, formatkit.WithCollation(formatkit.CollateAdjacent))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dest, "data.json"),
		filepath.Join(dest, "data.txt"),
	}, copied.Paths())
}

func TestCopyModeFromName(t *testing.T) {
	mode, err := formatkit.CopyModeFromName("link")
	require.NoError(t, err)
	require.Equal(t, formatkit.ModeLink, mode)
	_, err = formatkit.CopyModeFromName("teleport")
	require.True(t, formatkit.IsDefinition(err))
}

func TestCopyToDefaultModeFromConfig(t *testing.T) {
	t.Setenv("FORMATKIT_DEFAULT_COPY_MODE", "symlink")
	restore := formatkit.SetMountTable([]formatkit.MountEntry{{Point: "/", FSType: "ext4"}})
	defer restore()

	src := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("linked"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	copied, err := fs.CopyTo(t.TempDir())
	require.NoError(t, err)
	info, err := os.Lstat(copied.Paths()[0])
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeSymlink, "configured default mode should apply")
}

func TestCopyLeaveOnlyErrorNamesCollation(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	a := writeFile(t, dirA, "doc.json", []byte(`{}`))
	b := writeFile(t, dirB, "doc.txt", []byte("x"))

	fs, err := generic.SetOf.Of(application.Json, text.Plain).New(a, b)
	require.NoError(t, err)

	_, err = fs.CopyTo(t.TempDir(),
		formatkit.WithMode(formatkit.ModeLeave),
		formatkit.WithCollation(formatkit.CollateSiblings))
	require.True(t, formatkit.IsKind(err, formatkit.KindCopyMode), "got %v", err)
	var cerr *formatkit.Error
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, cerr.Candidates, "the existing paths do not satisfy the requested collation")
}

func TestMoveToMutatesInPlace(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := writeFile(t, src, "doc.txt", []byte("moving"))

	fs, err := text.Plain.New(path)
	require.NoError(t, err)
	moved, err := fs.MoveTo(dest)
	require.NoError(t, err)
	require.Same(t, fs, moved, "move repoints the existing instance")
	require.Equal(t, []string{filepath.Join(dest, "doc.txt")}, fs.Paths())

	// The repointed instance keeps working against the new location.
	sum, err := fs.Hash()
	require.NoError(t, err)
	require.NotEmpty(t, sum)
}
