package formatkit_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/application"
	"github.com/gobeaver/formatkit/image"
	"github.com/gobeaver/formatkit/text"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	value := map[string]any{"name": "alpha", "count": float64(3)}
	saved, err := application.Json.Save(value, filepath.Join(t.TempDir(), "out.json"))
	require.NoError(t, err)

	loaded, err := saved.Load()
	require.NoError(t, err)
	require.Equal(t, value, loaded)
}

func TestLoaderInheritedFromAncestor(t *testing.T) {
	// Markdown has no loader of its own and falls back to text.Plain's.
	dir := t.TempDir()
	path := writeFile(t, dir, "readme.md", []byte("# Title\n"))
	fs, err := text.Markdown.New(path)
	require.NoError(t, err)

	v, err := fs.Load()
	require.NoError(t, err)
	require.Equal(t, "# Title\n", v)
}

func TestLoadWithoutRegistration(t *testing.T) {
	dir := t.TempDir()
	block := make([]byte, 262)
	copy(block[257:], "ustar")
	path := writeFile(t, dir, "arch.tar", block)
	fs, err := application.Tar.New(path)
	require.NoError(t, err)

	_, err = fs.Load()
	require.True(t, formatkit.IsKind(err, formatkit.KindExtras), "got %v", err)
}

func TestSampleGenerators(t *testing.T) {
	formats := []*formatkit.Format{application.Json, application.Yaml, text.Plain, text.Csv, image.Png}
	for _, f := range formats {
		t.Run(f.Name(), func(t *testing.T) {
			fs, err := f.Sample(t.TempDir())
			require.NoError(t, err)
			ok, err := f.Matches(fs.Paths()...)
			require.NoError(t, err)
			require.True(t, ok, "generated sample must match its own format")
		})
	}
}

func TestPngMetadata(t *testing.T) {
	fs, err := image.Png.Sample(t.TempDir())
	require.NoError(t, err)

	meta, err := fs.Metadata()
	require.NoError(t, err)
	require.Equal(t, 1, meta["width"])
	require.Equal(t, 1, meta["height"])
	require.Equal(t, 8, meta["bit_depth"])

	// Memoized: a second read returns the same map for unchanged files.
	again, err := fs.Metadata()
	require.NoError(t, err)
	require.Equal(t, meta, again)
}
