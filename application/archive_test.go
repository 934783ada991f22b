package application_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/application"
	"github.com/gobeaver/formatkit/generic"
	"github.com/gobeaver/formatkit/text"
)

func writeFile(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func TestGzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", []byte("compress me"))
	src, err := text.Plain.New(path)
	require.NoError(t, err)

	gzSet, err := formatkit.Convert(context.Background(), src, application.Gzip.Of(text.Plain),
		formatkit.WithArgs(map[string]any{"dest_dir": t.TempDir()}))
	require.NoError(t, err)
	require.Equal(t, ".gz", filepath.Ext(gzSet.Paths()[0]))

	back, err := formatkit.Convert(context.Background(), gzSet, text.Plain,
		formatkit.WithArgs(map[string]any{"dest_dir": t.TempDir()}))
	require.NoError(t, err)

	data, err := back.Contents()
	require.NoError(t, err)
	require.Equal(t, []byte("compress me"), data)
}

func TestTarGzipRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", []byte("alpha"))
	sub := filepath.Join(srcDir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "b.txt", []byte("beta"))

	dirSet, err := generic.Directory.New(srcDir)
	require.NoError(t, err)
	origHash, err := dirSet.Hash()
	require.NoError(t, err)

	archived, err := formatkit.Convert(context.Background(), dirSet, application.TarGzip.Of(generic.Directory),
		formatkit.WithArgs(map[string]any{"dest_dir": t.TempDir()}))
	require.NoError(t, err)
	ok, err := application.TarGzip.Matches(archived.Paths()...)
	require.NoError(t, err)
	require.True(t, ok)

	back, err := formatkit.Convert(context.Background(), archived, generic.Directory,
		formatkit.WithArgs(map[string]any{"dest_dir": t.TempDir()}))
	require.NoError(t, err)

	backHash, err := back.Hash()
	require.NoError(t, err)
	require.Equal(t, origHash, backHash)
}

func TestZipSlipEntryRejected(t *testing.T) {
	// Hand-build an archive whose entry climbs out of the extraction
	// directory.
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../evil.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("escape"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	zipSet, err := application.Zip.Of(generic.Directory).New(zipPath)
	require.NoError(t, err)

	extractDir := t.TempDir()
	_, err = formatkit.Convert(context.Background(), zipSet, generic.Directory,
		formatkit.WithArgs(map[string]any{"dest_dir": extractDir}))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(extractDir), "evil.txt"))
	require.True(t, os.IsNotExist(statErr), "entry must not escape the extraction directory")
}

func TestWellFormednessChecks(t *testing.T) {
	dir := t.TempDir()
	badJson := writeFile(t, dir, "bad.json", []byte("{not json"))
	badXml := writeFile(t, dir, "bad.xml", []byte("<open>"))

	ok, err := application.Json.Matches(badJson)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = application.Xml.Matches(badXml)
	require.NoError(t, err)
	require.False(t, ok)
}
