package generic_test

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

func writeFile(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func TestDirectoryMatchesOnlyDirectories(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "f.txt", []byte("x"))

	ok, err := generic.Directory.Matches(dir)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = generic.Directory.Matches(file)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDirectoryOfRequiresContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.json", []byte(`{"a": 1}`))
	writeFile(t, dir, "notes.txt", []byte("hello"))

	tests := []struct {
		name   string
		format *formatkit.Format
		want   bool
	}{
		{"present type", generic.DirectoryOf(application.Json), true},
		{"both present", generic.DirectoryOf(application.Json, text.Plain), true},
		{"absent type", generic.DirectoryOf(application.Yaml), false},
		{"one absent", generic.DirectoryOf(application.Json, application.Yaml), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.format.Matches(dir)
			require.NoError(t, err)
			require.Equal(t, tt.want, ok)
		})
	}
}

func TestDirectoryOfOptionalContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.json", []byte(`{"a": 1}`))

	// Yaml is marked optional: its absence must not fail the match, its
	// presence is still welcome.
	withOptional := generic.DirectoryOf(application.Json, formatkit.Optional(application.Yaml))
	ok, err := withOptional.Matches(dir)
	require.NoError(t, err)
	require.True(t, ok)

	writeFile(t, dir, "extra.yaml", []byte("k: v\n"))
	ok, err = withOptional.Matches(dir)
	require.NoError(t, err)
	require.True(t, ok)

	// The required classifier still binds.
	empty := t.TempDir()
	ok, err = withOptional.Matches(empty)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetOfMatchesLoosePaths(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "doc.json", []byte(`{}`))
	csvPath := writeFile(t, dir, "table.csv", []byte("a,b\n1,2\n"))

	both := generic.SetOf.Of(application.Json, text.Csv)
	ok, err := both.Matches(jsonPath, csvPath)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = both.Matches(jsonPath)
	require.NoError(t, err)
	require.False(t, ok, "missing csv member")
}

func TestSelectContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", []byte(`{}`))
	writeFile(t, dir, "b.txt", []byte("x"))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "c.json", []byte(`{}`))

	dirSet, err := generic.Directory.New(dir)
	require.NoError(t, err)

	topJson, err := generic.SelectContents(dirSet, "*.json")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.json")}, topJson)

	allJson, err := generic.SelectContents(dirSet, "**.json")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "a.json"),
		filepath.Join(sub, "c.json"),
	}, allJson)

	_, err = generic.SelectContents(dirSet, "[")
	require.True(t, formatkit.IsDefinition(err))
}

func TestMembersMemoized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("x"))
	dirSet, err := generic.Directory.New(dir)
	require.NoError(t, err)

	first, err := generic.Members(dirSet)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Adding a file moves the modification fingerprint and refreshes the
	// cached listing.
	writeFile(t, dir, "b.txt", []byte("y"))
	second, err := generic.Members(dirSet)
	require.NoError(t, err)
	require.Len(t, second, 2)
}
