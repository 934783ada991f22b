package formatkit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gobeaver/formatkit/text"
)

func TestWatchSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("before"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	token, err := fs.Watch(ctx)
	require.NoError(t, err)
	require.False(t, token.HasChanged())

	fired := make(chan struct{}, 1)
	unregister := token.RegisterChangeCallback(func() {
		fired <- struct{}{}
	})
	defer unregister()

	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("change token did not fire after a write")
	}
	require.True(t, token.HasChanged())
}

func TestWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("x"))
	writeFile(t, dir, "other.txt", []byte("y"))
	fs, err := text.Plain.New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	token, err := fs.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dir+"/other.txt", []byte("changed"), 0o644))
	time.Sleep(200 * time.Millisecond)
	require.False(t, token.HasChanged(), "events on sibling paths are not ours")
}
