package fsio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/stretchr/testify/require"
)

func TestPathsDeterministic(t *testing.T) {
	p := NewPaths("/data")
	require.Equal(t, filepath.FromSlash("/data/12/mods/42"), p.ModInstallDir(12, 42))
	require.Equal(t, filepath.FromSlash("/data/12/metadata/7.json"), p.MetadataPath(12, 7))
}

func TestFileWriteSomeThenSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "f.bin")

	exec := async.NewExecutor()
	f, err := Create(exec, path)
	require.NoError(t, err)

	_, err = async.Await(context.Background(), exec, f.WriteSome([]byte("hello")))
	require.NoError(t, err)

	size, err := async.Await(context.Background(), exec, f.Size())
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	require.NoError(t, f.Close())
}

func TestFileCancelAll(t *testing.T) {
	dir := t.TempDir()
	exec := async.NewExecutor()
	f, err := Create(exec, filepath.Join(dir, "f.bin"))
	require.NoError(t, err)
	f.CancelAll()

	_, err = async.Await(context.Background(), exec, f.WriteSome([]byte("x")))
	require.Error(t, err)
}

func TestBlockingIOWriteSeekReadAtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")

	exec := async.NewExecutor()
	f, err := Create(exec, path)
	require.NoError(t, err)
	bio := f.IO()

	n, err := bio.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	pos, err := bio.Seek(0, 1) // io.SeekCurrent
	require.NoError(t, err)
	require.Equal(t, int64(11), pos)

	buf := make([]byte, 5)
	n, err = bio.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, f.Close())
}

func TestDeleteFolderIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone")
	require.NoError(t, DeleteFolder(target))
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.True(t, Exists(target))
	require.NoError(t, DeleteFolder(target))
	require.False(t, Exists(target))
}
