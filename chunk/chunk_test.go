package chunk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dannyzb/swarmshare/hashsum"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSplitAssembleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, int(2.5*Size))
	for i := range data {
		data[i] = byte(i % 256)
	}
	writeFile(t, dir, "f.bin", data)

	descs, err := Split(dir, "f.bin")
	require.NoError(t, err)
	require.Len(t, descs, 3)
	for i, d := range descs {
		require.Equal(t, i, d.ChunkID)
		require.Equal(t, Name("f.bin", i), d.ChunkName)
	}

	assembledPath, err := Assemble(dir, "f.bin")
	require.NoError(t, err)

	got, err := os.ReadFile(assembledPath)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSplitDeterministicAcrossPeers(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	data := make([]byte, Size+123)
	for i := range data {
		data[i] = byte(i * 7)
	}
	writeFile(t, dirA, "f.bin", data)
	writeFile(t, dirB, "f.bin", data)

	descsA, err := Split(dirA, "f.bin")
	require.NoError(t, err)
	descsB, err := Split(dirB, "f.bin")
	require.NoError(t, err)

	require.Equal(t, descsA, descsB)
}

func TestSplitZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.bin", nil)
	descs, err := Split(dir, "empty.bin")
	require.NoError(t, err)
	require.Empty(t, descs)
}

func TestSplitIdempotent(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, Size+10)
	writeFile(t, dir, "f.bin", data)

	first, err := Split(dir, "f.bin")
	require.NoError(t, err)
	second, err := Split(dir, "f.bin")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestAssembleStopsAtMissingIndex(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 3*Size)
	writeFile(t, dir, "f.bin", data)
	descs, err := Split(dir, "f.bin")
	require.NoError(t, err)
	require.Len(t, descs, 3)

	require.NoError(t, os.Remove(filepath.Join(dir, Name("f.bin", 1))))

	assembledPath, err := Assemble(dir, "f.bin")
	require.NoError(t, err)
	got, err := os.ReadFile(assembledPath)
	require.NoError(t, err)
	require.Equal(t, Size, len(got))
	require.Equal(t, hashsum.Hash(data[:Size]), hashsum.Hash(got))
}
