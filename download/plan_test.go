package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dannyzb/swarmshare/wire"
)

type fakeTracker struct {
	chunks    map[string][]wire.Advertisement
	checksums map[string]string
}

func (f *fakeTracker) Call(method string, args, reply any) error {
	switch method {
	case "Tracker.GetFileChunks":
		a := args.(*wire.GetFileChunksArgs)
		r := reply.(*wire.GetFileChunksReply)
		r.Chunks = f.chunks[a.File]
	case "Tracker.GetFileChecksum":
		a := args.(*wire.GetFileChecksumArgs)
		r := reply.(*wire.GetFileChecksumReply)
		sum, ok := f.checksums[a.File]
		r.Checksum = sum
		r.Found = ok
	}
	return nil
}

func TestPlanAbortsWithoutFinalChecksum(t *testing.T) {
	tracker := &fakeTracker{chunks: map[string][]wire.Advertisement{}, checksums: map[string]string{}}
	_, err := Plan(tracker, "f.txt", "me", t.TempDir())
	require.ErrorIs(t, err, ErrFinalChecksumNotFound)
}

func TestPlanExcludesOwnAdvertisementsAndOnDiskChunks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt.chunk1"), []byte("x"), 0o644))

	tracker := &fakeTracker{
		chunks: map[string][]wire.Advertisement{
			"f.txt": {
				{Peer: "me", ChunkID: 0, ChunkName: "f.txt.chunk0", Checksum: "s0"},   // excluded: self
				{Peer: "bob", ChunkID: 1, ChunkName: "f.txt.chunk1", Checksum: "s1"}, // excluded: on disk
				{Peer: "bob", ChunkID: 2, ChunkName: "f.txt.chunk2", Checksum: "s2"},
			},
		},
		checksums: map[string]string{"f.txt": "final"},
	}

	plan, err := Plan(tracker, "f.txt", "me", dir)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Equal(t, "f.txt.chunk2", plan.Tasks[0].ChunkName)
	require.Equal(t, "bob", plan.Tasks[0].Peer)
}

func TestPlanPicksOneAdvertiserPerChunkName(t *testing.T) {
	dir := t.TempDir()
	tracker := &fakeTracker{
		chunks: map[string][]wire.Advertisement{
			"f.txt": {
				{Peer: "bob", ChunkID: 0, ChunkName: "f.txt.chunk0", Checksum: "s0"},
				{Peer: "carl", ChunkID: 0, ChunkName: "f.txt.chunk0", Checksum: "s0"},
			},
		},
		checksums: map[string]string{"f.txt": "final"},
	}

	plan, err := Plan(tracker, "f.txt", "me", dir)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	require.Contains(t, []string{"bob", "carl"}, plan.Tasks[0].Peer)
}

func TestLocalChunkCountCountsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt.chunk0"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt.chunk0"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt.chunk1"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x"), 0o644))

	n, err := LocalChunkCount(dir)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
