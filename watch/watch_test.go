package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/require"

	"github.com/dannyzb/swarmshare/wire"
)

type recordingRegistrar struct {
	calls chan *wire.RegisterChunksArgs
}

func (r *recordingRegistrar) Call(method string, args, reply any) error {
	if method == "Tracker.RegisterChunks" {
		r.calls <- args.(*wire.RegisterChunksArgs)
		reply.(*wire.RegisterChunksReply).Ok = true
	}
	return nil
}

func TestRunRegistersNewWholeFile(t *testing.T) {
	dir := t.TempDir()
	reg := &recordingRegistrar{calls: make(chan *wire.RegisterChunksArgs, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, dir, "me", reg, log.Default)

	time.Sleep(20 * time.Millisecond) // let the watcher attach before the write
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt"), []byte("hello world"), 0o644))

	select {
	case args := <-reg.calls:
		require.Equal(t, "book.txt", args.File)
		require.Equal(t, "me", args.Peer)
		require.NotEmpty(t, args.Chunks)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a RegisterChunks call for the new file")
	}
}

func TestRunRegistersLooseChunkFile(t *testing.T) {
	dir := t.TempDir()
	reg := &recordingRegistrar{calls: make(chan *wire.RegisterChunksArgs, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, dir, "me", reg, log.Default)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt.chunk0"), []byte("block"), 0o644))

	select {
	case args := <-reg.calls:
		require.Equal(t, "book.txt", args.File)
		require.Len(t, args.Chunks, 1)
		require.Equal(t, "book.txt.chunk0", args.Chunks[0].ChunkName)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a RegisterChunks call for the new chunk")
	}
}
