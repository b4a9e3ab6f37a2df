// Package watch notices new shareable files and chunk files dropped into
// a peer's working directory, so the peer can re-register without an
// operator-triggered rescan.
package watch

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anacrolix/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/dannyzb/swarmshare/chunk"
	"github.com/dannyzb/swarmshare/hashsum"
	"github.com/dannyzb/swarmshare/wire"
)

// Registrar is the subset of the tracker RPC surface a watcher needs to
// announce newly-seen chunks.
type Registrar interface {
	Call(serviceMethod string, args, reply any) error
}

// Run watches dir for created files and registers any new whole file
// (".txt", split into chunks on arrival) or loose chunk file it sees,
// until ctx is cancelled.
func Run(ctx context.Context, dir, localPeer string, tracker Registrar, logger log.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %q", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			handle(dir, ev.Name, localPeer, tracker, logger)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Levelf(log.Warning, "watch error: %v", err)
		}
	}
}

func handle(dir, path, localPeer string, tracker Registrar, logger log.Logger) {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ".txt") && !strings.Contains(name, ".chunk"):
		descriptors, err := chunk.Split(dir, name)
		if err != nil {
			logger.Levelf(log.Warning, "splitting newly-seen file %q: %v", name, err)
			return
		}
		sum, err := hashsum.HashFile(path)
		if err != nil {
			logger.Levelf(log.Warning, "hashing newly-seen file %q: %v", name, err)
			return
		}
		registerAll(tracker, localPeer, name, descriptors, sum, logger)

	case strings.Contains(name, ".chunk"):
		idx := strings.LastIndex(name, ".chunk")
		file := name[:idx]
		idStr := name[idx+len(".chunk"):]
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return
		}
		sum, err := hashsum.HashFile(path)
		if err != nil {
			logger.Levelf(log.Warning, "hashing newly-seen chunk %q: %v", name, err)
			return
		}
		registerAll(tracker, localPeer, file, []chunk.Descriptor{{ChunkID: id, ChunkName: name, Checksum: sum}}, "", logger)
	}
}

func registerAll(tracker Registrar, localPeer, file string, descriptors []chunk.Descriptor, finalSum string, logger log.Logger) {
	tuples := make([]wire.ChunkTuple, len(descriptors))
	for i, d := range descriptors {
		tuples[i] = wire.ChunkTuple{ChunkID: d.ChunkID, ChunkName: d.ChunkName, Checksum: d.Checksum}
	}
	args := wire.RegisterChunksArgs{Peer: localPeer, File: file, Chunks: tuples}
	if finalSum != "" {
		args.FileChecksum.Ok = true
		args.FileChecksum.Value = finalSum
	}
	var reply wire.RegisterChunksReply
	if err := tracker.Call("Tracker.RegisterChunks", &args, &reply); err != nil {
		logger.Levelf(log.Warning, "registering watched chunks of %q: %v", file, err)
	}
}
