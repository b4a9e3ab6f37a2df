package download

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/anacrolix/missinggo/v2/bitmap"
	"github.com/pkg/errors"

	"github.com/dannyzb/swarmshare/wire"
)

// ErrFinalChecksumNotFound is returned by Plan when the tracker has no
// terminal checksum registered for the requested file.
var ErrFinalChecksumNotFound = errors.New("final checksum not found on tracker")

// Task is one planned download: a single chosen advertiser for a missing
// chunk_name.
type Task struct {
	Peer      string
	ChunkID   int
	ChunkName string
	Checksum  string
}

// Plan is the output of the planning phase: spec.md §4.7 steps 1-5.
type Plan struct {
	File         string
	FinalSum     string
	Tasks        []Task
	ChunksNeeded bitmap.Bitmap // chunk_ids not present locally, at plan time
}

// TrackerClient is the subset of the tracker RPC surface the planner and
// worker pool need.
type TrackerClient interface {
	Call(serviceMethod string, args, reply any) error
}

// localInventory scans dir for <file>.chunk<i> entries and returns the set
// of chunk_ids already on disk.
func localInventory(dir, file string) (*roaring.Bitmap, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", dir)
	}
	prefix := file + ".chunk"
	bm := roaring.New()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		bm.AddInt(id)
	}
	return bm, nil
}

// Plan implements spec.md §4.7's planning phase.
func Plan(tracker TrackerClient, file, localPeer, localDir string) (*Plan, error) {
	var chunksReply wire.GetFileChunksReply
	if err := tracker.Call("Tracker.GetFileChunks", &wire.GetFileChunksArgs{File: file}, &chunksReply); err != nil {
		return nil, errors.Wrap(err, "fetching file chunks")
	}

	var sumReply wire.GetFileChecksumReply
	if err := tracker.Call("Tracker.GetFileChecksum", &wire.GetFileChecksumArgs{File: file}, &sumReply); err != nil {
		return nil, errors.Wrap(err, "fetching final checksum")
	}
	if !sumReply.Found {
		return nil, ErrFinalChecksumNotFound
	}

	onDisk, err := localInventory(localDir, file)
	if err != nil {
		return nil, err
	}

	byChunkName := make(map[string][]wire.Advertisement)
	var order []string
	for _, ad := range chunksReply.Chunks {
		if ad.Peer == localPeer {
			continue
		}
		if onDisk.ContainsInt(ad.ChunkID) {
			continue
		}
		if _, seen := byChunkName[ad.ChunkName]; !seen {
			order = append(order, ad.ChunkName)
		}
		byChunkName[ad.ChunkName] = append(byChunkName[ad.ChunkName], ad)
	}

	var needed bitmap.Bitmap
	tasks := make([]Task, 0, len(order))
	for _, chunkName := range order {
		candidates := byChunkName[chunkName]
		chosen := candidates[rand.Intn(len(candidates))]
		needed.Add(bitmap.BitIndex(chosen.ChunkID))
		tasks = append(tasks, Task{
			Peer:      chosen.Peer,
			ChunkID:   chosen.ChunkID,
			ChunkName: chosen.ChunkName,
			Checksum:  chosen.Checksum,
		})
	}

	rand.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })

	return &Plan{File: file, FinalSum: sumReply.Checksum, Tasks: tasks, ChunksNeeded: needed}, nil
}

// LocalChunkCount counts every "*.chunk*" file in dir, for the contribution
// gate (spec.md §4.7). It spans every base file name in dir, not just one.
func LocalChunkCount(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %q", dir)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matched, _ := filepath.Match("*.chunk*", e.Name()); matched {
			n++
		}
	}
	return n, nil
}
