package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/bradfitz/iter"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dannyzb/swarmshare/chunk"
	"github.com/dannyzb/swarmshare/hashsum"
	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/peerpool"
	"github.com/dannyzb/swarmshare/tracing"
	"github.com/dannyzb/swarmshare/wire"
)

var tracer = tracing.Tracer("swarmshare/download")

// Failure is one chunk's download failure, tagged with a distinct reason
// string per spec.md §4.7's "distinct message tags" requirement.
type Failure struct {
	ChunkName string
	Reason    string
}

func (f Failure) Error() string { return f.ChunkName + ": " + f.Reason }

// Result is what Run returns on success.
type Result struct {
	File             string
	BytesTransferred int64
	ChunksDownloaded int
	Duration         time.Duration
}

// engine holds the shared state of one Run invocation's execution phase:
// the in_progress/downloaded sets, per-chunk write locks, and the failure
// queue, all from spec.md §4.7.
type engine struct {
	tracker   TrackerClient
	pool      *peerpool.Pool
	localDir  string
	localPeer string

	downloadedMu sync.Mutex
	downloaded   map[string]bool
	inProgressMu sync.Mutex
	inProgress   map[string]bool

	chunkLocksMu sync.Mutex
	chunkLocks   map[string]*sync.Mutex

	failuresMu sync.Mutex
	failures   []Failure

	bytesTransferred atomic.Int64

	metrics *metrics.Download
	logger  log.Logger
}

func newEngine(tracker TrackerClient, pool *peerpool.Pool, localDir, localPeer string, m *metrics.Download, logger log.Logger) *engine {
	return &engine{
		tracker:    tracker,
		pool:       pool,
		localDir:   localDir,
		localPeer:  localPeer,
		downloaded: make(map[string]bool),
		inProgress: make(map[string]bool),
		chunkLocks: make(map[string]*sync.Mutex),
		metrics:    m,
		logger:     logger,
	}
}

func (e *engine) chunkLock(name string) *sync.Mutex {
	e.chunkLocksMu.Lock()
	defer e.chunkLocksMu.Unlock()
	l, ok := e.chunkLocks[name]
	if !ok {
		l = &sync.Mutex{}
		e.chunkLocks[name] = l
	}
	return l
}

// claim reports whether chunkName may be downloaded by this task: false if
// it's already in_progress or downloaded (spec.md §4.7 step 2), else it
// marks chunkName in_progress and reports true.
func (e *engine) claim(chunkName string) bool {
	e.downloadedMu.Lock()
	already := e.downloaded[chunkName]
	e.downloadedMu.Unlock()
	if already {
		return false
	}

	e.inProgressMu.Lock()
	defer e.inProgressMu.Unlock()
	if e.inProgress[chunkName] {
		return false
	}
	e.inProgress[chunkName] = true
	return true
}

func (e *engine) release(chunkName string) {
	e.inProgressMu.Lock()
	delete(e.inProgress, chunkName)
	e.inProgressMu.Unlock()
}

func (e *engine) markDownloaded(chunkName string) {
	e.downloadedMu.Lock()
	e.downloaded[chunkName] = true
	e.downloadedMu.Unlock()
}

func (e *engine) fail(chunkName, reason string) {
	e.failuresMu.Lock()
	e.failures = append(e.failures, Failure{ChunkName: chunkName, Reason: reason})
	e.failuresMu.Unlock()
	if e.metrics != nil {
		e.metrics.ChunkFailures.WithLabelValues(reason).Inc()
	}
}

// Run implements spec.md §4.7's execution phase and termination logic. It
// never cancels early on a per-chunk failure — every task runs to
// completion and failures accumulate in the engine's failure queue.
func Run(ctx context.Context, tracker TrackerClient, pool *peerpool.Pool, plan *Plan, localPeer, localDir string, nParallel int, m *metrics.Download, logger log.Logger) (*Result, error) {
	start := time.Now()
	e := newEngine(tracker, pool, localDir, localPeer, m, logger)

	queue := make(chan Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		queue <- t
	}
	close(queue)

	grp, gctx := errgroup.WithContext(ctx)
	for range iter.N(nParallel) {
		grp.Go(func() error {
			for t := range queue {
				e.runOne(gctx, plan, t)
			}
			return nil
		})
	}
	_ = grp.Wait()

	if m != nil {
		m.Downloads.Inc()
		m.BytesDownloaded.Add(float64(e.bytesTransferred.Load()))
	}

	if len(e.failures) > 0 {
		var merr error
		for _, f := range e.failures {
			merr = multierr.Append(merr, f)
		}
		return nil, errors.Wrap(merr, "download failed, not attempting reassembly")
	}

	return e.finish(plan, localDir, start)
}

// runOne executes one task's steps 3-6 from spec.md §4.7; step 2 (claim)
// and step 7 (release) bracket it.
func (e *engine) runOne(ctx context.Context, plan *Plan, t Task) {
	ctx, span := tracer.Start(ctx, "download chunk")
	defer span.End()

	if !e.claim(t.ChunkName) {
		return
	}
	defer e.release(t.ChunkName)

	var addrReply wire.GetPeerAddressReply
	if err := e.tracker.Call("Tracker.GetPeerAddress", &wire.GetPeerAddressArgs{Name: t.Peer}, &addrReply); err != nil || !addrReply.Found {
		e.fail(t.ChunkName, "peer not found")
		return
	}

	client, err := e.pool.Get(addrReply.Endpoint)
	if err != nil {
		e.fail(t.ChunkName, "dial failed: "+err.Error())
		return
	}

	var sendReply wire.SendChunkReply
	if err := client.Call("Peer.SendChunk", &wire.SendChunkArgs{ChunkName: t.ChunkName}, &sendReply); err != nil {
		e.fail(t.ChunkName, "rpc error: "+err.Error())
		return
	}
	if sendReply.Error != "" {
		e.fail(t.ChunkName, sendReply.Error)
		return
	}

	sum := sha256.Sum256(sendReply.Data.Data)
	if hex.EncodeToString(sum[:]) != t.Checksum {
		// Never write a bad block to disk.
		e.fail(t.ChunkName, "checksum mismatch")
		return
	}

	lock := e.chunkLock(t.ChunkName)
	lock.Lock()
	writeErr := os.WriteFile(filepath.Join(e.localDir, t.ChunkName), sendReply.Data.Data, 0o644)
	lock.Unlock()
	if writeErr != nil {
		e.fail(t.ChunkName, "write failed: "+writeErr.Error())
		return
	}

	e.bytesTransferred.Add(int64(len(sendReply.Data.Data)))

	// Re-seed immediately: the peer becomes an advertiser for this chunk
	// before the whole file is complete.
	var regReply wire.RegisterChunksReply
	_ = e.tracker.Call("Tracker.RegisterChunks", &wire.RegisterChunksArgs{
		Peer: e.localPeer,
		File: plan.File,
		Chunks: []wire.ChunkTuple{
			{ChunkID: t.ChunkID, ChunkName: t.ChunkName, Checksum: t.Checksum},
		},
	}, &regReply)

	e.markDownloaded(t.ChunkName)
	if e.metrics != nil {
		e.metrics.ChunksDownloaded.Inc()
	}
}

// finish implements spec.md §4.7's success termination: assemble, verify,
// rename-or-delete, re-split, re-register.
func (e *engine) finish(plan *Plan, localDir string, start time.Time) (*Result, error) {
	assembledPath, err := chunk.Assemble(localDir, plan.File)
	if err != nil {
		return nil, errors.Wrap(err, "assembling file")
	}

	sum, err := hashsum.HashFile(assembledPath)
	if err != nil {
		os.Remove(assembledPath)
		return nil, errors.Wrap(err, "hashing assembled file")
	}
	if sum != plan.FinalSum {
		os.Remove(assembledPath)
		return nil, errors.Errorf("assembled file checksum mismatch: got %s want %s", sum, plan.FinalSum)
	}

	finalPath := filepath.Join(localDir, plan.File)
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		if err := os.Rename(assembledPath, finalPath); err != nil {
			return nil, errors.Wrap(err, "renaming assembled file into place")
		}
	} else {
		os.Remove(assembledPath)
	}

	descriptors, err := chunk.Split(localDir, plan.File)
	if err != nil {
		return nil, errors.Wrap(err, "re-splitting file")
	}

	tuples := make([]wire.ChunkTuple, len(descriptors))
	for i, d := range descriptors {
		tuples[i] = wire.ChunkTuple{ChunkID: d.ChunkID, ChunkName: d.ChunkName, Checksum: d.Checksum}
	}
	var regReply wire.RegisterChunksReply
	if err := e.tracker.Call("Tracker.RegisterChunks", &wire.RegisterChunksArgs{
		Peer:         e.localPeer,
		File:         plan.File,
		Chunks:       tuples,
		FileChecksum: g.Some(plan.FinalSum),
	}, &regReply); err != nil {
		return nil, errors.Wrap(err, "re-registering chunks after assembly")
	}

	elapsed := time.Since(start)
	bytesPerSec := float64(e.bytesTransferred.Load()) / elapsed.Seconds()
	e.logger.Levelf(log.Info, "downloaded %s of %q in %s (%.2f MB/s)",
		humanize.Bytes(uint64(e.bytesTransferred.Load())), plan.File, elapsed, bytesPerSec/1e6)

	return &Result{
		File:             plan.File,
		BytesTransferred: e.bytesTransferred.Load(),
		ChunksDownloaded: len(plan.Tasks) - len(e.failures),
		Duration:         elapsed,
	}, nil
}
