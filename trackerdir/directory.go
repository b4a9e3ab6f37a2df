// Package trackerdir implements the tracker's in-memory directory: the
// peer registry with heartbeat-based liveness, and the file-to-chunk
// advertisement index. It never sees file payload — only metadata.
package trackerdir

import (
	"time"

	list "github.com/bahlo/generic-list-go"
	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"

	"github.com/dannyzb/swarmshare/internal/event"
	"github.com/dannyzb/swarmshare/internal/lockutil"
	"github.com/dannyzb/swarmshare/wire"
)

// peerRecord is the tracker's view of one peer.
type peerRecord struct {
	endpoint      string
	lastHeartbeat time.Time
}

// Directory is the tracker's single piece of shared mutable state: the
// peer registry, its chunk-advertisement index, and the terminal
// per-file checksums. All mutating operations serialize on one lock, as
// spec.md §4.3/§4.4 permits.
type Directory struct {
	lock lockutil.LockWithDeferreds

	peers           map[string]*peerRecord
	chunksByFile    map[string]*list.List[wire.Advertisement]
	fileChecksums   map[string]string
	heartbeatExpiry time.Duration

	// Swept fires after any Sweep that actually removed a peer, for tests
	// and operators that want to observe liveness transitions.
	Swept event.Event

	logger log.Logger
}

// New builds an empty Directory. expiry is the heartbeat timeout (T in
// spec.md §4.8, conventionally 30s).
func New(expiry time.Duration, logger log.Logger) *Directory {
	return &Directory{
		peers:           make(map[string]*peerRecord),
		chunksByFile:    make(map[string]*list.List[wire.Advertisement]),
		fileChecksums:   make(map[string]string),
		heartbeatExpiry: expiry,
		logger:          logger,
	}
}

// Registration outcomes.
type RegisterResult int

const (
	RegisterOk RegisterResult = iota
	RegisterNameInUse
)

// Register adds name -> endpoint. If name is already present and its
// heartbeat has not expired, it's rejected. A present-but-expired entry
// is swept first, freeing the name.
func (d *Directory) Register(name, endpoint string, now time.Time) RegisterResult {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.sweepLocked(now)

	if _, exists := d.peers[name]; exists {
		return RegisterNameInUse
	}
	d.peers[name] = &peerRecord{endpoint: endpoint, lastHeartbeat: now}
	d.lock.Defer(func() {
		d.logger.Levelf(log.Info, "peer %q registered at %s", name, endpoint)
	})
	return RegisterOk
}

// ListClients sweeps expired peers, then returns every remaining peer's
// endpoint.
func (d *Directory) ListClients(now time.Time) map[string]string {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.sweepLocked(now)

	out := make(map[string]string, len(d.peers))
	for name, rec := range d.peers {
		out[name] = rec.endpoint
	}
	return out
}

// GetPeerAddress looks up a single peer's endpoint without sweeping
// (matching spec.md's description of the op as a plain lookup).
func (d *Directory) GetPeerAddress(name string) (string, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	rec, ok := d.peers[name]
	if !ok {
		return "", false
	}
	return rec.endpoint, true
}

// Heartbeat refreshes name's last-seen time. It never revives a peer
// that's already been swept — the name must be registered again.
func (d *Directory) Heartbeat(name string, now time.Time) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	rec, ok := d.peers[name]
	if !ok {
		return false
	}
	rec.lastHeartbeat = now
	return true
}

// RegisterChunks appends peer's advertisements for file. Unknown peers
// are rejected (spec.md §9's Open Question resolved in favor of
// rejection). Duplicate (peer, chunk_name) pairs are not re-appended —
// spec.md allows either behavior; this implementation deduplicates.
func (d *Directory) RegisterChunks(peer, file string, chunks []wire.ChunkTuple, fileChecksum g.Option[string]) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.peers[peer]; !ok {
		return false
	}

	l, ok := d.chunksByFile[file]
	if !ok {
		l = list.New[wire.Advertisement]()
		d.chunksByFile[file] = l
	}

	seen := make(map[string]bool, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.Peer == peer {
			seen[e.Value.ChunkName] = true
		}
	}

	added := 0
	for _, c := range chunks {
		if seen[c.ChunkName] {
			continue
		}
		seen[c.ChunkName] = true
		l.PushBack(wire.Advertisement{
			Peer:      peer,
			ChunkID:   c.ChunkID,
			ChunkName: c.ChunkName,
			Checksum:  c.Checksum,
		})
		added++
	}

	if fileChecksum.Ok {
		d.fileChecksums[file] = fileChecksum.Value
	}

	if added > 0 {
		d.lock.Defer(func() {
			d.logger.Levelf(log.Debug, "peer %q advertised %d chunk(s) of %q", peer, added, file)
		})
	}
	return true
}

// GetFileChunks returns every advertisement for file, or an empty slice
// if the file is unknown.
func (d *Directory) GetFileChunks(file string) []wire.Advertisement {
	d.lock.RLock()
	defer d.lock.RUnlock()

	l, ok := d.chunksByFile[file]
	if !ok {
		return nil
	}
	out := make([]wire.Advertisement, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}

// GetFileChecksum returns file's terminal whole-file checksum.
func (d *Directory) GetFileChecksum(file string) (string, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	v, ok := d.fileChecksums[file]
	return v, ok
}

// Sweep removes every peer whose heartbeat is older than the configured
// expiry, along with their chunk advertisements. Files left with no
// advertisers are removed entirely; terminal checksums are retained. It
// returns the number of peers expired, for the caller's metrics.
func (d *Directory) Sweep(now time.Time) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.sweepLocked(now)
}

func (d *Directory) sweepLocked(now time.Time) int {
	var expired []string
	for name, rec := range d.peers {
		if now.Sub(rec.lastHeartbeat) > d.heartbeatExpiry {
			expired = append(expired, name)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	expiredSet := make(map[string]bool, len(expired))
	for _, name := range expired {
		expiredSet[name] = true
		delete(d.peers, name)
	}

	for file, l := range d.chunksByFile {
		for e := l.Front(); e != nil; {
			next := e.Next()
			if expiredSet[e.Value.Peer] {
				l.Remove(e)
			}
			e = next
		}
		if l.Len() == 0 {
			delete(d.chunksByFile, file)
		}
	}

	d.lock.Defer(func() {
		for _, name := range expired {
			d.logger.Levelf(log.Info, "peer %q expired (missed heartbeat)", name)
		}
		d.Swept.Broadcast()
	})
	return len(expired)
}
