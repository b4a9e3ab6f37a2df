// Package peersvc exposes one peer's local chunk store as a net/rpc
// service named "Peer": SendChunk for transfers, GetFiles for listing
// shareable whole files, and ReceiveMessage as a chat stub kept only to
// match the original RPC surface.
package peersvc

import (
	"context"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/wire"
)

// Peer is the RPC-visible wrapper around one peer's local directory.
type Peer struct {
	dir     string
	limiter *rate.Limiter // nil disables shaping
	metrics *metrics.Peer
	logger  log.Logger
}

// New builds a Peer service rooted at dir. limiter may be nil to disable
// bandwidth shaping on SendChunk.
func New(dir string, limiter *rate.Limiter, m *metrics.Peer, logger log.Logger) *Peer {
	return &Peer{dir: dir, limiter: limiter, metrics: m, logger: logger}
}

// resolveChunkPath rejects any ChunkName that isn't a plain file name
// directly under dir: no "..", no path separators, no absolute paths.
// spec.md §9's SendChunk path-traversal question is resolved in favor of
// this hardening.
func (p *Peer) resolveChunkPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty chunk name")
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", errors.Errorf("unsafe chunk name %q", name)
	}
	return filepath.Join(p.dir, name), nil
}

func (p *Peer) SendChunk(args *wire.SendChunkArgs, reply *wire.SendChunkReply) error {
	path, err := p.resolveChunkPath(args.ChunkName)
	if err != nil {
		p.recordSendError("unsafe_name")
		reply.Error = wire.ErrorPrefix + err.Error()
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.recordSendError("not_found")
		reply.Error = wire.ErrChunkNotFound
		return nil
	}

	if p.limiter != nil {
		if err := p.limiter.WaitN(context.Background(), len(data)); err != nil {
			p.recordSendError("rate_limit")
			reply.Error = wire.ErrorPrefix + err.Error()
			return nil
		}
	}

	reply.Data = wire.Binary{Data: data}
	if p.metrics != nil {
		p.metrics.ChunksSent.Inc()
		p.metrics.BytesSent.Add(float64(len(data)))
	}
	return nil
}

func (p *Peer) recordSendError(reason string) {
	if p.metrics != nil {
		p.metrics.SendErrors.WithLabelValues(reason).Inc()
	}
}

// GetFiles lists whole shareable files: *.txt entries that are not chunk
// fragments, per spec.md §4.5.
func (p *Peer) GetFiles(args *wire.GetFilesArgs, reply *wire.GetFilesReply) error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return errors.Wrapf(err, "reading %q", p.dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".txt") && !strings.Contains(name, ".chunk") {
			files = append(files, name)
		}
	}
	reply.Files = files
	return nil
}

// ReceiveMessage is a chat stub: out of scope (spec.md §1), kept on the
// surface only because spec.md §6 lists it.
func (p *Peer) ReceiveMessage(args *wire.ReceiveMessageArgs, reply *wire.ReceiveMessageReply) error {
	if p.metrics != nil {
		p.metrics.MessagesInbox.Inc()
	}
	p.logger.Levelf(log.Debug, "message from %q ignored (chat out of scope)", args.FromPeer)
	reply.Ok = true
	return nil
}

// Serve registers p as "Peer" on a fresh rpc.Server, mounts it and a
// prometheus handler on a dedicated mux, and serves on l until it closes.
// It blocks; call it in a goroutine.
func Serve(l net.Listener, p *Peer) error {
	server := rpc.NewServer()
	if err := server.RegisterName("Peer", p); err != nil {
		return errors.Wrap(err, "registering Peer RPC service")
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	mux.Handle("/metrics", promhttp.Handler())

	p.logger.Levelf(log.Info, "peer serving on %s", l.Addr())
	return http.Serve(l, mux)
}
