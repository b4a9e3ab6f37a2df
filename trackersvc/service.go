// Package trackersvc exposes a trackerdir.Directory as a net/rpc service
// named "Tracker", served over HTTP alongside a prometheus /metrics handler.
package trackersvc

import (
	"context"
	"net"
	"net/http"
	"net/rpc"
	"time"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/trackerdir"
	"github.com/dannyzb/swarmshare/tracing"
	"github.com/dannyzb/swarmshare/wire"
)

var tracer = tracing.Tracer("swarmshare/trackersvc")

// Tracker is the RPC-visible wrapper around a *trackerdir.Directory. Every
// method is a thin adapter: argument unpacking, a directory call, reply
// packing.
type Tracker struct {
	dir     *trackerdir.Directory
	metrics *metrics.Tracker
	logger  log.Logger
}

// New builds a Tracker service over dir, recording its request counters
// into m (which may be nil).
func New(dir *trackerdir.Directory, m *metrics.Tracker, logger log.Logger) *Tracker {
	return &Tracker{dir: dir, metrics: m, logger: logger}
}

// count records the request metric and starts a span for method, returning
// a func to end it. net/rpc methods don't carry a caller context, so the
// span is rooted per-call.
func (t *Tracker) count(method string) func() {
	if t.metrics != nil {
		t.metrics.Requests.WithLabelValues(method).Inc()
	}
	_, span := tracer.Start(context.Background(), "Tracker."+method)
	return func() { span.End() }
}

func (t *Tracker) Register(args *wire.RegisterArgs, reply *wire.RegisterReply) error {
	defer t.count("Register")()
	switch t.dir.Register(args.Name, args.Endpoint, time.Now()) {
	case trackerdir.RegisterOk:
		if t.metrics != nil {
			t.metrics.Registrations.Inc()
		}
		reply.Message = "OK"
	case trackerdir.RegisterNameInUse:
		if t.metrics != nil {
			t.metrics.NameConflicts.Inc()
		}
		reply.Message = wire.ErrorPrefix + "name in use"
	}
	return nil
}

func (t *Tracker) ListClients(args *wire.ListClientsArgs, reply *wire.ListClientsReply) error {
	defer t.count("ListClients")()
	reply.Peers = t.dir.ListClients(time.Now())
	return nil
}

func (t *Tracker) GetPeerAddress(args *wire.GetPeerAddressArgs, reply *wire.GetPeerAddressReply) error {
	defer t.count("GetPeerAddress")()
	endpoint, ok := t.dir.GetPeerAddress(args.Name)
	reply.Endpoint = endpoint
	reply.Found = ok
	return nil
}

func (t *Tracker) Heartbeat(args *wire.HeartbeatArgs, reply *wire.HeartbeatReply) error {
	defer t.count("Heartbeat")()
	reply.Ok = t.dir.Heartbeat(args.Name, time.Now())
	return nil
}

func (t *Tracker) RegisterChunks(args *wire.RegisterChunksArgs, reply *wire.RegisterChunksReply) error {
	defer t.count("RegisterChunks")()
	fc := g.None[string]()
	if args.FileChecksum.Ok {
		fc = g.Some(args.FileChecksum.Value)
	}
	reply.Ok = t.dir.RegisterChunks(args.Peer, args.File, args.Chunks, fc)
	if reply.Ok && t.metrics != nil {
		t.metrics.ChunksAdvertise.WithLabelValues(args.File).Add(float64(len(args.Chunks)))
	}
	return nil
}

func (t *Tracker) GetFileChunks(args *wire.GetFileChunksArgs, reply *wire.GetFileChunksReply) error {
	defer t.count("GetFileChunks")()
	reply.Chunks = t.dir.GetFileChunks(args.File)
	return nil
}

func (t *Tracker) GetFileChecksum(args *wire.GetFileChecksumArgs, reply *wire.GetFileChecksumReply) error {
	defer t.count("GetFileChecksum")()
	sum, ok := t.dir.GetFileChecksum(args.File)
	reply.Checksum = sum
	reply.Found = ok
	return nil
}

// Serve registers t as "Tracker" on a fresh rpc.Server, mounts it and a
// prometheus handler on a dedicated mux, and serves on l until l closes or
// the process exits. It blocks; call it in a goroutine.
func Serve(l net.Listener, t *Tracker) error {
	server := rpc.NewServer()
	if err := server.RegisterName("Tracker", t); err != nil {
		return errors.Wrap(err, "registering Tracker RPC service")
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	mux.Handle("/metrics", promhttp.Handler())

	t.logger.Levelf(log.Info, "tracker serving on %s", l.Addr())
	return http.Serve(l, mux)
}
