// Package metrics defines the prometheus collectors shared by the tracker
// and peer services, and the download engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tracker holds the tracker service's request counters.
type Tracker struct {
	Registrations   prometheus.Counter
	NameConflicts   prometheus.Counter
	PeersExpired    prometheus.Counter
	ChunksAdvertise *prometheus.CounterVec // by file
	Requests        *prometheus.CounterVec // by method
}

// NewTracker registers the tracker's collectors against reg.
func NewTracker(reg prometheus.Registerer) *Tracker {
	f := promauto.With(reg)
	return &Tracker{
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_tracker_registrations_total",
			Help: "Successful peer registrations.",
		}),
		NameConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_tracker_name_conflicts_total",
			Help: "Register calls rejected for an in-use, live name.",
		}),
		PeersExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_tracker_peers_expired_total",
			Help: "Peers removed by the liveness sweeper.",
		}),
		ChunksAdvertise: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmshare_tracker_chunk_advertisements_total",
			Help: "Chunk advertisements registered, by file.",
		}, []string{"file"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmshare_tracker_requests_total",
			Help: "Tracker RPC calls, by method.",
		}, []string{"method"}),
	}
}

// Peer holds the peer service's transfer counters.
type Peer struct {
	ChunksSent    prometheus.Counter
	BytesSent     prometheus.Counter
	SendErrors    *prometheus.CounterVec // by reason
	MessagesInbox prometheus.Counter
}

// NewPeer registers the peer's collectors against reg.
func NewPeer(reg prometheus.Registerer) *Peer {
	f := promauto.With(reg)
	return &Peer{
		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_peer_chunks_sent_total",
			Help: "Chunks served to other peers.",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_peer_bytes_sent_total",
			Help: "Chunk bytes served to other peers.",
		}),
		SendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmshare_peer_send_errors_total",
			Help: "SendChunk failures, by reason.",
		}, []string{"reason"}),
		MessagesInbox: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_peer_messages_received_total",
			Help: "Chat messages received (out of scope feature, counted for parity with the RPC surface).",
		}),
	}
}

// Download holds the download engine's per-attempt counters.
type Download struct {
	ChunksDownloaded prometheus.Counter
	ChunkFailures    *prometheus.CounterVec // by reason
	BytesDownloaded  prometheus.Counter
	Downloads        prometheus.Counter
}

// NewDownload registers the download engine's collectors against reg.
func NewDownload(reg prometheus.Registerer) *Download {
	f := promauto.With(reg)
	return &Download{
		ChunksDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_download_chunks_total",
			Help: "Chunks successfully downloaded and verified.",
		}),
		ChunkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swarmshare_download_chunk_failures_total",
			Help: "Per-chunk download failures, by reason.",
		}, []string{"reason"}),
		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_download_bytes_total",
			Help: "Bytes downloaded across all chunks.",
		}),
		Downloads: f.NewCounter(prometheus.CounterOpts{
			Name: "swarmshare_downloads_total",
			Help: "Completed download() invocations (success or failure).",
		}),
	}
}
