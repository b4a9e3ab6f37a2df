// Command peer runs one swarmshare peer: registers with a tracker,
// serves chunks to other peers, sends heartbeats, and can drive downloads
// of files advertised by other peers.
package main

import (
	"context"
	"math/rand"
	"net/rpc"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/chansync"
	"github.com/anacrolix/envpprof"
	"github.com/anacrolix/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/dannyzb/swarmshare/download"
	"github.com/dannyzb/swarmshare/heartbeat"
	"github.com/dannyzb/swarmshare/internal/stats"
	"github.com/dannyzb/swarmshare/internal/transport"
	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/peerpool"
	"github.com/dannyzb/swarmshare/peersvc"
	"github.com/dannyzb/swarmshare/tracing"
	"github.com/dannyzb/swarmshare/version"
	"github.com/dannyzb/swarmshare/watch"
	"github.com/dannyzb/swarmshare/wire"
)

type args struct {
	Name      string  `arg:"required" help:"this peer's tracker-visible name"`
	Dir       string  `arg:"required" help:"working directory holding this peer's files and chunks"`
	Tracker   string  `arg:"--tracker" default:"localhost:9000" help:"tracker RPC address"`
	Addr      string  `arg:"--addr" help:"address to serve this peer's RPC on (random port by default)"`
	RateLimit float64 `arg:"--rate-limit" help:"outbound bytes/sec cap on send_chunk; 0 disables shaping"`
	Download  string  `arg:"--download" help:"file name to download from the swarm on startup, if any"`
	Parallel  int     `arg:"--parallel" default:"1" help:"requested download parallelism, bounded by the contribution gate"`
	Watch     bool    `arg:"--watch" help:"watch the working directory and auto-register files dropped in after startup"`
}

func main() {
	defer envpprof.Stop()

	var a args
	arg.MustParse(&a)

	logger := log.Default.WithNames("peer", a.Name)
	logger.Levelf(log.Info, "starting %s", version.ClientName)

	shutdownTracing, err := tracing.Setup("swarmshare-peer")
	if err != nil {
		logger.Levelf(log.Error, "tracing setup: %v", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	if a.Addr == "" {
		a.Addr = "localhost:" + strconv.Itoa(10000+rand.Intn(50000))
	}

	var limiter *rate.Limiter
	if a.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.RateLimit), int(a.RateLimit))
	}

	svc := peersvc.New(a.Dir, limiter, metrics.NewPeer(prometheus.DefaultRegisterer), logger)
	l, err := transport.Listen(a.Addr)
	if err != nil {
		logger.Levelf(log.Error, "listening on %q: %v", a.Addr, err)
		os.Exit(1)
	}
	go func() {
		if err := peersvc.Serve(l, svc); err != nil {
			logger.Levelf(log.Error, "serve: %v", err)
		}
	}()

	trackerPool := peerpool.New()
	trackerClient, err := trackerPool.Get(a.Tracker)
	if err != nil {
		logger.Levelf(log.Error, "dialing tracker %q: %v", a.Tracker, err)
		os.Exit(1)
	}

	var regReply wire.RegisterReply
	if err := trackerClient.Call("Tracker.Register", &wire.RegisterArgs{Name: a.Name, Endpoint: a.Addr}, &regReply); err != nil {
		logger.Levelf(log.Error, "register: %v", err)
		os.Exit(1)
	}
	logger.Levelf(log.Info, "registered with tracker as %s: %s", version.UserAgent, regReply.Message)

	ctx, cancel := context.WithCancel(context.Background())
	var shutdown chansync.SetOnce
	go heartbeat.RunPeerLoop(ctx, trackerClient, a.Name, heartbeat.DefaultInterval, &shutdown, logger)

	if a.Download != "" {
		go runDownload(ctx, trackerClient, a, logger)
	}

	if a.Watch {
		go func() {
			if err := watch.Run(ctx, a.Dir, a.Name, trackerClient, logger); err != nil {
				logger.Levelf(log.Warning, "watch stopped: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-shutdown.Done():
	}
	cancel()
	l.Close()
}

// planAttempts counts how many times this peer has planned a download
// across its lifetime (one planning pass per run today; kept as a plain
// running total rather than a labeled prometheus counter since nothing
// else needs to slice it by dimension).
var planAttempts stats.Count

func runDownload(ctx context.Context, trackerClient *rpc.Client, a args, logger log.Logger) {
	localChunks, err := download.LocalChunkCount(a.Dir)
	if err != nil {
		logger.Levelf(log.Error, "counting local chunks: %v", err)
		return
	}
	if err := download.CheckParallelism(a.Parallel, localChunks); err != nil {
		logger.Levelf(log.Error, "%v", err)
		return
	}

	planAttempts.Add(1)
	plan, err := download.Plan(trackerClient, a.Download, a.Name, a.Dir)
	if err != nil {
		logger.Levelf(log.Error, "planning download of %q (attempt %s): %v", a.Download, planAttempts.String(), err)
		return
	}

	pool := peerpool.New()
	defer pool.CloseAll()

	result, err := download.Run(ctx, trackerClient, pool, plan, a.Name, a.Dir, a.Parallel, metrics.NewDownload(prometheus.DefaultRegisterer), logger)
	if err != nil {
		logger.Levelf(log.Error, "download of %q failed: %v", a.Download, err)
		return
	}
	logger.Levelf(log.Info, "download of %q complete: %d chunks, %d bytes in %s", a.Download, result.ChunksDownloaded, result.BytesTransferred, result.Duration)
}
