// Command tracker runs the swarmshare tracker: the peer directory and
// chunk-advertisement index, served over RPC with a liveness sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anacrolix/envpprof"
	"github.com/anacrolix/log"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dannyzb/swarmshare/heartbeat"
	"github.com/dannyzb/swarmshare/internal/stats"
	"github.com/dannyzb/swarmshare/internal/transport"
	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/trackerdir"
	"github.com/dannyzb/swarmshare/trackersvc"
	"github.com/dannyzb/swarmshare/tracing"
	"github.com/dannyzb/swarmshare/version"
)

type options struct {
	Addr             string        `long:"addr" default:"localhost:9000" description:"address to serve the tracker RPC and metrics on"`
	HeartbeatTimeout time.Duration `long:"heartbeat-timeout" default:"30s" description:"peer liveness timeout T"`
}

func main() {
	defer envpprof.Stop()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	logger := log.Default.WithNames("tracker")
	logger.Levelf(log.Info, "starting %s", version.ClientName)

	shutdownTracing, err := tracing.Setup("swarmshare-tracker")
	if err != nil {
		logger.Levelf(log.Error, "tracing setup: %v", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	dir := trackerdir.New(opts.HeartbeatTimeout, logger)
	trackerMetrics := metrics.NewTracker(prometheus.DefaultRegisterer)
	svc := trackersvc.New(dir, trackerMetrics, logger)

	l, err := transport.Listen(opts.Addr)
	if err != nil {
		logger.Levelf(log.Error, "listening on %q: %v", opts.Addr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go heartbeat.RunSweepLoop(ctx, dir, opts.HeartbeatTimeout, func(n int) {
		trackerMetrics.PeersExpired.Add(float64(n))
	})

	var serveErrors stats.Count
	go func() {
		if err := trackersvc.Serve(l, svc); err != nil {
			serveErrors.Add(1)
			logger.Levelf(log.Error, "serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	cancel()
	l.Close()
	logger.Levelf(log.Info, "tracker shutting down, %s serve errors", serveErrors.String())
}
