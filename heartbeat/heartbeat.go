// Package heartbeat runs the two liveness loops spec.md §4.8 describes:
// a peer-side ticker that calls Tracker.Heartbeat, and a tracker-side
// ticker that sweeps expired peers from a trackerdir.Directory.
package heartbeat

import (
	"context"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"

	"github.com/dannyzb/swarmshare/wire"
)

// DefaultInterval is how often a peer calls Tracker.Heartbeat.
const DefaultInterval = 5 * time.Second

// MaxConsecutiveFailures is how many heartbeats in a row may fail before
// the peer gives up and shuts down (spec.md §5/§7).
const MaxConsecutiveFailures = 3

// TrackerClient is the subset of a tracker RPC client the peer loop needs.
type TrackerClient interface {
	Call(serviceMethod string, args, reply any) error
}

// RunPeerLoop calls Tracker.Heartbeat every interval until ctx is done or
// the failure budget is exhausted, at which point it sets shutdown and
// returns. name is the peer's registered name.
func RunPeerLoop(ctx context.Context, client TrackerClient, name string, interval time.Duration, shutdown *chansync.SetOnce, logger log.Logger) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown.Done():
			return
		case <-ticker.C:
			var reply wire.HeartbeatReply
			err := client.Call("Tracker.Heartbeat", &wire.HeartbeatArgs{Name: name}, &reply)
			if err != nil || !reply.Ok {
				failures++
				logger.Levelf(log.Warning, "heartbeat %d/%d failed for %q: %v", failures, MaxConsecutiveFailures, name, err)
				if failures >= MaxConsecutiveFailures {
					logger.Levelf(log.Error, "peer %q missed %d heartbeats, shutting down", name, failures)
					shutdown.Set()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// Sweeper is the subset of trackerdir.Directory the tracker-side loop needs.
type Sweeper interface {
	Sweep(now time.Time) int
}

// RunSweepLoop calls dir.Sweep every period until ctx is done, reporting
// each sweep's expired-peer count to onExpired if it's non-nil.
func RunSweepLoop(ctx context.Context, dir Sweeper, period time.Duration, onExpired func(n int)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := dir.Sweep(time.Now())
			if n > 0 && onExpired != nil {
				onExpired(n)
			}
		}
	}
}
