package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"
	"github.com/stretchr/testify/require"

	"github.com/dannyzb/swarmshare/wire"
)

type fakeClient struct {
	ok    atomic.Bool
	calls atomic.Int64
}

func (f *fakeClient) Call(method string, args, reply any) error {
	f.calls.Add(1)
	reply.(*wire.HeartbeatReply).Ok = f.ok.Load()
	return nil
}

func TestRunPeerLoopStopsOnContextCancel(t *testing.T) {
	client := &fakeClient{}
	client.ok.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	var shutdown chansync.SetOnce

	done := make(chan struct{})
	go func() {
		RunPeerLoop(ctx, client, "alice", 5*time.Millisecond, &shutdown, log.Default)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeerLoop did not stop after context cancel")
	}
	require.False(t, shutdown.IsSet())
	require.Greater(t, client.calls.Load(), int64(0))
}

func TestRunPeerLoopShutsDownAfterConsecutiveFailures(t *testing.T) {
	client := &fakeClient{}
	client.ok.Store(false)

	var shutdown chansync.SetOnce
	done := make(chan struct{})
	go func() {
		RunPeerLoop(context.Background(), client, "alice", 5*time.Millisecond, &shutdown, log.Default)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeerLoop did not shut down after repeated failures")
	}
	require.True(t, shutdown.IsSet())
	require.GreaterOrEqual(t, client.calls.Load(), int64(MaxConsecutiveFailures))
}

type fakeSweeper struct {
	n atomic.Int64
}

func (f *fakeSweeper) Sweep(now time.Time) int {
	f.n.Add(1)
	return 1
}

func TestRunSweepLoopCallsSweepUntilCancelled(t *testing.T) {
	sw := &fakeSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	var expired atomic.Int64
	done := make(chan struct{})
	go func() {
		RunSweepLoop(ctx, sw, 5*time.Millisecond, func(n int) { expired.Add(int64(n)) })
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweepLoop did not stop after context cancel")
	}
	require.Greater(t, sw.n.Load(), int64(0))
	require.Greater(t, expired.Load(), int64(0))
}
