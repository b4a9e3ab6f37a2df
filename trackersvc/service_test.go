package trackersvc

import (
	"net"
	"net/rpc"
	"testing"
	"time"

	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dannyzb/swarmshare/metrics"
	"github.com/dannyzb/swarmshare/trackerdir"
	"github.com/dannyzb/swarmshare/wire"
)

func startTestTracker(t *testing.T) *rpc.Client {
	t.Helper()
	dir := trackerdir.New(30*time.Second, log.Default)
	m := metrics.NewTracker(prometheus.NewRegistry())
	svc := New(dir, m, log.Default)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go Serve(l, svc)
	t.Cleanup(func() { l.Close() })

	client, err := rpc.DialHTTP("tcp", l.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRegisterAndListClientsOverRPC(t *testing.T) {
	client := startTestTracker(t)

	var reply wire.RegisterReply
	require.NoError(t, client.Call("Tracker.Register", &wire.RegisterArgs{Name: "alice", Endpoint: "localhost:1"}, &reply))
	require.Equal(t, "OK", reply.Message)

	var list wire.ListClientsReply
	require.NoError(t, client.Call("Tracker.ListClients", &wire.ListClientsArgs{}, &list))
	require.Equal(t, map[string]string{"alice": "localhost:1"}, list.Peers)
}

func TestRegisterNameConflictOverRPC(t *testing.T) {
	client := startTestTracker(t)

	var reply wire.RegisterReply
	require.NoError(t, client.Call("Tracker.Register", &wire.RegisterArgs{Name: "alice", Endpoint: "a"}, &reply))
	require.NoError(t, client.Call("Tracker.Register", &wire.RegisterArgs{Name: "alice", Endpoint: "b"}, &reply))
	require.Contains(t, reply.Message, wire.ErrorPrefix)
}

func TestRegisterChunksAndGetFileChunksOverRPC(t *testing.T) {
	client := startTestTracker(t)

	var reg wire.RegisterReply
	require.NoError(t, client.Call("Tracker.Register", &wire.RegisterArgs{Name: "alice", Endpoint: "a"}, &reg))

	rcArgs := wire.RegisterChunksArgs{
		Peer: "alice",
		File: "f.txt",
		Chunks: []wire.ChunkTuple{
			{ChunkID: 0, ChunkName: "f.txt.chunk0", Checksum: "sum0"},
		},
		FileChecksum: g.Some("wholesum"),
	}
	var rc wire.RegisterChunksReply
	require.NoError(t, client.Call("Tracker.RegisterChunks", &rcArgs, &rc))
	require.True(t, rc.Ok)

	var chunks wire.GetFileChunksReply
	require.NoError(t, client.Call("Tracker.GetFileChunks", &wire.GetFileChunksArgs{File: "f.txt"}, &chunks))
	require.Len(t, chunks.Chunks, 1)
	require.Equal(t, "alice", chunks.Chunks[0].Peer)

	var sum wire.GetFileChecksumReply
	require.NoError(t, client.Call("Tracker.GetFileChecksum", &wire.GetFileChecksumArgs{File: "f.txt"}, &sum))
	require.True(t, sum.Found)
	require.Equal(t, "wholesum", sum.Checksum)
}

func TestGetPeerAddressNotFoundOverRPC(t *testing.T) {
	client := startTestTracker(t)

	var reply wire.GetPeerAddressReply
	require.NoError(t, client.Call("Tracker.GetPeerAddress", &wire.GetPeerAddressArgs{Name: "ghost"}, &reply))
	require.False(t, reply.Found)
}
