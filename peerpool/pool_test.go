package peerpool

import (
	"net"
	"net/http"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/require"
)

type echoService struct{}

func (echoService) Echo(args *string, reply *string) error {
	*reply = *args
	return nil
}

func startEchoServer(t *testing.T) string {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Echo", echoService{}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	go http.Serve(l, mux)

	return l.Addr().String()
}

func TestGetCachesConnection(t *testing.T) {
	addr := startEchoServer(t)
	p := New()

	c1, err := p.Get(addr)
	require.NoError(t, err)
	c2, err := p.Get(addr)
	require.NoError(t, err)
	require.Same(t, c1, c2)

	var reply string
	require.NoError(t, c1.Call("Echo.Echo", stringPtr("hi"), &reply))
	require.Equal(t, "hi", reply)
}

func TestDropForcesRedial(t *testing.T) {
	addr := startEchoServer(t)
	p := New()

	c1, err := p.Get(addr)
	require.NoError(t, err)
	p.Drop(addr)
	c2, err := p.Get(addr)
	require.NoError(t, err)
	require.NotSame(t, c1, c2)
}

func stringPtr(s string) *string { return &s }
