// Package peerpool caches outbound net/rpc connections to other peers, so
// the download engine and heartbeat loop don't redial an endpoint on every
// call.
package peerpool

import (
	"bufio"
	"net/http"
	"net/rpc"
	"time"

	xsync "github.com/anacrolix/sync"
	"github.com/pkg/errors"

	"github.com/dannyzb/swarmshare/internal/transport"
)

// DialTimeout bounds how long Get waits to establish a new connection.
const DialTimeout = 30 * time.Second

// Pool is a mutex-guarded cache of *rpc.Client keyed by dial endpoint
// ("host:port"). It never expires entries itself — a dead connection
// surfaces as a Call error, and the caller should call Drop and retry.
type Pool struct {
	mu      xsync.Mutex
	clients map[string]*rpc.Client
}

// New builds an empty Pool.
func New() *Pool {
	return &Pool{clients: make(map[string]*rpc.Client)}
}

// Get returns a cached client for endpoint, dialing and caching one if
// none exists yet.
func (p *Pool) Get(endpoint string) (*rpc.Client, error) {
	p.mu.Lock()
	if c, ok := p.clients[endpoint]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	conn, err := dialHTTPTimeout(endpoint, DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing peer %q", endpoint)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		conn.Close()
		return c, nil
	}
	p.clients[endpoint] = conn
	return conn, nil
}

// Drop closes and evicts endpoint's cached client, if any, so the next
// Get redials.
func (p *Pool) Drop(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[endpoint]; ok {
		c.Close()
		delete(p.clients, endpoint)
	}
}

// CloseAll closes every cached connection.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for endpoint, c := range p.clients {
		c.Close()
		delete(p.clients, endpoint)
	}
}

// dialHTTPTimeout is rpc.DialHTTP with a bounded dial, since the stdlib
// version has no timeout knob of its own.
func dialHTTPTimeout(endpoint string, timeout time.Duration) (*rpc.Client, error) {
	conn, err := transport.Dialer(timeout).Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}

	_, err = conn.Write([]byte("CONNECT " + rpc.DefaultRPCPath + " HTTP/1.0\n\n"))
	if err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "CONNECT"})
	if err == nil && resp.Status == "200 Connected to Go RPC" {
		return rpc.NewClient(conn), nil
	}
	if err == nil {
		err = errors.Errorf("unexpected HTTP response: %s", resp.Status)
	}
	conn.Close()
	return nil, err
}
