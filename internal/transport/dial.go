// Package transport sets up the plain TCP listeners and dialers used by
// trackersvc and peersvc. NAT traversal and UDP-based transports (uTP,
// DHT, WebRTC) are out of scope for this fabric, so unlike a full
// BitTorrent client this only ever speaks TCP.
package transport

import (
	"context"
	"net"
	"syscall"
	"time"
)

var listenConfig = net.ListenConfig{
	Control: func(network, address string, c syscall.RawConn) (err error) {
		return nil
	},
	// RPC calls manage their own liveness via heartbeat; no TCP keepalive needed.
	KeepAlive: -1,
}

// Listen opens a TCP listener on addr ("host:port"). Passing port 0 lets
// the kernel choose a free port; cmd/peer does not rely on that and picks
// its own random port in 10000-59999 before calling Listen.
func Listen(addr string) (net.Listener, error) {
	return listenConfig.Listen(context.Background(), "tcp", addr)
}

// Dialer returns a net.Dialer tuned for short-lived RPC connections: no
// IPv4/IPv6 fallback delay (the address is always already resolved to a
// concrete host:port) and a fixed per-dial timeout.
func Dialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:       timeout,
		FallbackDelay: -1,
		KeepAlive:     -1,
	}
}
