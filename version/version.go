// Package version provides the client identification strings printed by
// both binaries, so operators can tell which build they're running.
package version

var (
	// ClientName is logged by cmd/tracker and cmd/peer on startup.
	ClientName string
	// UserAgent is logged by cmd/peer alongside its tracker-registration
	// result.
	UserAgent string
)

func init() {
	ClientName = "swarmshare/0.1"
	UserAgent = "swarmshare/0.1 (+net/rpc)"
}
