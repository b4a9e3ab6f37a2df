// Package wire defines the RPC surface shared by trackersvc, peersvc,
// and their callers: method argument/reply structs and the sentinel
// strings the original XML-RPC service used in place of typed errors.
package wire

import "github.com/anacrolix/generics"

// Binary stands in for the XML-RPC <base64> convention: a reply value
// that's unambiguously "this is bytes", distinguishable from a string
// reply by its distinct registered type rather than by sniffing content.
type Binary struct {
	Data []byte
}

// Sentinel strings. The design keeps these as plain strings on the wire
// (matching the original service), but callers should treat them as a
// closed set of typed errors rather than pattern-matching prose.
//
// GetPeerAddress/GetFileChecksum report "not found" through a typed Found
// bool instead of a sentinel string (see their Reply structs below), so
// there is no ErrPeerNotFound here, and ErrChecksumNotFound is declared
// but GetFileChecksum never sends it. ErrChunkNotFound is what
// Peer.SendChunk replies for a missing chunk file.
const (
	ErrChecksumNotFound = "Checksum não encontrado."
	ErrChunkNotFound    = "Chunk não encontrado."
)

// ErrorPrefix marks a registration-time structural error, e.g. name
// conflicts, as opposed to a sentinel "not found" reply.
const ErrorPrefix = "Error: "

// RegisterArgs / RegisterReply — Tracker.Register.
type RegisterArgs struct {
	Name     string
	Endpoint string
}

type RegisterReply struct {
	Message string
}

// ListClientsArgs / ListClientsReply — Tracker.ListClients.
type ListClientsArgs struct{}

type ListClientsReply struct {
	Peers map[string]string
}

// GetPeerAddressArgs / GetPeerAddressReply — Tracker.GetPeerAddress.
type GetPeerAddressArgs struct {
	Name string
}

type GetPeerAddressReply struct {
	Endpoint string
	Found    bool
}

// HeartbeatArgs / HeartbeatReply — Tracker.Heartbeat.
type HeartbeatArgs struct {
	Name string
}

type HeartbeatReply struct {
	Ok bool
}

// ChunkTuple is the (chunk_id, chunk_name, checksum) tuple from spec.md §3.
type ChunkTuple struct {
	ChunkID   int
	ChunkName string
	Checksum  string
}

// RegisterChunksArgs / RegisterChunksReply — Tracker.RegisterChunks.
type RegisterChunksArgs struct {
	Peer         string
	File         string
	Chunks       []ChunkTuple
	FileChecksum generics.Option[string]
}

type RegisterChunksReply struct {
	Ok bool
}

// Advertisement is a (peer, chunk_id, chunk_name, checksum) tuple as
// returned by GetFileChunks.
type Advertisement struct {
	Peer      string
	ChunkID   int
	ChunkName string
	Checksum  string
}

// GetFileChunksArgs / GetFileChunksReply — Tracker.GetFileChunks.
type GetFileChunksArgs struct {
	File string
}

type GetFileChunksReply struct {
	Chunks []Advertisement
}

// GetFileChecksumArgs / GetFileChecksumReply — Tracker.GetFileChecksum.
type GetFileChecksumArgs struct {
	File string
}

type GetFileChecksumReply struct {
	Checksum string
	Found    bool
}

// SendChunkArgs / SendChunkReply — Peer.SendChunk.
type SendChunkArgs struct {
	ChunkName string
}

type SendChunkReply struct {
	Data  Binary
	Error string // non-empty on failure, mirrors the "Erro: ..." tagged string reply
}

// GetFilesArgs / GetFilesReply — Peer.GetFiles.
type GetFilesArgs struct{}

type GetFilesReply struct {
	Files []string
}

// ReceiveMessageArgs / ReceiveMessageReply — Peer.ReceiveMessage. Chat
// itself is out of scope; this exists only so the surface matches spec.md
// §6's method table.
type ReceiveMessageArgs struct {
	Message  string
	FromPeer string
}

type ReceiveMessageReply struct {
	Ok bool
}
