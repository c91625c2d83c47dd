// Package p2p defines the minimal peer-facing surface the acquire package
// needs: an identity to track a candidate source by, a way to hand it a
// message, and a way to hear what it sends back.
package p2p

import "github.com/gogo/protobuf/proto"

// ID identifies a peer for the lifetime of a connection. It's treated as
// an opaque value: PeerSet never parses it, only compares it.
type ID string

// Peer is everything the ledger acquisition subsystem needs from a
// connected node. Implementations wrap whatever transport-level
// connection object a real node keeps; none of that is this package's
// concern.
type Peer interface {
	ID() ID

	// IsRunning reports whether the underlying connection is still up.
	// PeerSet consults this before trusting a cached reference instead
	// of calling Send and discovering the hard way that the peer is
	// gone.
	IsRunning() bool

	// Send delivers msg on the given channel. It returns false if the
	// peer's send queue is full or the connection has already gone
	// down; callers must treat that the same as a peer that never
	// answers.
	Send(chID ChannelID, msg proto.Message) bool
}

// ChannelID picks which logical stream a message travels on, mirroring
// how a real multiplexed peer connection separates reactors.
type ChannelID byte

// LedgerChannel carries every GetLedger/LedgerData exchange.
const LedgerChannel ChannelID = 0x20

// Envelope pairs an inbound message with the peer it arrived from, the
// shape every reactor's Receive callback is handed.
type Envelope struct {
	From    ID
	Message proto.Message
}
