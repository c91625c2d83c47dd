package p2p

import (
	"fmt"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/gorilla/websocket"
)

// WSPeer is a Peer reached over a plain websocket connection: one frame
// per Send, the channel ID as its first byte and a protobuf-marshalled
// message as the rest. It's a minimal stand-in for whatever framed
// transport a real deployment would use.
type WSPeer struct {
	id   ID
	conn *websocket.Conn

	mu      sync.Mutex
	running bool
}

// DialWSPeer opens a websocket connection to addr and wraps it as a Peer
// identified by id.
func DialWSPeer(id ID, addr string) (*WSPeer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing peer %s at %s: %w", id, addr, err)
	}
	return NewWSPeer(id, conn), nil
}

// NewWSPeer wraps an already-established websocket connection.
func NewWSPeer(id ID, conn *websocket.Conn) *WSPeer {
	return &WSPeer{id: id, conn: conn, running: true}
}

// ID implements Peer.
func (p *WSPeer) ID() ID { return p.id }

// IsRunning implements Peer.
func (p *WSPeer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Send implements Peer: it marshals msg and writes it as one binary
// websocket frame, channel ID first.
func (p *WSPeer) Send(chID ChannelID, msg proto.Message) bool {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return false
	}
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(chID)
	copy(frame[1:], payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return false
	}
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		p.running = false
		return false
	}
	return true
}

// Close marks the peer dead and closes the underlying connection. A
// Peer that has been closed reports IsRunning() == false from then on,
// the same signal PeerSet uses to prune it on its next scan.
func (p *WSPeer) Close() error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return p.conn.Close()
}

// WSPeerSet resolves peer identities to live websocket connections. It
// implements the PeerProvider capability that acquire.PeerSet depends
// on: acquisitions never hold a Peer directly, only an ID, and ask a
// PeerProvider to resolve it each time they need to actually send.
type WSPeerSet struct {
	mu    sync.Mutex
	peers map[ID]*WSPeer
}

// NewWSPeerSet returns an empty WSPeerSet.
func NewWSPeerSet() *WSPeerSet {
	return &WSPeerSet{peers: make(map[ID]*WSPeer)}
}

// Add registers peer under its own ID, replacing and closing any
// previous connection under the same ID.
func (s *WSPeerSet) Add(peer *WSPeer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.peers[peer.ID()]; ok && old != peer {
		old.Close()
	}
	s.peers[peer.ID()] = peer
}

// Remove drops id, closing its connection if present.
func (s *WSPeerSet) Remove(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if peer, ok := s.peers[id]; ok {
		peer.Close()
		delete(s.peers, id)
	}
}

// PeerByID implements acquire.PeerProvider.
func (s *WSPeerSet) PeerByID(id ID) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peer, ok := s.peers[id]
	if !ok || !peer.IsRunning() {
		return nil, false
	}
	return peer, true
}
