// Package acquire implements the request/response state machine that
// reconstructs a ledger from untrusted peers: PeerSet tracks which
// peers claim to have a target and drives a retry timer, LedgerAcquire
// layers the actual header/tree reconstruction on top of it, Registry
// deduplicates concurrent acquisitions of the same ledger, and Router
// dispatches inbound wire messages to the right acquisition.
package acquire

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/libs/log"
	tmrand "github.com/Eleven711/ledgersync/libs/rand"
	"github.com/Eleven711/ledgersync/p2p"
)

// PeerProvider resolves a peer ID to the live connection it names, the
// way PeerSet finds out whether a candidate it only holds by ID is
// still worth talking to.
type PeerProvider interface {
	PeerByID(id p2p.ID) (p2p.Peer, bool)
}

// Host is implemented by whatever owns a PeerSet's target (LedgerAcquire,
// in this package) so PeerSet can drive it without knowing what it is.
type Host interface {
	// Trigger reconciles missing state and issues new requests. peer is
	// the one whose event caused the call, or the zero ID when the
	// timer is what's calling.
	Trigger(peer p2p.ID)
	// IsDone reports whether the acquisition has finished, successfully
	// or not, so PeerSet knows to stop retrying and stop its timer.
	IsDone() bool
	// OnTimeout is called when no peer has made progress for two
	// consecutive timer ticks.
	OnTimeout()
}

// PeerSet tracks the candidate peers for a single target and the retry
// timer driving requests to them. It never owns a peer's connection: it
// holds peer IDs and resolves them through a PeerProvider on every use,
// so a peer that disconnects mid-acquisition is simply pruned the next
// time it's looked up, the same way a weak reference quietly expires.
//
// PeerSet and the Host that wraps it (LedgerAcquire) share exactly one
// mutex. Every exported method takes it once at the top; none of them
// ever call another exported, lock-taking method while it's held — they
// call the matching "Locked" helper instead. That gives the same
// reentrant-from-a-single-owner discipline a recursive mutex would, using
// only a plain sync.Mutex.
type PeerSet struct {
	mu sync.Mutex

	peers  PeerProvider
	host   Host
	logger log.Logger

	hash crypto.Hash

	peerIDs         []p2p.ID
	progress        bool
	noProgressTicks int
	timerRunning    bool
	timer           *time.Timer
	timerInterval   time.Duration

	cancelled int32 // atomic
}

// NewPeerSet returns a PeerSet tracking candidates for hash. bindHost
// must be called before any of PeerSet's methods that touch host.
func NewPeerSet(hash crypto.Hash, peers PeerProvider, timerInterval time.Duration, logger log.Logger) *PeerSet {
	return &PeerSet{
		peers:         peers,
		hash:          hash,
		timerInterval: timerInterval,
		logger:        logger,
	}
}

func (ps *PeerSet) bindHost(h Host) {
	ps.host = h
}

// Hash is the target this PeerSet is chasing.
func (ps *PeerSet) Hash() crypto.Hash {
	return ps.hash
}

func (ps *PeerSet) addPeerLocked(id p2p.ID) bool {
	for _, p := range ps.peerIDs {
		if p == id {
			return false
		}
	}
	ps.peerIDs = append(ps.peerIDs, id)
	return true
}

func (ps *PeerSet) removePeerLocked(id p2p.ID) {
	for i, p := range ps.peerIDs {
		if p == id {
			ps.peerIDs = append(ps.peerIDs[:i], ps.peerIDs[i+1:]...)
			return
		}
	}
}

// PeerHas records that id claims to have this PeerSet's target. If id is
// a new candidate, the host gets an immediate chance to use it.
func (ps *PeerSet) PeerHas(id p2p.ID) {
	ps.mu.Lock()
	isNew := ps.addPeerLocked(id)
	ps.mu.Unlock()

	if !isNew || ps.host.IsDone() {
		return
	}
	ps.host.Trigger(id)
	ps.EnsureTimer()
}

// BadPeer drops id from the candidate set, typically because data it
// sent failed hash validation.
func (ps *PeerSet) BadPeer(id p2p.ID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.removePeerLocked(id)
}

// Peers returns a snapshot of the current candidate IDs.
func (ps *PeerSet) Peers() []p2p.ID {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]p2p.ID, len(ps.peerIDs))
	copy(out, ps.peerIDs)
	return out
}

func (ps *PeerSet) livePeerLocked(preferred p2p.ID) (p2p.Peer, bool) {
	if preferred != "" {
		if peer, ok := ps.peers.PeerByID(preferred); ok && peer.IsRunning() {
			return peer, true
		}
	}
	live := ps.peerIDs[:0]
	var chosen p2p.Peer
	for _, id := range ps.peerIDs {
		peer, ok := ps.peers.PeerByID(id)
		if !ok || !peer.IsRunning() {
			continue
		}
		live = append(live, id)
		if chosen == nil {
			chosen = peer
		}
	}
	ps.peerIDs = live
	if chosen == nil {
		return nil, false
	}
	return chosen, true
}

// LivePeer returns a connected peer to request from, preferring
// preferred if it's still reachable and otherwise falling back to the
// first candidate that still is. Candidates found to be disconnected are
// pruned along the way.
func (ps *PeerSet) LivePeer(preferred p2p.ID) (p2p.Peer, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.livePeerLocked(preferred)
}

func (ps *PeerSet) markProgressLocked() {
	ps.progress = true
}

// MarkProgress records that new, validated data arrived, clearing the
// stall counter the next time the timer fires.
func (ps *PeerSet) MarkProgress() {
	ps.mu.Lock()
	ps.markProgressLocked()
	ps.mu.Unlock()
}

// jitteredInterval adds up to 20% random jitter on top of timerInterval,
// so that many PeerSets armed around the same instant - every tree this
// node is chasing from the same stalled peer, say - don't all re-fire
// their retry in lockstep and pile onto whichever peer answers next.
func (ps *PeerSet) jitteredInterval() time.Duration {
	if ps.timerInterval <= 0 {
		return ps.timerInterval
	}
	jitter := time.Duration(tmrand.NewRand().Int63n(int64(ps.timerInterval)/5 + 1))
	return ps.timerInterval + jitter
}

func (ps *PeerSet) ensureTimerLocked() {
	if ps.timerRunning || atomic.LoadInt32(&ps.cancelled) != 0 {
		return
	}
	ps.timerRunning = true
	ps.timer = time.AfterFunc(ps.jitteredInterval(), ps.onTimerFired)
}

// EnsureTimer starts the retry timer if it isn't already running.
func (ps *PeerSet) EnsureTimer() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.ensureTimerLocked()
}

// onTimerFired is the retry tick. A timer started before cancellation
// can still fire after it; cancelled is checked before touching
// anything else so that race is harmless rather than a use of freed
// state.
func (ps *PeerSet) onTimerFired() {
	if atomic.LoadInt32(&ps.cancelled) != 0 {
		return
	}

	ps.mu.Lock()
	ps.timerRunning = false
	progressed := ps.progress
	ps.progress = false
	if progressed {
		ps.noProgressTicks = 0
	} else {
		ps.noProgressTicks++
	}
	noProgressTicks := ps.noProgressTicks
	// Only declare a stall after two consecutive silent ticks: one quiet
	// tick just means the last request is still in flight.
	timedOut := ps.noProgressTicks >= 2
	ps.mu.Unlock()

	if !progressed {
		ps.logger.Warn("timeout acquiring target", "hash", ps.hash, "timeouts", noProgressTicks)
	}

	if atomic.LoadInt32(&ps.cancelled) != 0 || ps.host.IsDone() {
		return
	}
	if timedOut {
		ps.host.OnTimeout()
	}
	ps.host.Trigger("")

	if !ps.host.IsDone() {
		ps.EnsureTimer()
	}
}

func (ps *PeerSet) cancelLocked() {
	atomic.StoreInt32(&ps.cancelled, 1)
	if ps.timer != nil {
		ps.timer.Stop()
	}
}

// Cancel stops the retry timer for good and marks this PeerSet as
// dropped. Any timer callback already in flight becomes a no-op instead
// of reaching into a finished acquisition, emulating the effect of a
// weak self-reference that's just gone stale.
func (ps *PeerSet) Cancel() {
	ps.mu.Lock()
	ps.cancelLocked()
	ps.mu.Unlock()
}
