package acquire

import (
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/libs/log"
	"github.com/Eleven711/ledgersync/p2p"
)

// recordingHost is a Host whose Trigger/OnTimeout calls are observable,
// for testing PeerSet in isolation from LedgerAcquire.
type recordingHost struct {
	mu        sync.Mutex
	triggers  []p2p.ID
	timeouts  int
	doneAfter int // IsDone reports true once triggers reaches this count; 0 means never
}

func (h *recordingHost) Trigger(peer p2p.ID) {
	h.mu.Lock()
	h.triggers = append(h.triggers, peer)
	h.mu.Unlock()
}

func (h *recordingHost) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doneAfter > 0 && len(h.triggers) >= h.doneAfter
}

func (h *recordingHost) OnTimeout() {
	h.mu.Lock()
	h.timeouts++
	h.mu.Unlock()
}

func (h *recordingHost) triggerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.triggers)
}

func (h *recordingHost) timeoutCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeouts
}

func newTestPeerSet(interval time.Duration, peers PeerProvider, host Host) *PeerSet {
	ps := NewPeerSet(crypto.Sum256([]byte("target")), peers, interval, log.TestingLogger())
	ps.bindHost(host)
	return ps
}

func TestPeerHasAddsNewCandidateAndTriggersOnce(t *testing.T) {
	host := &recordingHost{}
	ps := newTestPeerSet(time.Hour, newFakePeerSet(), host)

	ps.PeerHas("a")
	ps.PeerHas("a") // duplicate, must not trigger again

	if got := host.triggerCount(); got != 1 {
		t.Fatalf("expected exactly one trigger from one new candidate, got %d", got)
	}
	peers := ps.Peers()
	if len(peers) != 1 || peers[0] != "a" {
		t.Fatalf("unexpected candidate set: %v", peers)
	}
}

func TestBadPeerRemovesCandidate(t *testing.T) {
	host := &recordingHost{}
	ps := newTestPeerSet(time.Hour, newFakePeerSet(), host)
	ps.PeerHas("a")
	ps.BadPeer("a")

	if peers := ps.Peers(); len(peers) != 0 {
		t.Fatalf("expected no candidates left, got %v", peers)
	}
}

func TestLivePeerPrunesDisconnectedCandidates(t *testing.T) {
	alive := newFakePeer("alive", nil)
	dead := newFakePeer("dead", nil)
	dead.setRunning(false)

	host := &recordingHost{}
	ps := newTestPeerSet(time.Hour, newFakePeerSet(alive, dead), host)
	ps.PeerHas("dead")
	ps.PeerHas("alive")

	peer, ok := ps.LivePeer("")
	if !ok {
		t.Fatal("expected a live peer to be found")
	}
	if peer.ID() != "alive" {
		t.Fatalf("expected the alive peer, got %v", peer.ID())
	}

	remaining := ps.Peers()
	for _, id := range remaining {
		if id == "dead" {
			t.Fatalf("dead candidate should have been pruned, still present: %v", remaining)
		}
	}
}

func TestTimerDeclaresTimeoutAfterTwoSilentTicks(t *testing.T) {
	host := &recordingHost{}
	ps := newTestPeerSet(20*time.Millisecond, newFakePeerSet(), host)
	ps.PeerHas("a") // first trigger, and starts the timer

	// Poll for up to two seconds without ever calling MarkProgress: the
	// first tick should just retry, the second should report a stall.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && host.timeoutCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if host.timeoutCount() == 0 {
		t.Fatal("expected OnTimeout to fire after two silent ticks")
	}
}

func TestMarkProgressSuppressesTimeout(t *testing.T) {
	host := &recordingHost{}
	ps := newTestPeerSet(15*time.Millisecond, newFakePeerSet(), host)
	ps.PeerHas("a")

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ps.MarkProgress()
			}
		}
	}()

	time.Sleep(300 * time.Millisecond)
	close(stop)

	if host.timeoutCount() != 0 {
		t.Fatalf("continual progress should suppress timeouts, got %d", host.timeoutCount())
	}
}

func TestCancelLeavesNoTimerGoroutineBehind(t *testing.T) {
	defer leaktest.Check(t)()

	host := &recordingHost{}
	ps := newTestPeerSet(5*time.Millisecond, newFakePeerSet(), host)
	ps.PeerHas("a")
	time.Sleep(15 * time.Millisecond)
	ps.Cancel()
	// Give any timer goroutine in flight a chance to observe cancellation
	// and return before leaktest takes its snapshot.
	time.Sleep(20 * time.Millisecond)
}

func TestCancelStopsFurtherTimerActivity(t *testing.T) {
	host := &recordingHost{}
	ps := newTestPeerSet(10*time.Millisecond, newFakePeerSet(), host)
	ps.PeerHas("a")
	time.Sleep(25 * time.Millisecond)
	ps.Cancel()

	before := host.triggerCount()
	time.Sleep(100 * time.Millisecond)
	after := host.triggerCount()
	if after != before {
		t.Fatalf("no trigger should fire after Cancel: before=%d after=%d", before, after)
	}
}
