package acquire

import (
	"sync"
	"time"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/libs/log"
	"github.com/Eleven711/ledgersync/p2p"
	"github.com/Eleven711/ledgersync/store"
)

// CompletionRecorder is notified of the outcome of every acquisition
// this registry ever finishes, independent of any particular caller's
// own completion callback — typically wired to an audit trail rather
// than to anything that influences the acquisition itself.
type CompletionRecorder interface {
	RecordCompletion(hash crypto.Hash, succeeded bool, finishedAt time.Time) error
}

// Registry deduplicates concurrent acquisitions of the same ledger:
// every caller chasing a given hash shares one LedgerAcquire instead of
// each running its own independent, redundant fetch.
//
// Registry's mutex is always acquired before touching any individual
// LedgerAcquire's mutex, never the reverse. FindOrCreate registers its
// completion hook on a freshly built acquisition while still holding
// the registry's mutex; every other call into an acquisition is made
// after that mutex is released.
type Registry struct {
	mu   sync.Mutex
	live map[crypto.Hash]*LedgerAcquire

	peers         PeerProvider
	store         store.NodeStore
	pathIndex     *store.PathIndex
	recorder      CompletionRecorder
	logger        log.Logger
	metrics       *Metrics
	timerInterval time.Duration
}

// SetCompletionRecorder arranges for every future completion to also be
// reported to rec. It has no effect on acquisitions already in flight
// when it's called other than their eventual completion.
func (r *Registry) SetCompletionRecorder(rec CompletionRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// NewRegistry returns an empty Registry. peers and st are shared by
// every LedgerAcquire it creates. pathIndex may be nil; when it isn't,
// every node an acquisition installs from a peer's response is also
// recorded there so this node can later answer by-path requests for
// ledgers it finished fetching, not just by-hash ones. Nodes a tree
// resolves from st instead of from a peer are not recorded there.
func NewRegistry(peers PeerProvider, st store.NodeStore, pathIndex *store.PathIndex, timerInterval time.Duration, logger log.Logger, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Registry{
		live:          make(map[crypto.Hash]*LedgerAcquire),
		peers:         peers,
		store:         st,
		pathIndex:     pathIndex,
		logger:        logger,
		metrics:       metrics,
		timerInterval: timerInterval,
	}
}

// FindOrCreate returns the in-flight acquisition for hash, creating one
// if this is the first caller to ask for it.
func (r *Registry) FindOrCreate(hash crypto.Hash) *LedgerAcquire {
	r.mu.Lock()
	if la, ok := r.live[hash]; ok {
		r.mu.Unlock()
		return la
	}
	la := NewLedgerAcquire(hash, r.peers, r.store, r.pathIndex, r.timerInterval, r.logger, r.metrics)
	la.AddOnComplete(func(_ *LedgerAcquire, succeeded bool) {
		r.recordCompletion(hash, succeeded)
		r.drop(hash)
	})
	r.live[hash] = la
	r.metrics.InFlight.Add(1)
	r.mu.Unlock()

	// Arm the timer only once la is published: before this, a reference to
	// it exists nowhere else, so an earlier timer fire could never have
	// observed it anyway, but we wait until after to stay off the registry
	// lock while doing it.
	la.EnsureTimer()
	return la
}

// Find returns the in-flight acquisition for hash without creating one.
func (r *Registry) Find(hash crypto.Hash) (*LedgerAcquire, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	la, ok := r.live[hash]
	return la, ok
}

// Has reports whether hash is currently being acquired.
func (r *Registry) Has(hash crypto.Hash) bool {
	_, ok := r.Find(hash)
	return ok
}

// NotifyPeerHas records that peer claims to have hash, starting an
// acquisition for it if none is already running.
func (r *Registry) NotifyPeerHas(hash crypto.Hash, peer p2p.ID) *LedgerAcquire {
	la := r.FindOrCreate(hash)
	la.PeerHas(peer)
	return la
}

// Drop cancels and removes hash's acquisition, if any, without waiting
// for it to finish — used when the ledger it's chasing has been
// superseded and is no longer wanted.
func (r *Registry) Drop(hash crypto.Hash) {
	r.mu.Lock()
	la, ok := r.live[hash]
	delete(r.live, hash)
	r.mu.Unlock()

	if !ok {
		return
	}
	la.Cancel()
	r.metrics.InFlight.Add(-1)
}

func (r *Registry) recordCompletion(hash crypto.Hash, succeeded bool) {
	r.mu.Lock()
	rec := r.recorder
	r.mu.Unlock()
	if rec == nil {
		return
	}
	if err := rec.RecordCompletion(hash, succeeded, time.Now()); err != nil {
		r.logger.Error("recording acquisition completion", "hash", hash, "err", err)
	}
}

func (r *Registry) drop(hash crypto.Hash) {
	r.mu.Lock()
	_, ok := r.live[hash]
	delete(r.live, hash)
	r.mu.Unlock()

	if ok {
		r.metrics.InFlight.Add(-1)
	}
}
