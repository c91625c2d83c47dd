package acquire

import (
	"time"

	"github.com/google/uuid"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/ledger"
	"github.com/Eleven711/ledgersync/ledgerproto"
	"github.com/Eleven711/ledgersync/libs/log"
	"github.com/Eleven711/ledgersync/p2p"
	"github.com/Eleven711/ledgersync/shamap"
	"github.com/Eleven711/ledgersync/store"
)

// maxNodesPerRequest caps how many node identifiers a single GetLedger
// asks for at once, the same way a real request is kept small enough
// that one dropped response doesn't waste a huge amount of retried work.
const maxNodesPerRequest = 128

type phase int

const (
	phaseNeedBase phase = iota
	phaseNeedTrees
	phaseComplete
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseNeedBase:
		return "NEED_BASE"
	case phaseNeedTrees:
		return "NEED_TREES"
	case phaseComplete:
		return "COMPLETE"
	case phaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// CompletionFunc is called once a LedgerAcquire finishes, successfully
// or not. It never runs while the acquisition's lock is held.
type CompletionFunc func(la *LedgerAcquire, success bool)

// LedgerAcquire drives a single ledger's reconstruction to completion:
// first its header, then its transaction tree and account-state tree,
// using PeerSet to track candidate peers and retry on a timer.
type LedgerAcquire struct {
	*PeerSet

	// sessionID disambiguates this acquisition's log lines from any
	// other one chasing the same hash across a restart, since the hash
	// itself repeats forever but a given attempt to fetch it shouldn't
	// be confused with an earlier one.
	sessionID string

	logger  log.Logger
	metrics *Metrics
	store   store.NodeStore

	// pathIndex may be nil. When set, every node this acquisition installs
	// from a peer's response is also recorded there keyed by its path
	// within this ledger's tree, so a by-path request for it can be
	// answered later without rewalking the tree. Nodes that GetMissingNodes
	// resolves from the store through the filter are not recorded there.
	pathIndex *store.PathIndex

	phase      phase
	header     ledger.Header
	haveHeader bool

	txTree   *shamap.Tree
	asTree   *shamap.Tree
	txFilter shamap.Filter
	asFilter shamap.Filter

	onComplete []CompletionFunc
	doneCalled bool
	succeeded  bool
}

// NewLedgerAcquire returns a LedgerAcquire chasing the ledger identified
// by hash. It does not send any requests on its own; the first call to
// Trigger or PeerHas does that.
func NewLedgerAcquire(hash crypto.Hash, peers PeerProvider, st store.NodeStore, pathIndex *store.PathIndex, timerInterval time.Duration, logger log.Logger, metrics *Metrics) *LedgerAcquire {
	if metrics == nil {
		metrics = NopMetrics()
	}
	la := &LedgerAcquire{
		PeerSet:   NewPeerSet(hash, peers, timerInterval, logger),
		sessionID: uuid.NewString(),
		logger:    logger,
		metrics:   metrics,
		store:     st,
		pathIndex: pathIndex,
		phase:     phaseNeedBase,
	}
	la.PeerSet.bindHost(la)
	la.logger.Debug("starting ledger acquisition", "hash", hash, "session", la.sessionID)
	return la
}

// SessionID identifies this particular attempt to acquire Hash(), for
// correlating log lines across a single run.
func (la *LedgerAcquire) SessionID() string {
	return la.sessionID
}

// Phase reports which stage of reconstruction this acquisition is in.
func (la *LedgerAcquire) Phase() string {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.phase.String()
}

// Done reports whether this acquisition finished successfully, and if
// so, the header it reconstructed.
func (la *LedgerAcquire) Done() (ledger.Header, bool) {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.header, la.phase == phaseComplete
}

// Failed reports whether this acquisition gave up without completing.
func (la *LedgerAcquire) Failed() bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.phase == phaseFailed
}

// IsDone implements Host.
func (la *LedgerAcquire) IsDone() bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.phase == phaseComplete || la.phase == phaseFailed
}

// OnTimeout implements Host. It's informational only: the retry itself
// happens through the Trigger call PeerSet makes right after.
func (la *LedgerAcquire) OnTimeout() {
	la.mu.Lock()
	peer, ok := la.livePeerLocked("")
	hash := la.hash
	la.mu.Unlock()
	if ok {
		la.logger.Debug("ledger acquisition stalled, retrying", "hash", hash, "peer", peer.ID())
	} else {
		la.logger.Debug("ledger acquisition stalled with no live peers", "hash", hash)
	}
}

// AddOnComplete registers cb to run once this acquisition finishes. If
// it has already finished, cb still runs — asynchronously, but it runs.
// A caller that subscribes after completion must see the same outcome
// everyone else did, not be silently forgotten because it arrived late.
func (la *LedgerAcquire) AddOnComplete(cb CompletionFunc) {
	la.mu.Lock()
	if !la.doneCalled {
		la.onComplete = append(la.onComplete, cb)
		la.mu.Unlock()
		return
	}
	success := la.succeeded
	la.mu.Unlock()
	go cb(la, success)
}

// Trigger implements Host and is also the spec's primary entry point:
// reconcile what's missing against what's installed, and send whatever
// requests that implies.
func (la *LedgerAcquire) Trigger(preferred p2p.ID) {
	la.mu.Lock()
	defer la.mu.Unlock()
	la.triggerLocked(preferred)
}

func (la *LedgerAcquire) triggerLocked(preferred p2p.ID) {
	if la.phase == phaseComplete || la.phase == phaseFailed {
		return
	}

	if !la.haveHeader {
		peer, ok := la.livePeerLocked(preferred)
		if !ok {
			return
		}
		la.sendRequestLocked(peer, ledgerproto.ItemTypeBase, nil)
		return
	}

	if la.phase == phaseNeedBase {
		la.phase = phaseNeedTrees
		la.initTreesLocked()
	}

	// A tree with no root installed yet reports no missing nodes at all
	// (there's nothing to walk from), which must not be mistaken for
	// "fully resolved": the root itself is always the first thing asked
	// for, before GetMissingNodes is even consulted.
	needTxRoot := !la.txTree.RootHash().IsZero() && !la.txTree.HasRoot()
	needAsRoot := !la.asTree.RootHash().IsZero() && !la.asTree.HasRoot()

	var txMissing, asMissing []shamap.NodeID
	if !needTxRoot {
		txMissing = la.txTree.GetMissingNodes(maxNodesPerRequest, la.txFilter)
	}
	if !needAsRoot {
		asMissing = la.asTree.GetMissingNodes(maxNodesPerRequest, la.asFilter)
	}

	if !needTxRoot && !needAsRoot && len(txMissing) == 0 && len(asMissing) == 0 {
		la.completeLocked(la.txTree.IsValid() && la.asTree.IsValid())
		return
	}

	peer, ok := la.livePeerLocked(preferred)
	if !ok {
		return
	}
	if needTxRoot {
		la.sendRequestLocked(peer, ledgerproto.ItemTypeTxNode, nil)
	} else if len(txMissing) > 0 {
		la.sendRequestLocked(peer, ledgerproto.ItemTypeTxNode, txMissing)
	}
	if needAsRoot {
		la.sendRequestLocked(peer, ledgerproto.ItemTypeAsNode, nil)
	} else if len(asMissing) > 0 {
		la.sendRequestLocked(peer, ledgerproto.ItemTypeAsNode, asMissing)
	}
}

func (la *LedgerAcquire) initTreesLocked() {
	la.txTree = shamap.NewTree(la.header.TxHash)
	la.asTree = shamap.NewTree(la.header.AccountHash)
	la.txFilter = &storeFilter{st: la.store}
	la.asFilter = &storeFilter{st: la.store}
}

// TakeBase installs the ledger header fetched from a peer, provided it
// hashes to this acquisition's target.
func (la *LedgerAcquire) TakeBase(from p2p.ID, data []byte) bool {
	la.mu.Lock()
	defer la.mu.Unlock()

	if la.haveHeader {
		return true
	}
	header, err := ledger.DecodeHeader(data)
	if err != nil || header.Hash() != la.hash {
		return false
	}

	la.header = header
	la.haveHeader = true
	la.store.Put(data)
	la.markProgressLocked()
	la.metrics.HeadersAcquired.Add(1)
	la.triggerLocked(from)
	return true
}

// TakeTxNode installs a node of the transaction tree at id.
func (la *LedgerAcquire) TakeTxNode(from p2p.ID, id shamap.NodeID, data []byte) bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.takeNodeLocked(from, la.txTree, la.header.TxHash, id, data)
}

// TakeAsNode installs a node of the account-state tree at id.
func (la *LedgerAcquire) TakeAsNode(from p2p.ID, id shamap.NodeID, data []byte) bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.takeNodeLocked(from, la.asTree, la.header.AccountHash, id, data)
}

func (la *LedgerAcquire) takeNodeLocked(from p2p.ID, tree *shamap.Tree, root crypto.Hash, id shamap.NodeID, data []byte) bool {
	if tree == nil {
		return false
	}
	var ok bool
	if id.IsRoot() {
		ok = tree.AddRootNode(data)
	} else {
		ok = tree.AddKnownNode(id, data)
	}
	if !ok {
		return false
	}
	content := la.store.Put(data)
	if la.pathIndex != nil {
		la.pathIndex.Record(root, id, content)
	}
	la.markProgressLocked()
	la.metrics.NodesAcquired.Add(1)
	la.triggerLocked(from)
	return true
}

func (la *LedgerAcquire) sendRequestLocked(peer p2p.Peer, itemType ledgerproto.ItemType, nodeIDs []shamap.NodeID) {
	req := &ledgerproto.GetLedger{
		LedgerHash: la.hash.Bytes(),
		ItemType:   itemType,
	}
	if la.haveHeader {
		req.LedgerSeq = la.header.Seq
	}
	for _, id := range nodeIDs {
		req.NodeIds = append(req.NodeIds, id.Bytes())
	}
	if !peer.Send(p2p.LedgerChannel, req.Wrap()) {
		la.removePeerLocked(peer.ID())
		return
	}
	la.metrics.RequestsSent.Add(1)
}

// completeLocked transitions the acquisition to its terminal state and
// fires every registered completion callback. Callbacks run off the
// acquisition's goroutine and without its lock held, so a callback that
// turns around and calls back into this LedgerAcquire — or registers
// another completion callback of its own — can't deadlock against it.
func (la *LedgerAcquire) completeLocked(success bool) {
	if la.phase == phaseComplete || la.phase == phaseFailed {
		return
	}
	if success {
		la.phase = phaseComplete
		la.metrics.Completed.Add(1)
	} else {
		la.phase = phaseFailed
		la.metrics.Failed.Add(1)
	}
	la.succeeded = success
	la.doneCalled = true
	la.cancelLocked()

	callbacks := la.onComplete
	la.onComplete = nil
	go func() {
		for _, cb := range callbacks {
			cb(la, success)
		}
	}()
}
