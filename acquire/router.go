package acquire

import (
	"fmt"

	"github.com/gogo/protobuf/proto"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/ledgerproto"
	"github.com/Eleven711/ledgersync/libs/log"
	"github.com/Eleven711/ledgersync/p2p"
	"github.com/Eleven711/ledgersync/shamap"
)

// GetLedgerHandler answers GetLedger requests with this node's own
// content, the other half of the protocol from LedgerAcquire: it's what
// lets this node serve the peers that are acquiring ledgers from it.
type GetLedgerHandler interface {
	// Header returns the encoded header of the ledger named by hash.
	Header(hash crypto.Hash) ([]byte, bool)
	// Node returns the encoded node at id, within the named ledger's
	// transaction tree or account-state tree according to itemType. A
	// zero-value id (NodeID.IsRoot()) asks for that tree's root.
	Node(hash crypto.Hash, itemType ledgerproto.ItemType, id shamap.NodeID) ([]byte, bool)
}

// Router dispatches inbound messages on p2p.LedgerChannel: GetLedger
// requests go to a GetLedgerHandler, LedgerData responses go to
// whichever registered LedgerAcquire is waiting on that hash.
type Router struct {
	logger   log.Logger
	registry *Registry
	handler  GetLedgerHandler
}

// NewRouter returns a Router serving handler's content and feeding
// responses into registry.
func NewRouter(registry *Registry, handler GetLedgerHandler, logger log.Logger) *Router {
	return &Router{registry: registry, handler: handler, logger: logger}
}

// Handle processes one inbound envelope. reply sends a message back to
// the peer that sent env; it's a function rather than a p2p.Peer so
// tests can intercept it without building a real connection.
func (r *Router) Handle(env p2p.Envelope, reply func(proto.Message) bool) {
	switch msg := env.Message.(type) {
	case *ledgerproto.GetLedger:
		r.handleGetLedger(env.From, msg, reply)
	case *ledgerproto.LedgerData:
		r.handleLedgerData(env.From, msg)
	default:
		r.logger.Debug("ignoring unexpected message on ledger channel", "peer", env.From, "type", fmt.Sprintf("%T", msg))
	}
}

func (r *Router) handleGetLedger(from p2p.ID, req *ledgerproto.GetLedger, reply func(proto.Message) bool) {
	hash, ok := crypto.HashFromBytes(req.LedgerHash)
	if !ok {
		return
	}

	resp := &ledgerproto.LedgerData{
		LedgerHash: req.LedgerHash,
		LedgerSeq:  req.LedgerSeq,
		ItemType:   req.ItemType,
	}

	if req.ItemType == ledgerproto.ItemTypeBase {
		if data, ok := r.handler.Header(hash); ok {
			resp.Nodes = append(resp.Nodes, &ledgerproto.LedgerNode{NodeData: data})
		}
	} else if len(req.NodeIds) == 0 {
		// An empty node list on a tree request means "send me the root".
		if data, ok := r.handler.Node(hash, req.ItemType, shamap.RootNodeID()); ok {
			resp.Nodes = append(resp.Nodes, &ledgerproto.LedgerNode{NodeData: data})
		}
	} else {
		for _, raw := range req.NodeIds {
			id, err := shamap.DecodeNodeID(raw)
			if err != nil {
				continue
			}
			if data, ok := r.handler.Node(hash, req.ItemType, id); ok {
				resp.Nodes = append(resp.Nodes, &ledgerproto.LedgerNode{NodeId: raw, NodeData: data})
			}
		}
	}

	if len(resp.Nodes) == 0 {
		return
	}
	reply(resp.Wrap())
}

// handleLedgerData validates resp's shape before touching any
// acquisition state: a BASE message must carry exactly one node, and a
// tree message must carry at least one node, each with node data. A
// tree node's id is not required: a node that carries none is installed
// as that tree's root. Anything else is a malformed peer response and is
// rejected before any of it is applied.
func (r *Router) handleLedgerData(from p2p.ID, resp *ledgerproto.LedgerData) bool {
	hash, ok := crypto.HashFromBytes(resp.LedgerHash)
	if !ok {
		return false
	}

	switch resp.ItemType {
	case ledgerproto.ItemTypeBase:
		if len(resp.Nodes) != 1 {
			return false
		}
	case ledgerproto.ItemTypeTxNode, ledgerproto.ItemTypeAsNode:
		if len(resp.Nodes) == 0 {
			return false
		}
		for _, n := range resp.Nodes {
			if len(n.NodeData) == 0 {
				return false
			}
		}
	default:
		return false
	}

	la, ok := r.registry.Find(hash)
	if !ok {
		r.logger.Debug("dropping ledger data for an acquisition we're not running", "peer", from, "hash", hash)
		return false
	}

	ids := make([]shamap.NodeID, len(resp.Nodes))
	for i, n := range resp.Nodes {
		id := shamap.RootNodeID()
		if len(n.NodeId) > 0 {
			decoded, err := shamap.DecodeNodeID(n.NodeId)
			if err != nil {
				return false
			}
			id = decoded
		}
		ids[i] = id
	}

	switch resp.ItemType {
	case ledgerproto.ItemTypeBase:
		return la.TakeBase(from, resp.Nodes[0].NodeData)
	case ledgerproto.ItemTypeTxNode:
		for i, n := range resp.Nodes {
			if !la.TakeTxNode(from, ids[i], n.NodeData) {
				return false
			}
		}
		return true
	case ledgerproto.ItemTypeAsNode:
		for i, n := range resp.Nodes {
			if !la.TakeAsNode(from, ids[i], n.NodeData) {
				return false
			}
		}
		return true
	}
	return false
}
