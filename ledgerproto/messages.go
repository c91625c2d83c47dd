// Package ledgerproto defines the wire messages peers exchange while a
// ledger is being acquired: GetLedger requests and the LedgerData
// responses they draw. Both are plain structs carrying protobuf struct
// tags so gogo/protobuf's reflection-based codec can marshal them
// without a generated .pb.go file.
package ledgerproto

import (
	"fmt"

	"github.com/gogo/protobuf/proto"

	"github.com/Eleven711/ledgersync/p2p"
)

// ItemType says which part of a ledger a GetLedger request or LedgerData
// response is about.
type ItemType int32

const (
	ItemTypeBase   ItemType = 0 // the ledger header
	ItemTypeTxNode ItemType = 1 // a node from the transaction tree
	ItemTypeAsNode ItemType = 2 // a node from the account-state tree
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeBase:
		return "BASE"
	case ItemTypeTxNode:
		return "TX_NODE"
	case ItemTypeAsNode:
		return "AS_NODE"
	default:
		return fmt.Sprintf("ITEM_TYPE(%d)", t)
	}
}

// GetLedger asks a peer for the base, or for up to len(NodeIds) specific
// nodes, of the ledger identified by LedgerHash.
type GetLedger struct {
	LedgerHash []byte   `protobuf:"bytes,1,opt,name=ledger_hash,proto3" json:"ledger_hash,omitempty"`
	LedgerSeq  uint32   `protobuf:"varint,2,opt,name=ledger_seq,proto3" json:"ledger_seq,omitempty"`
	ItemType   ItemType `protobuf:"varint,3,opt,name=item_type,proto3,enum=ledgerproto.ItemType" json:"item_type,omitempty"`
	NodeIds    [][]byte `protobuf:"bytes,4,rep,name=node_ids,proto3" json:"node_ids,omitempty"`
}

func (m *GetLedger) Reset()         { *m = GetLedger{} }
func (m *GetLedger) String() string { return proto.CompactTextString(m) }
func (*GetLedger) ProtoMessage()    {}

// LedgerNode is one (id, data) pair inside a LedgerData response. Id is
// empty when the node is the ledger header (ItemTypeBase), and a tree
// node with an empty Id is taken to be that tree's root.
type LedgerNode struct {
	NodeId   []byte `protobuf:"bytes,1,opt,name=node_id,proto3" json:"node_id,omitempty"`
	NodeData []byte `protobuf:"bytes,2,opt,name=node_data,proto3" json:"node_data,omitempty"`
}

func (m *LedgerNode) Reset()         { *m = LedgerNode{} }
func (m *LedgerNode) String() string { return proto.CompactTextString(m) }
func (*LedgerNode) ProtoMessage()    {}

// LedgerData answers a GetLedger with whatever nodes the responding peer
// was able to supply; Nodes may be shorter than the request asked for.
type LedgerData struct {
	LedgerHash []byte        `protobuf:"bytes,1,opt,name=ledger_hash,proto3" json:"ledger_hash,omitempty"`
	LedgerSeq  uint32        `protobuf:"varint,2,opt,name=ledger_seq,proto3" json:"ledger_seq,omitempty"`
	ItemType   ItemType      `protobuf:"varint,3,opt,name=item_type,proto3,enum=ledgerproto.ItemType" json:"item_type,omitempty"`
	Nodes      []*LedgerNode `protobuf:"bytes,4,rep,name=nodes,proto3" json:"nodes,omitempty"`
}

func (m *LedgerData) Reset()         { *m = LedgerData{} }
func (m *LedgerData) String() string { return proto.CompactTextString(m) }
func (*LedgerData) ProtoMessage()    {}

// Message is the envelope carried on p2p.LedgerChannel: exactly one of
// its fields is set, the way a proto3 oneof arrives once unwrapped by
// hand instead of by generated code.
type Message struct {
	GetLedger  *GetLedger
	LedgerData *LedgerData
}

func (m *Message) Reset()         { *m = Message{} }
func (m *Message) String() string { return proto.CompactTextString(m) }
func (*Message) ProtoMessage()    {}

var (
	_ p2p.Wrapper = &GetLedger{}
	_ p2p.Wrapper = &LedgerData{}
)

// Wrap implements p2p.Wrapper.
func (m *GetLedger) Wrap() proto.Message {
	return &Message{GetLedger: m}
}

// Wrap implements p2p.Wrapper.
func (m *LedgerData) Wrap() proto.Message {
	return &Message{LedgerData: m}
}

// Unwrap implements p2p.Wrapper and recovers the concrete request or
// response carried by m.
func (m *Message) Unwrap() (proto.Message, error) {
	switch {
	case m.GetLedger != nil:
		return m.GetLedger, nil
	case m.LedgerData != nil:
		return m.LedgerData, nil
	default:
		return nil, fmt.Errorf("ledgerproto: empty message")
	}
}
