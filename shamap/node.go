// Package shamap implements the content-addressed partial Merkle tree used
// to reconstruct a ledger's transaction tree and account-state tree from
// nodes fetched piecemeal from peers. Every node, once installed, must
// hash to the value its parent declared for it; the tree never trusts
// unverified data.
package shamap

import (
	"encoding/hex"
	"fmt"

	"github.com/Eleven711/ledgersync/crypto"
)

// maxDepth bounds how many nibbles a NodeID may carry. 64 nibbles cover a
// full 256-bit keyspace at 4 bits per level, matching the hash width used
// to address items in the tree.
const maxDepth = crypto.HashSize * 2

// NodeID locates a node inside one of the two trees by the sequence of
// nibbles consumed from the root. The root itself is the identifier of an
// empty path.
type NodeID struct {
	path []byte // nibbles, 0-15, len(path) == depth
}

// RootNodeID is the identifier of the tree's root.
func RootNodeID() NodeID {
	return NodeID{}
}

// IsRoot reports whether id addresses the tree's root.
func (id NodeID) IsRoot() bool {
	return len(id.path) == 0
}

// Depth is the number of nibbles consumed to reach id.
func (id NodeID) Depth() int {
	return len(id.path)
}

// Child returns the identifier of id's nibble-th child.
func (id NodeID) Child(nibble byte) NodeID {
	next := make([]byte, len(id.path)+1)
	copy(next, id.path)
	next[len(id.path)] = nibble & 0x0f
	return NodeID{path: next}
}

// Parent returns the identifier of id's parent and the nibble id descends
// through. It panics if id is the root; callers must check IsRoot first.
func (id NodeID) Parent() (NodeID, byte) {
	if id.IsRoot() {
		panic("shamap: root has no parent")
	}
	n := len(id.path)
	return NodeID{path: id.path[:n-1]}, id.path[n-1]
}

// key is the representation used to index installed nodes in a map; it's
// unambiguous because it's length-prefixed, so the root ("") never
// collides with any non-root path.
func (id NodeID) key() string {
	b := make([]byte, len(id.path)+1)
	b[0] = byte(len(id.path))
	copy(b[1:], id.path)
	return string(b)
}

// Bytes returns the wire form of id: a depth byte followed by one byte
// per nibble. This is the "fixed serialised form" GetLedger.node_ids
// carries on the wire.
func (id NodeID) Bytes() []byte {
	out := make([]byte, 0, len(id.path)+1)
	out = append(out, byte(len(id.path)))
	out = append(out, id.path...)
	return out
}

// DecodeNodeID parses the wire form produced by Bytes.
func DecodeNodeID(b []byte) (NodeID, error) {
	if len(b) == 0 {
		return NodeID{}, fmt.Errorf("shamap: empty node id")
	}
	depth := int(b[0])
	if depth > maxDepth {
		return NodeID{}, fmt.Errorf("shamap: node id depth %d exceeds %d", depth, maxDepth)
	}
	if len(b) != depth+1 {
		return NodeID{}, fmt.Errorf("shamap: node id length %d does not match depth %d", len(b), depth)
	}
	for _, nib := range b[1:] {
		if nib > 0x0f {
			return NodeID{}, fmt.Errorf("shamap: invalid nibble %#x", nib)
		}
	}
	path := make([]byte, depth)
	copy(path, b[1:])
	return NodeID{path: path}, nil
}

// String renders id as hex, for logs.
func (id NodeID) String() string {
	if id.IsRoot() {
		return "root"
	}
	return hex.EncodeToString(id.path)
}
