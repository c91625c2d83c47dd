package shamap

import (
	"fmt"
	"sync"

	"github.com/Eleven711/ledgersync/crypto"
)

// node tags identify what parseNode should expect in the remainder of a
// node's wire payload.
const (
	tagLeaf  byte = 0
	tagInner byte = 1
)

// fanout is the number of children an inner node may have: one per nibble.
const fanout = 16

type kind byte

const (
	kindLeaf kind = iota
	kindInner
)

// node is an installed, hash-verified tree node.
type node struct {
	kind     kind
	data     []byte                // leaf payload
	children [fanout]crypto.Hash   // inner: declared hash of each child, zero if absent
}

func (n *node) hash() crypto.Hash {
	switch n.kind {
	case kindLeaf:
		return crypto.Sum256(EncodeLeaf(n.data))
	default:
		return crypto.Sum256(EncodeInner(n.children))
	}
}

func parseNode(raw []byte) (*node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("shamap: empty node payload")
	}
	switch raw[0] {
	case tagLeaf:
		data := make([]byte, len(raw)-1)
		copy(data, raw[1:])
		return &node{kind: kindLeaf, data: data}, nil
	case tagInner:
		rest := raw[1:]
		if len(rest) != fanout*crypto.HashSize {
			return nil, fmt.Errorf("shamap: malformed inner node, %d bytes", len(rest))
		}
		n := &node{kind: kindInner}
		for i := 0; i < fanout; i++ {
			h, _ := crypto.HashFromBytes(rest[i*crypto.HashSize : (i+1)*crypto.HashSize])
			n.children[i] = h
		}
		return n, nil
	default:
		return nil, fmt.Errorf("shamap: unknown node tag %#x", raw[0])
	}
}

// EncodeLeaf and EncodeInner build node payloads in the wire format this
// package parses, for use by whatever populates or serves a NodeStore.

func EncodeLeaf(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, tagLeaf)
	return append(out, data...)
}

func EncodeInner(children [fanout]crypto.Hash) []byte {
	out := make([]byte, 0, fanout*crypto.HashSize+1)
	out = append(out, tagInner)
	for _, c := range children {
		out = append(out, c.Bytes()...)
	}
	return out
}

// Filter adapts a Tree to a backing content store. Lookup lets the tree
// short-circuit a node it already has cached locally instead of asking a
// peer for it; Accept records a freshly validated node so later lookups
// (for this tree or another one sharing content) find it.
type Filter interface {
	Lookup(h crypto.Hash) ([]byte, bool)
	Accept(id NodeID, h crypto.Hash, data []byte)
}

// Tree is a partial view of a single content-addressed Merkle tree,
// identified by its root hash. Nodes are added only after their hash is
// checked against the value their parent declared; nothing is trusted
// until it's verified.
type Tree struct {
	mu       sync.Mutex
	rootHash crypto.Hash
	nodes    map[string]*node
}

// NewTree returns a Tree that will reconstruct the tree identified by
// rootHash. A zero rootHash denotes an empty tree, which is synched and
// valid immediately, with no nodes to fetch.
func NewTree(rootHash crypto.Hash) *Tree {
	return &Tree{rootHash: rootHash, nodes: make(map[string]*node)}
}

// RootHash returns the hash this tree is reconstructing toward.
func (t *Tree) RootHash() crypto.Hash {
	return t.rootHash
}

// HasRoot reports whether the root node has been installed.
func (t *Tree) HasRoot() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[RootNodeID().key()]
	return ok
}

// AddRootNode validates data against the tree's root hash and, if it
// matches, installs it as the root. It's idempotent: calling it again
// after the root is already installed is a no-op that reports success.
func (t *Tree) AddRootNode(data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootHash.IsZero() {
		return true
	}
	if _, ok := t.nodes[RootNodeID().key()]; ok {
		return true
	}
	n, err := parseNode(data)
	if err != nil {
		return false
	}
	if n.hash() != t.rootHash {
		return false
	}
	t.nodes[RootNodeID().key()] = n
	return true
}

// AddKnownNode validates data against the hash id's parent declared for
// it, and if it matches, installs it. The parent must already be
// installed; a node can never be accepted ahead of the node that names
// its hash.
func (t *Tree) AddKnownNode(id NodeID, data []byte) bool {
	if id.IsRoot() {
		return t.AddRootNode(data)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	parentID, nib := id.Parent()
	parent, ok := t.nodes[parentID.key()]
	if !ok || parent.kind != kindInner {
		return false
	}
	expected := parent.children[nib]
	if expected.IsZero() {
		return false
	}
	if _, ok := t.nodes[id.key()]; ok {
		return true
	}
	n, err := parseNode(data)
	if err != nil {
		return false
	}
	if n.hash() != expected {
		return false
	}
	t.nodes[id.key()] = n
	return true
}

// GetMissingNodes walks the installed portion of the tree breadth-first
// and returns up to limit identifiers of nodes that are referenced but
// not yet installed, and not already resolvable from filter's cache.
// Nodes filter can supply locally are installed on the spot and don't
// count against the caller's peer-request budget.
func (t *Tree) GetMissingNodes(limit int, filter Filter) []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootHash.IsZero() || limit <= 0 {
		return nil
	}
	root, ok := t.nodes[RootNodeID().key()]
	if !ok {
		return nil
	}

	type frame struct {
		id NodeID
		n  *node
	}
	var missing []NodeID
	queue := []frame{{RootNodeID(), root}}
	for len(queue) > 0 && len(missing) < limit {
		cur := queue[0]
		queue = queue[1:]
		if cur.n.kind != kindInner {
			continue
		}
		for nib := 0; nib < fanout; nib++ {
			childHash := cur.n.children[nib]
			if childHash.IsZero() {
				continue
			}
			childID := cur.id.Child(byte(nib))
			if existing, ok := t.nodes[childID.key()]; ok {
				queue = append(queue, frame{childID, existing})
				continue
			}
			if filter != nil {
				if data, ok := filter.Lookup(childHash); ok {
					if n, err := parseNode(data); err == nil && n.hash() == childHash {
						t.nodes[childID.key()] = n
						filter.Accept(childID, childHash, data)
						queue = append(queue, frame{childID, n})
						continue
					}
				}
			}
			missing = append(missing, childID)
			if len(missing) >= limit {
				break
			}
		}
	}
	return missing
}

// IsSynching reports whether the tree still has unresolved nodes.
func (t *Tree) IsSynching() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isSynchingLocked()
}

func (t *Tree) isSynchingLocked() bool {
	if t.rootHash.IsZero() {
		return false
	}
	root, ok := t.nodes[RootNodeID().key()]
	if !ok {
		return true
	}
	return t.hasMissingLocked(RootNodeID(), root)
}

func (t *Tree) hasMissingLocked(id NodeID, n *node) bool {
	if n.kind != kindInner {
		return false
	}
	for nib := 0; nib < fanout; nib++ {
		childHash := n.children[nib]
		if childHash.IsZero() {
			continue
		}
		childID := id.Child(byte(nib))
		childNode, ok := t.nodes[childID.key()]
		if !ok {
			return true
		}
		if t.hasMissingLocked(childID, childNode) {
			return true
		}
	}
	return false
}

// IsValid reports whether the tree is completely and correctly
// reconstructed: the root is installed and every node it transitively
// references is installed too.
func (t *Tree) IsValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootHash.IsZero() {
		return true
	}
	_, ok := t.nodes[RootNodeID().key()]
	return ok && !t.isSynchingLocked()
}

// NodeCount returns how many nodes are currently installed, for metrics
// and tests.
func (t *Tree) NodeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
