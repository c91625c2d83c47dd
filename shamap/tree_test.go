package shamap

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"

	"github.com/Eleven711/ledgersync/crypto"
)

// buildTwoLevelTree constructs an inner root with a single leaf child at
// nibble 3, returning the encoded payloads and hashes needed to feed a
// Tree through AddRootNode/AddKnownNode.
func buildTwoLevelTree(t *testing.T, leafData []byte) (rootHash crypto.Hash, rootPayload []byte, leafHash crypto.Hash, leafPayload []byte) {
	t.Helper()
	leafPayload = EncodeLeaf(leafData)
	leafHash = crypto.Sum256(leafPayload)

	var children [fanout]crypto.Hash
	children[3] = leafHash
	rootPayload = EncodeInner(children)
	rootHash = crypto.Sum256(rootPayload)
	return
}

func TestEmptyTreeIsImmediatelyValid(t *testing.T) {
	tree := NewTree(crypto.ZeroHash)
	if !tree.IsValid() {
		t.Fatal("empty tree must be valid with no nodes installed")
	}
	if tree.IsSynching() {
		t.Fatal("empty tree must not be synching")
	}
	if got := tree.GetMissingNodes(128, nil); got != nil {
		t.Fatalf("empty tree must have no missing nodes, got %v", got)
	}
}

func TestSingleNodeTreeValidatesOnRoot(t *testing.T) {
	leafPayload := EncodeLeaf([]byte("solo item"))
	rootHash := crypto.Sum256(leafPayload)

	tree := NewTree(rootHash)
	if tree.IsValid() {
		t.Fatal("tree must not be valid before the root is installed")
	}
	if !tree.AddRootNode(leafPayload) {
		t.Fatal("AddRootNode rejected a correctly hashing leaf root")
	}
	if !tree.IsValid() {
		t.Fatal("single-leaf tree must be valid immediately after its root installs")
	}
	if tree.IsSynching() {
		t.Fatal("single-leaf tree must not be synching once its root installs")
	}
}

func TestAddRootNodeRejectsWrongHash(t *testing.T) {
	tree := NewTree(crypto.Sum256([]byte("expected")))
	if tree.AddRootNode(EncodeLeaf([]byte("wrong content"))) {
		t.Fatal("AddRootNode accepted data that doesn't hash to the declared root")
	}
	if tree.HasRoot() {
		t.Fatal("a rejected root must not be installed")
	}
}

func TestAddRootNodeIsIdempotent(t *testing.T) {
	leafPayload := EncodeLeaf([]byte("x"))
	rootHash := crypto.Sum256(leafPayload)
	tree := NewTree(rootHash)

	if !tree.AddRootNode(leafPayload) {
		t.Fatal("first AddRootNode should succeed")
	}
	if !tree.AddRootNode(leafPayload) {
		t.Fatal("re-adding an already-installed root must still report success")
	}
}

func TestTwoLevelTreeReportsAndAcceptsMissingChild(t *testing.T) {
	rootHash, rootPayload, leafHash, leafPayload := buildTwoLevelTree(t, []byte("child data"))
	tree := NewTree(rootHash)

	if !tree.AddRootNode(rootPayload) {
		t.Fatal("root should install")
	}
	if tree.IsValid() {
		t.Fatal("tree with an uninstalled child must not be valid")
	}
	if !tree.IsSynching() {
		t.Fatal("tree with an uninstalled child must be synching")
	}

	missing := tree.GetMissingNodes(128, nil)
	if len(missing) != 1 {
		t.Fatalf("expected exactly one missing node, got %d", len(missing))
	}
	childID := RootNodeID().Child(3)
	if !bytes.Equal(missing[0].Bytes(), childID.Bytes()) {
		t.Fatalf("expected missing id %v, got %v", childID, missing[0])
	}

	if !tree.AddKnownNode(childID, leafPayload) {
		t.Fatal("AddKnownNode rejected the correctly hashing child")
	}
	_ = leafHash
	if !tree.IsValid() {
		t.Fatal("tree must be valid once every referenced node is installed")
	}
	if got := tree.GetMissingNodes(128, nil); len(got) != 0 {
		t.Fatalf("fully installed tree must report no missing nodes, got %v", got)
	}
}

func TestAddKnownNodeRejectsNodeWithoutInstalledParent(t *testing.T) {
	_, _, _, leafPayload := buildTwoLevelTree(t, []byte("data"))
	tree := NewTree(crypto.Sum256([]byte("some other root")))

	childID := RootNodeID().Child(3)
	if tree.AddKnownNode(childID, leafPayload) {
		t.Fatal("a child cannot be accepted before its parent is installed")
	}
}

func TestAddKnownNodeRejectsWrongHash(t *testing.T) {
	rootHash, rootPayload, _, _ := buildTwoLevelTree(t, []byte("expected child"))
	tree := NewTree(rootHash)
	if !tree.AddRootNode(rootPayload) {
		t.Fatal("root should install")
	}

	childID := RootNodeID().Child(3)
	if tree.AddKnownNode(childID, EncodeLeaf([]byte("wrong data"))) {
		t.Fatal("a child with the wrong hash must be rejected")
	}
}

func TestGetMissingNodesHonoursLimit(t *testing.T) {
	var children [fanout]crypto.Hash
	leafPayloads := make(map[byte][]byte)
	for nib := byte(0); nib < fanout; nib++ {
		payload := EncodeLeaf([]byte{nib})
		leafPayloads[nib] = payload
		children[nib] = crypto.Sum256(payload)
	}
	rootPayload := EncodeInner(children)
	rootHash := crypto.Sum256(rootPayload)

	tree := NewTree(rootHash)
	if !tree.AddRootNode(rootPayload) {
		t.Fatal("root should install")
	}

	missing := tree.GetMissingNodes(4, nil)
	if len(missing) != 4 {
		t.Fatalf("expected exactly 4 missing nodes under a limit of 4, got %d", len(missing))
	}
}

// stubFilter is a minimal in-memory Filter used to exercise the
// short-circuit path in GetMissingNodes.
type stubFilter struct {
	data map[crypto.Hash][]byte
}

func newStubFilter() *stubFilter { return &stubFilter{data: make(map[crypto.Hash][]byte)} }

func (f *stubFilter) Lookup(h crypto.Hash) ([]byte, bool) {
	d, ok := f.data[h]
	return d, ok
}

func (f *stubFilter) Accept(id NodeID, h crypto.Hash, data []byte) {
	f.data[h] = data
}

func TestGetMissingNodesShortCircuitsFromFilter(t *testing.T) {
	rootHash, rootPayload, leafHash, leafPayload := buildTwoLevelTree(t, []byte("cached"))
	tree := NewTree(rootHash)
	if !tree.AddRootNode(rootPayload) {
		t.Fatal("root should install")
	}

	filter := newStubFilter()
	filter.data[leafHash] = leafPayload

	missing := tree.GetMissingNodes(128, filter)
	if len(missing) != 0 {
		t.Fatalf("a node already in the filter's cache should not be reported missing, got %v", missing)
	}
	if !tree.IsValid() {
		t.Fatal("tree should be valid once its missing child was resolved from the filter")
	}
}

func TestNodeIDWireRoundTrip(t *testing.T) {
	id := RootNodeID().Child(1).Child(15).Child(0)
	decoded, err := DecodeNodeID(id.Bytes())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), id.Bytes()) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, id)
	}
}

// TestNodeIDWireRoundTripProperty exercises the same round trip as
// TestNodeIDWireRoundTrip, but over arbitrary nibble paths up to the
// tree's maximum depth instead of one fixed example.
func TestNodeIDWireRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.SliceOfN(rapid.IntRange(0, 15), 0, maxDepth).Draw(t, "path").([]int)

		id := RootNodeID()
		for _, nibble := range path {
			id = id.Child(byte(nibble))
		}

		decoded, err := DecodeNodeID(id.Bytes())
		if err != nil {
			t.Fatalf("unexpected decode error for path %v: %v", path, err)
		}
		if !bytes.Equal(decoded.Bytes(), id.Bytes()) {
			t.Fatalf("round trip mismatch for path %v: got %v, want %v", path, decoded, id)
		}
		if decoded.Depth() != len(path) {
			t.Fatalf("depth mismatch for path %v: got %d, want %d", path, decoded.Depth(), len(path))
		}
	})
}

func TestDecodeNodeIDRejectsMalformed(t *testing.T) {
	if _, err := DecodeNodeID(nil); err == nil {
		t.Fatal("expected error decoding empty bytes")
	}
	if _, err := DecodeNodeID([]byte{2, 1}); err == nil {
		t.Fatal("expected error when length doesn't match declared depth")
	}
	if _, err := DecodeNodeID([]byte{1, 0x10}); err == nil {
		t.Fatal("expected error decoding an out-of-range nibble")
	}
}
