package store

import (
	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/shamap"
)

// PathIndex records which content hash lives at a given tree path within
// a specific ledger's tree. NodeStore alone can only answer "do you have
// the bytes for this hash" — it has no notion of which ledger's tree a
// path belongs to. A peer asking for a node by path needs that path
// resolved to a content hash first; PathIndex is what makes that lookup
// possible without re-walking a tree this node already finished with.
type PathIndex struct {
	db dbm.DB
}

// OpenPathIndex opens (creating if necessary) a disk-resident path index
// named name inside dir.
func OpenPathIndex(name, dir string) (*PathIndex, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return &PathIndex{db: db}, nil
}

// key orders entries first by tree root, then by path, so every node
// belonging to one ledger's tree sorts together.
func key(root crypto.Hash, id shamap.NodeID) []byte {
	k, err := orderedcode.Append(nil, string(root.Bytes()), string(id.Bytes()))
	if err != nil {
		panic(err)
	}
	return k
}

// Record remembers that id, inside the tree rooted at root, holds the
// content identified by content.
func (p *PathIndex) Record(root crypto.Hash, id shamap.NodeID, content crypto.Hash) {
	if err := p.db.Set(key(root, id), content.Bytes()); err != nil {
		panic(err)
	}
}

// Lookup resolves id, inside the tree rooted at root, to the content
// hash recorded for it, if any.
func (p *PathIndex) Lookup(root crypto.Hash, id shamap.NodeID) (crypto.Hash, bool) {
	val, err := p.db.Get(key(root, id))
	if err != nil {
		panic(err)
	}
	if val == nil {
		return crypto.ZeroHash, false
	}
	h, ok := crypto.HashFromBytes(val)
	return h, ok
}

// Close releases the underlying database handle.
func (p *PathIndex) Close() error {
	return p.db.Close()
}
