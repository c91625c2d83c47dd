package store

import (
	dbm "github.com/tendermint/tm-db"

	"github.com/Eleven711/ledgersync/crypto"
)

// LevelDBStore is a NodeStore backed by a disk-resident key-value store,
// for nodes that need their acquired ledger content to survive a
// restart. It goes through tm-db rather than talking to goleveldb
// directly, the same indirection the rest of the ecosystem uses so the
// backend can be swapped without touching callers.
type LevelDBStore struct {
	db dbm.DB
}

// OpenLevelDBStore opens (creating if necessary) a goleveldb-backed
// database named name inside dir.
func OpenLevelDBStore(name, dir string) (*LevelDBStore, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// Get implements NodeStore.
func (s *LevelDBStore) Get(h crypto.Hash) ([]byte, bool) {
	data, err := s.db.Get(h.Bytes())
	if err != nil {
		panic(err)
	}
	return data, data != nil
}

// Put implements NodeStore.
func (s *LevelDBStore) Put(data []byte) crypto.Hash {
	h := crypto.Sum256(data)
	if err := s.db.Set(h.Bytes(), data); err != nil {
		panic(err)
	}
	return h
}

// Has implements NodeStore.
func (s *LevelDBStore) Has(h crypto.Hash) bool {
	ok, err := s.db.Has(h.Bytes())
	if err != nil {
		panic(err)
	}
	return ok
}

// Close implements NodeStore.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
