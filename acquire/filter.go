package acquire

import (
	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/shamap"
	"github.com/Eleven711/ledgersync/store"
)

// storeFilter adapts a store.NodeStore to shamap.Filter, letting a Tree
// skip a peer round trip for any node this acquisition's store already
// holds (shared with other acquisitions and with this node's own
// ledger history), and caching every node it validates for next time.
type storeFilter struct {
	st store.NodeStore
}

func (f *storeFilter) Lookup(h crypto.Hash) ([]byte, bool) {
	return f.st.Get(h)
}

func (f *storeFilter) Accept(_ shamap.NodeID, _ crypto.Hash, data []byte) {
	f.st.Put(data)
}
