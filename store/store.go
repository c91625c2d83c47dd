// Package store provides the content-addressed byte cache that backs a
// shamap.Tree: every SHAMap node and ledger header that's been verified
// once is kept here, keyed by its own hash, so it never has to be
// fetched from a peer twice.
package store

import "github.com/Eleven711/ledgersync/crypto"

// NodeStore is a content-addressed cache: values are looked up and
// recorded by the hash of their own bytes, never by an arbitrary key.
// Implementations must be safe for concurrent use.
type NodeStore interface {
	// Get returns the bytes stored under h, and whether they were found.
	Get(h crypto.Hash) ([]byte, bool)

	// Put records data under its own content hash and returns it.
	Put(data []byte) crypto.Hash

	// Has reports whether h is present, without paying for a copy of
	// the value.
	Has(h crypto.Hash) bool

	// Close releases any resources held by the store.
	Close() error
}
