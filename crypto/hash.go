package crypto

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashSize is the width, in bytes, of every content hash used across the
// ledger acquisition subsystem: ledger hashes, header hashes and SHAMap
// node hashes.
const HashSize = 32

// Hash is a 256-bit content digest.
type Hash [HashSize]byte

// ZeroHash is the hash that marks an empty tree: a ledger whose transaction
// or account-state root is ZeroHash carries no nodes to fetch.
var ZeroHash Hash

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders h as lowercase hex, the form HashFromHex reads back.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash's bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// HashFromBytes copies b into a Hash, returning false if b is not exactly
// HashSize bytes long.
func HashFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != HashSize {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// HashFromHex decodes a hex-encoded hash, as produced by Hash.String.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	decoded, ok := HashFromBytes(b)
	if !ok {
		return h, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	return decoded, nil
}

// Sum256 computes the content hash of data, as used to verify ledger
// headers and SHAMap node payloads against their declared identifiers.
func Sum256(data []byte) Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
