// Package ledger defines the ledger header: the small, fully self
// contained record that names a ledger's sequence, its parent, and the
// roots of its two SHAMap trees. Everything else about a ledger is
// reached by walking those trees.
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/Eleven711/ledgersync/crypto"
)

// Header is the fixed-size record every ledger acquisition starts from.
// Its own hash is what peers are asked for by GetLedger, and TxHash /
// AccountHash are the roots handed to the two shamap.Tree instances that
// reconstruct its content.
type Header struct {
	Seq            uint32
	ParentHash     crypto.Hash
	TxHash         crypto.Hash
	AccountHash    crypto.Hash
	ParentCloseMS  int64
	CloseMS        int64
	CloseResolution uint8
	CloseFlags      uint8
}

const encodedHeaderSize = 4 + crypto.HashSize*3 + 8 + 8 + 1 + 1

// Encode serialises h into the byte form whose hash is the ledger's
// identity, and that's carried as the BASE item in a LedgerData
// response.
func (h Header) Encode() []byte {
	buf := make([]byte, encodedHeaderSize)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], h.Seq)
	off += 4
	copy(buf[off:], h.ParentHash.Bytes())
	off += crypto.HashSize
	copy(buf[off:], h.TxHash.Bytes())
	off += crypto.HashSize
	copy(buf[off:], h.AccountHash.Bytes())
	off += crypto.HashSize
	binary.BigEndian.PutUint64(buf[off:], uint64(h.ParentCloseMS))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(h.CloseMS))
	off += 8
	buf[off] = h.CloseResolution
	off++
	buf[off] = h.CloseFlags
	return buf
}

// Hash is the content hash peers use to identify this ledger.
func (h Header) Hash() crypto.Hash {
	return crypto.Sum256(h.Encode())
}

// DecodeHeader parses the bytes produced by Encode, returning an error
// if raw isn't exactly the expected length.
func DecodeHeader(raw []byte) (Header, error) {
	var h Header
	if len(raw) != encodedHeaderSize {
		return h, fmt.Errorf("ledger: header is %d bytes, want %d", len(raw), encodedHeaderSize)
	}
	off := 0
	h.Seq = binary.BigEndian.Uint32(raw[off:])
	off += 4
	h.ParentHash, _ = crypto.HashFromBytes(raw[off : off+crypto.HashSize])
	off += crypto.HashSize
	h.TxHash, _ = crypto.HashFromBytes(raw[off : off+crypto.HashSize])
	off += crypto.HashSize
	h.AccountHash, _ = crypto.HashFromBytes(raw[off : off+crypto.HashSize])
	off += crypto.HashSize
	h.ParentCloseMS = int64(binary.BigEndian.Uint64(raw[off:]))
	off += 8
	h.CloseMS = int64(binary.BigEndian.Uint64(raw[off:]))
	off += 8
	h.CloseResolution = raw[off]
	off++
	h.CloseFlags = raw[off]
	return h, nil
}
