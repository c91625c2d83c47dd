package p2p

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil/base58"

	"github.com/Eleven711/ledgersync/crypto"
)

// Identity is this node's own signing keypair: what it uses to prove,
// to a peer dialing in, which ID it's entitled to claim. Nothing in the
// acquisition logic itself depends on this — it's purely a transport
// concern, the same way a real deployment's handshake would be.
type Identity struct {
	priv *btcec.PrivateKey
}

// NewIdentity generates a fresh secp256k1 identity keypair.
func NewIdentity() (*Identity, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, fmt.Errorf("generating identity key: %w", err)
	}
	return &Identity{priv: priv}, nil
}

// ID derives this identity's peer ID from its public key: the
// base58check-encoded hash of the compressed public key, the same shape
// of address real wallets derive from a key.
func (id *Identity) ID() ID {
	pub := id.priv.PubKey().SerializeCompressed()
	digest := crypto.Sum256(pub)
	return ID(base58.CheckEncode(digest[:20], 0))
}

// Sign produces a signature over digest, proving possession of this
// identity's private key.
func (id *Identity) Sign(digest []byte) (*btcec.Signature, error) {
	return id.priv.Sign(digest)
}

// VerifyPeerID reports whether sig is a valid signature by pub over
// digest, and that pub actually hashes to claimedID.
func VerifyPeerID(claimedID ID, pub *btcec.PublicKey, digest []byte, sig *btcec.Signature) bool {
	compressed := pub.SerializeCompressed()
	sum := crypto.Sum256(compressed)
	if ID(base58.CheckEncode(sum[:20], 0)) != claimedID {
		return false
	}
	return sig.Verify(digest, pub)
}
