package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Eleven711/ledgersync/crypto"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Seq:             12345,
		ParentHash:      crypto.Sum256([]byte("parent")),
		TxHash:          crypto.Sum256([]byte("tx root")),
		AccountHash:     crypto.Sum256([]byte("account root")),
		ParentCloseMS:   1000,
		CloseMS:         2000,
		CloseResolution: 10,
		CloseFlags:      1,
	}

	decoded, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHeaderHashIsDeterministic(t *testing.T) {
	h := Header{Seq: 1}
	require.Equal(t, h.Hash(), h.Hash())

	other := h
	other.Seq = 2
	require.NotEqual(t, h.Hash(), other.Hash())
}

func TestDecodeHeaderRejectsWrongLength(t *testing.T) {
	_, err := DecodeHeader([]byte("too short"))
	require.Error(t, err)
}
