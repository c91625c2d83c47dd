package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Eleven711/ledgersync/crypto"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	h := s.Put([]byte("payload"))

	require.True(t, s.Has(h))
	got, ok := s.Get(h)
	require.True(t, ok)
	require.Equal(t, "payload", string(got))
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemoryStore()
	require.False(t, s.Has(crypto.ZeroHash))
	_, ok := s.Get(crypto.ZeroHash)
	require.False(t, ok)
}

func TestMemoryStorePutIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	h1 := s.Put([]byte("same"))
	h2 := s.Put([]byte("same"))
	require.Equal(t, h1, h2)
}
