package vault

import (
	"testing"

	"nhbchain/crypto"
	"nhbchain/ledger/store"
	"nhbchain/storage"
)

func newTestEngine(t *testing.T) (*Engine, *Store) {
	t.Helper()
	kv := store.New(storage.NewMemDB())
	vs := NewStore(kv)
	e := NewEngine()
	e.SetState(vs)
	return e, vs
}

func newTestIdentity(t *testing.T, seed byte) Identity {
	t.Helper()
	b := make([]byte, 20)
	for i := range b {
		b[i] = seed
	}
	addr, err := crypto.NewAddress(crypto.NHBPrefix, b)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	return addr
}
