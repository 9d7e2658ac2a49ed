package grant

import (
	"math/big"

	"nhbchain/crypto"
	"nhbchain/ledger/store"
)

const (
	keyRecipient = "recipient"
	keyTotal     = "total"
	keyStart     = "start"
	keyEnd       = "end"
	keyClaimed   = "claimed"
)

type storedAddress struct {
	Prefix string
	Bytes  []byte
}

func newStoredAddress(id Identity) storedAddress {
	return storedAddress{Prefix: string(id.Prefix()), Bytes: id.Bytes()}
}

func (s storedAddress) toIdentity() (Identity, error) {
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Bytes)
}

// Store is the grant module's domain-specific adapter over the generic
// typed KV facade in ledger/store.
type Store struct {
	kv *store.Store
}

func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) GetRecipient() (*Identity, error) {
	var out storedAddress
	ok, err := s.kv.GetSingleton(keyRecipient, &out)
	if err != nil || !ok {
		return nil, err
	}
	id, err := out.toIdentity()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) SetRecipient(id Identity) error {
	return s.kv.SetSingleton(keyRecipient, newStoredAddress(id))
}

func (s *Store) GetTotal() (*big.Int, bool, error) {
	var out big.Int
	ok, err := s.kv.GetSingleton(keyTotal, &out)
	return &out, ok, err
}

func (s *Store) SetTotal(v *big.Int) error {
	return s.kv.SetSingleton(keyTotal, v)
}

func (s *Store) GetStart() (uint64, error) {
	var out uint64
	ok, err := s.kv.GetSingleton(keyStart, &out)
	if err != nil || !ok {
		return 0, err
	}
	return out, nil
}

func (s *Store) SetStart(v uint64) error {
	return s.kv.SetSingleton(keyStart, v)
}

func (s *Store) GetEnd() (uint64, error) {
	var out uint64
	ok, err := s.kv.GetSingleton(keyEnd, &out)
	if err != nil || !ok {
		return 0, err
	}
	return out, nil
}

func (s *Store) SetEnd(v uint64) error {
	return s.kv.SetSingleton(keyEnd, v)
}

func (s *Store) GetClaimed() (*big.Int, bool, error) {
	var out big.Int
	ok, err := s.kv.GetSingleton(keyClaimed, &out)
	return &out, ok, err
}

func (s *Store) SetClaimed(v *big.Int) error {
	return s.kv.SetSingleton(keyClaimed, v)
}
