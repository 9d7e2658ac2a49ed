package vault

import (
	"math/big"
	"strconv"

	"nhbchain/crypto"
	"nhbchain/ledger/store"
)

const (
	namespaceVault     = "vault"
	namespaceUserIndex = "user_index"

	keyInitialSupply   = "initial_supply"
	keyAdminBalance    = "admin_balance"
	keyAdminAddress    = "admin_address"
	keyProposedAdmin   = "proposed_admin"
	keyVaultCount      = "vault_count"
	keyIsDeprecated    = "is_deprecated"
	keyMigrationTarget = "migration_target"
	keyPaused          = "paused"
)

// storedAddress is the RLP-serializable shadow of crypto.Address, whose
// fields are unexported and therefore opaque to reflection-based encoding.
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

type storedMilestone struct {
	Label    string
	Weight   uint8
	Unlocked uint8
}

type storedVault struct {
	ID uint64

	Owner       storedAddress
	HasDelegate uint8
	Delegate    storedAddress

	TotalAmount    *big.Int
	ReleasedAmount *big.Int
	HasKeeperFee   uint8
	KeeperFee      *big.Int
	HasStaked      uint8
	StakedAmount   *big.Int

	StartTime       uint64
	EndTime         uint64
	CreationTime    uint64
	HasStepDuration uint8
	StepDuration    uint64
	Curve           uint8

	IsInitialized  uint8
	IsFrozen       uint8
	IsIrrevocable  uint8
	IsTransferable uint8

	Milestones []storedMilestone
	Title      string
}

func newStoredVault(v *Vault) *storedVault {
	s := &storedVault{
		ID:             v.ID,
		Owner:          newStoredAddress(v.Owner),
		TotalAmount:    cloneBigInt(v.TotalAmount),
		ReleasedAmount: cloneBigInt(v.ReleasedAmount),
		StartTime:      v.StartTime,
		EndTime:        v.EndTime,
		CreationTime:   v.CreationTime,
		Curve:          uint8(v.Curve),
		IsInitialized:  b2u(v.IsInitialized),
		IsFrozen:       b2u(v.IsFrozen),
		IsIrrevocable:  b2u(v.IsIrrevocable),
		IsTransferable: b2u(v.IsTransferable),
		Title:          v.Title,
	}
	if v.Delegate != nil {
		s.HasDelegate = 1
		s.Delegate = newStoredAddress(*v.Delegate)
	}
	if v.KeeperFee != nil {
		s.HasKeeperFee = 1
		s.KeeperFee = new(big.Int).Set(v.KeeperFee)
	}
	if v.StakedAmount != nil {
		s.HasStaked = 1
		s.StakedAmount = new(big.Int).Set(v.StakedAmount)
	}
	if v.StepDuration != nil {
		s.HasStepDuration = 1
		s.StepDuration = *v.StepDuration
	}
	for _, m := range v.Milestones {
		s.Milestones = append(s.Milestones, storedMilestone{Label: m.Label, Weight: m.Weight, Unlocked: b2u(m.Unlocked)})
	}
	return s
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *storedVault) toVault() (*Vault, error) {
	owner, err := s.Owner.toIdentity()
	if err != nil {
		return nil, err
	}
	v := &Vault{
		ID:             s.ID,
		Owner:          owner,
		TotalAmount:    cloneBigInt(s.TotalAmount),
		ReleasedAmount: cloneBigInt(s.ReleasedAmount),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		CreationTime:   s.CreationTime,
		Curve:          Curve(s.Curve),
		IsInitialized:  s.IsInitialized != 0,
		IsFrozen:       s.IsFrozen != 0,
		IsIrrevocable:  s.IsIrrevocable != 0,
		IsTransferable: s.IsTransferable != 0,
		Title:          s.Title,
	}
	if s.HasDelegate != 0 {
		d, err := s.Delegate.toIdentity()
		if err != nil {
			return nil, err
		}
		v.Delegate = &d
	}
	if s.HasKeeperFee != 0 {
		v.KeeperFee = new(big.Int).Set(s.KeeperFee)
	}
	if s.HasStaked != 0 {
		v.StakedAmount = new(big.Int).Set(s.StakedAmount)
	}
	if s.HasStepDuration != 0 {
		sd := s.StepDuration
		v.StepDuration = &sd
	}
	for _, m := range s.Milestones {
		v.Milestones = append(v.Milestones, Milestone{Label: m.Label, Weight: m.Weight, Unlocked: m.Unlocked != 0})
	}
	return v, nil
}

// storedIndex is the RLP shadow for a user's ordered vault-id sequence.
type storedIndex struct {
	IDs []uint64
}

// Store is the vault module's domain-specific adapter over the generic
// typed KV facade in ledger/store. It implements the narrow engineState
// interface the Engine consumes.
type Store struct {
	kv *store.Store
}

// NewStore wraps a generic ledger/store.Store for vault-shaped records.
func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) GetInitialSupply() (*big.Int, bool, error) {
	var out big.Int
	ok, err := s.kv.GetSingleton(keyInitialSupply, &out)
	return &out, ok, err
}

func (s *Store) SetInitialSupply(v *big.Int) error {
	return s.kv.SetSingleton(keyInitialSupply, v)
}

func (s *Store) GetAdminBalance() (*big.Int, bool, error) {
	var out big.Int
	ok, err := s.kv.GetSingleton(keyAdminBalance, &out)
	return &out, ok, err
}

func (s *Store) SetAdminBalance(v *big.Int) error {
	return s.kv.SetSingleton(keyAdminBalance, v)
}

func (s *Store) GetAdminAddress() (*Identity, error) {
	var out storedAddress
	ok, err := s.kv.GetSingleton(keyAdminAddress, &out)
	if err != nil || !ok {
		return nil, err
	}
	id, err := out.toIdentity()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) SetAdminAddress(id Identity) error {
	return s.kv.SetSingleton(keyAdminAddress, newStoredAddress(id))
}

func (s *Store) GetProposedAdmin() (*Identity, error) {
	var out storedAddress
	ok, err := s.kv.GetSingleton(keyProposedAdmin, &out)
	if err != nil || !ok {
		return nil, err
	}
	id, err := out.toIdentity()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) SetProposedAdmin(id *Identity) error {
	if id == nil {
		return s.kv.DeleteSingleton(keyProposedAdmin)
	}
	return s.kv.SetSingleton(keyProposedAdmin, newStoredAddress(*id))
}

func (s *Store) GetVaultCount() (uint64, error) {
	var out uint64
	ok, err := s.kv.GetSingleton(keyVaultCount, &out)
	if err != nil || !ok {
		return 0, err
	}
	return out, nil
}

func (s *Store) SetVaultCount(v uint64) error {
	return s.kv.SetSingleton(keyVaultCount, v)
}

func (s *Store) GetIsDeprecated() (bool, error) {
	var out uint8
	ok, err := s.kv.GetSingleton(keyIsDeprecated, &out)
	if err != nil || !ok {
		return false, err
	}
	return out != 0, nil
}

func (s *Store) SetIsDeprecated(v bool) error {
	return s.kv.SetSingleton(keyIsDeprecated, b2u(v))
}

func (s *Store) GetMigrationTarget() (*Identity, error) {
	var out storedAddress
	ok, err := s.kv.GetSingleton(keyMigrationTarget, &out)
	if err != nil || !ok {
		return nil, err
	}
	id, err := out.toIdentity()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Store) SetMigrationTarget(id Identity) error {
	return s.kv.SetSingleton(keyMigrationTarget, newStoredAddress(id))
}

func (s *Store) GetPaused() (bool, error) {
	var out uint8
	ok, err := s.kv.GetSingleton(keyPaused, &out)
	if err != nil || !ok {
		return false, err
	}
	return out != 0, nil
}

func (s *Store) SetPaused(v bool) error {
	return s.kv.SetSingleton(keyPaused, b2u(v))
}

func vaultKey(id uint64) string { return strconv.FormatUint(id, 10) }

func (s *Store) GetVault(id uint64) (*Vault, bool, error) {
	var out storedVault
	ok, err := s.kv.GetEntity(namespaceVault, vaultKey(id), &out)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := out.toVault()
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) PutVault(v *Vault) error {
	return s.kv.SetEntity(namespaceVault, vaultKey(v.ID), newStoredVault(v))
}

func (s *Store) GetUserIndex(owner Identity) ([]uint64, error) {
	var out storedIndex
	ok, err := s.kv.GetEntity(namespaceUserIndex, owner.String(), &out)
	if err != nil || !ok {
		return nil, err
	}
	return out.IDs, nil
}

func (s *Store) PutUserIndex(owner Identity, ids []uint64) error {
	return s.kv.SetEntity(namespaceUserIndex, owner.String(), storedIndex{IDs: ids})
}
