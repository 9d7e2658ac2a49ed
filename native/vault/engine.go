package vault

import (
	"math/big"
	"sync"
	"time"

	"nhbchain/core/events"
	"nhbchain/core/types"
	"nhbchain/observability/metrics"
)

// engineState is the narrow persistence surface the engine depends on; it is
// satisfied by *Store but kept as an interface so tests can substitute a
// fake without touching the RLP/KV machinery.
type engineState interface {
	GetInitialSupply() (*big.Int, bool, error)
	SetInitialSupply(*big.Int) error

	GetAdminBalance() (*big.Int, bool, error)
	SetAdminBalance(*big.Int) error

	GetAdminAddress() (*Identity, error)
	SetAdminAddress(Identity) error

	GetProposedAdmin() (*Identity, error)
	SetProposedAdmin(*Identity) error

	GetVaultCount() (uint64, error)
	SetVaultCount(uint64) error

	GetIsDeprecated() (bool, error)
	SetIsDeprecated(bool) error

	GetMigrationTarget() (*Identity, error)
	SetMigrationTarget(Identity) error

	GetPaused() (bool, error)
	SetPaused(bool) error

	GetVault(id uint64) (*Vault, bool, error)
	PutVault(*Vault) error

	GetUserIndex(owner Identity) ([]uint64, error)
	PutUserIndex(owner Identity, ids []uint64) error
}

// Engine implements the vault ledger's lifecycle, admin handover, claim
// protocol, and invariant/query surface. A single Engine instance owns one
// logical deployment; concurrent invocations are serialized by mu, mirroring
// the single-threaded-per-invocation model the host environment provides.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	telemetry *metrics.VaultMetrics
	mu        sync.Mutex
}

// NewEngine constructs an Engine with default dependencies; call SetState
// before issuing any operation.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		telemetry: metrics.Vault(),
	}
}

// SetState configures the persistence backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event sink; a nil emitter reverts to a no-op.
func (e *Engine) SetEmitter(em events.Emitter) {
	if em == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = em
}

// SetNowFunc overrides the clock; tests use this for deterministic timelines.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	e.emitter.Emit(wrapEvent(evt))
}

// bigFloat converts an accounting amount to float64 for metrics export only;
// it is lossy by design and never used for accounting decisions.
func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (e *Engine) checkNotDeprecated() error {
	deprecated, err := e.state.GetIsDeprecated()
	if err != nil {
		return err
	}
	if deprecated {
		return ErrDeprecated
	}
	return nil
}

func (e *Engine) checkNotPaused() error {
	paused, err := e.state.GetPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func (e *Engine) requireAdminCaller(caller Identity) error {
	admin, err := e.state.GetAdminAddress()
	if err != nil {
		return err
	}
	return requireAdmin(admin, caller)
}

// Initialize sets the deployment's singleton state. It may run exactly once
// per deployment; a second call fails AlreadyInitialized.
func (e *Engine) Initialize(admin Identity, initialSupply *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if initialSupply == nil || initialSupply.Sign() < 0 {
		return ErrInvalidAmount
	}
	existing, err := e.state.GetAdminAddress()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}
	if err := e.state.SetAdminAddress(admin); err != nil {
		return err
	}
	if err := e.state.SetInitialSupply(new(big.Int).Set(initialSupply)); err != nil {
		return err
	}
	if err := e.state.SetAdminBalance(new(big.Int).Set(initialSupply)); err != nil {
		return err
	}
	e.telemetry.SetInitialSupply(bigFloat(initialSupply))
	e.telemetry.SetAdminBalance(bigFloat(initialSupply))
	return e.state.SetVaultCount(0)
}

func validateWindow(start, end uint64) error {
	if end <= start {
		return ErrInvalidDuration
	}
	if end-start > MaxDuration {
		return ErrInvalidDuration
	}
	return nil
}

func (e *Engine) nextVaultID() (uint64, error) {
	id, err := e.state.GetVaultCount()
	if err != nil {
		return 0, err
	}
	if err := e.state.SetVaultCount(id + 1); err != nil {
		return 0, err
	}
	return id, nil
}

func (e *Engine) appendUserIndex(owner Identity, id uint64) error {
	ids, err := e.state.GetUserIndex(owner)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	return e.state.PutUserIndex(owner, ids)
}

func (e *Engine) removeUserIndex(owner Identity, id uint64) error {
	ids, err := e.state.GetUserIndex(owner)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing == id {
			continue
		}
		out = append(out, existing)
	}
	return e.state.PutUserIndex(owner, out)
}

// createVault is the shared implementation behind CreateVaultFull and
// CreateVaultLazy; lazy differs only in is_initialized and index deferral.
func (e *Engine) createVault(caller, owner Identity, amount *big.Int, start, end uint64, curve Curve, opts VaultOptions, lazy bool) (uint64, error) {
	if err := e.requireAdminCaller(caller); err != nil {
		return 0, err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := validateWindow(start, end); err != nil {
		return 0, err
	}
	if !curve.Valid() {
		return 0, ErrInvalidAmount
	}
	if err := validateMilestones(opts.Milestones); err != nil {
		return 0, err
	}
	balance, _, err := e.state.GetAdminBalance()
	if err != nil {
		return 0, err
	}
	if amount.Cmp(balance) > 0 {
		return 0, ErrInsufficientFunds
	}

	id, err := e.nextVaultID()
	if err != nil {
		return 0, err
	}

	v := &Vault{
		ID:             id,
		Owner:          owner,
		TotalAmount:    new(big.Int).Set(amount),
		ReleasedAmount: big.NewInt(0),
		KeeperFee:      opts.KeeperFee,
		StakedAmount:   opts.StakedAmount,
		StartTime:      start,
		EndTime:        end,
		CreationTime:   uint64(e.nowFn()),
		StepDuration:   opts.StepDuration,
		Curve:          curve,
		IsInitialized:  !lazy,
		IsFrozen:       false,
		IsIrrevocable:  opts.IsIrrevocable,
		IsTransferable: opts.IsTransferable,
		Milestones:     opts.Milestones,
		Title:          opts.Title,
	}
	if err := e.state.PutVault(v); err != nil {
		return 0, err
	}
	if err := e.state.SetAdminBalance(new(big.Int).Sub(balance, amount)); err != nil {
		return 0, err
	}
	if !lazy {
		if err := e.appendUserIndex(owner, id); err != nil {
			return 0, err
		}
	}
	e.emit(vaultCreatedEvent(id, owner, v.TotalAmount.String(), start, end, curve, e.nowFn()))
	e.telemetry.ObserveVaultCreated(curve.String())
	e.telemetry.SetAdminBalance(bigFloat(new(big.Int).Sub(balance, amount)))
	return id, nil
}

// CreateVaultFull creates an active vault, writing it into the owner's
// index immediately.
func (e *Engine) CreateVaultFull(caller, owner Identity, amount *big.Int, start, end uint64, curve Curve, opts VaultOptions) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	return e.createVault(caller, owner, amount, start, end, curve, opts, false)
}

// CreateVaultLazy creates a dormant vault; the owner's index write is
// deferred until InitializeVaultMetadata promotes it.
func (e *Engine) CreateVaultLazy(caller, owner Identity, amount *big.Int, start, end uint64, curve Curve, opts VaultOptions) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	return e.createVault(caller, owner, amount, start, end, curve, opts, true)
}

// CreateSpec bundles one batch-creation request.
type CreateSpec struct {
	Owner   Identity
	Amount  *big.Int
	Start   uint64
	End     uint64
	Curve   Curve
	Options VaultOptions
}

// BatchCreateVaultsFull validates the aggregate amount against admin_balance
// once, then applies every creation; either the whole batch commits or none
// does.
func (e *Engine) BatchCreateVaultsFull(caller Identity, specs []CreateSpec) ([]uint64, error) {
	return e.batchCreateVaults(caller, specs, false)
}

// BatchCreateVaultsLazy is the lazy counterpart of BatchCreateVaultsFull.
func (e *Engine) BatchCreateVaultsLazy(caller Identity, specs []CreateSpec) ([]uint64, error) {
	return e.batchCreateVaults(caller, specs, true)
}

func (e *Engine) batchCreateVaults(caller Identity, specs []CreateSpec, lazy bool) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return nil, err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, spec := range specs {
		if spec.Amount == nil || spec.Amount.Sign() <= 0 {
			return nil, ErrInvalidAmount
		}
		if err := validateWindow(spec.Start, spec.End); err != nil {
			return nil, err
		}
		if !spec.Curve.Valid() {
			return nil, ErrInvalidAmount
		}
		if err := validateMilestones(spec.Options.Milestones); err != nil {
			return nil, err
		}
		total.Add(total, spec.Amount)
	}
	balance, _, err := e.state.GetAdminBalance()
	if err != nil {
		return nil, err
	}
	if total.Cmp(balance) > 0 {
		return nil, ErrInsufficientFunds
	}

	ids := make([]uint64, 0, len(specs))
	for _, spec := range specs {
		id, err := e.createVault(caller, spec.Owner, spec.Amount, spec.Start, spec.End, spec.Curve, spec.Options, lazy)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InitializeVaultMetadata is the idempotent lazy-vault promoter: the first
// call writes the owner's index entry and returns true; later calls are a
// no-op and return false. Restricted to admin or the vault's owner to avoid
// unbounded external writes to other users' indexes.
func (e *Engine) InitializeVaultMetadata(caller Identity, vaultID uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false, errNilState
	}
	if err := e.checkNotDeprecated(); err != nil {
		return false, err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrVaultNotFound
	}
	admin, err := e.state.GetAdminAddress()
	if err != nil {
		return false, err
	}
	isAdmin := admin != nil && identityEqual(*admin, caller)
	if !isAdmin && !identityEqual(v.Owner, caller) {
		return false, ErrUnauthorized
	}
	if v.IsInitialized {
		return false, nil
	}
	v.IsInitialized = true
	if err := e.state.PutVault(v); err != nil {
		return false, err
	}
	if err := e.appendUserIndex(v.Owner, v.ID); err != nil {
		return false, err
	}
	return true, nil
}

// TransferBeneficiary moves ownership of a vault. If the vault is active,
// the id is moved between the old and new owner's indexes; if lazy, only
// the owner field changes, since the index is lazy-correct by construction.
func (e *Engine) TransferBeneficiary(caller Identity, vaultID uint64, newOwner Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	oldOwner := v.Owner
	if v.IsInitialized {
		if err := e.removeUserIndex(oldOwner, vaultID); err != nil {
			return err
		}
		if err := e.appendUserIndex(newOwner, vaultID); err != nil {
			return err
		}
	}
	v.Owner = newOwner
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(beneficiaryChangedEvent(vaultID, oldOwner, newOwner, e.nowFn()))
	return nil
}

// SetDelegate sets or clears the vault's delegate. Owner-only.
func (e *Engine) SetDelegate(caller Identity, vaultID uint64, delegate *Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.checkNotDeprecated(); err != nil {
		return err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	if err := requireOwner(v, caller); err != nil {
		return err
	}
	v.Delegate = delegate
	return e.state.PutVault(v)
}

// FreezeVault disables claims against the vault without touching revoke
// eligibility.
func (e *Engine) FreezeVault(caller Identity, vaultID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	if v.IsFrozen {
		return ErrVaultFrozen
	}
	v.IsFrozen = true
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(vaultFrozenEvent(vaultID, e.nowFn()))
	e.telemetry.ObserveFreeze()
	return nil
}

// UnfreezeVault re-enables claims.
func (e *Engine) UnfreezeVault(caller Identity, vaultID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	if !v.IsFrozen {
		return ErrVaultNotFrozen
	}
	v.IsFrozen = false
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(vaultUnfrozenEvent(vaultID, e.nowFn()))
	e.telemetry.ObserveUnfreeze()
	return nil
}

// RevokeTokens reclaims a vault's unreleased balance into admin_balance.
// It deliberately does not consult is_frozen: freeze blocks claims, not
// revokes. The safe sequence is freeze-then-revoke: once a freeze has been
// committed, no interleaved claim can succeed, so the following revoke
// recovers the full unreleased amount. Nothing in the engine enforces that
// order.
//
// The unreleased portion is clawed back by shrinking total_amount down to
// the current released_amount, rather than bumping released_amount up to
// total_amount: the latter would credit admin_balance with tokens that are
// simultaneously still counted in the vault's total, double-crediting them
// in the global conservation sum (and would briefly violate released ≤
// vested when the vault has not fully matured). Shrinking total_amount
// keeps both invariants intact while still marking the vault terminal,
// since total_amount == released_amount thereafter leaves nothing to
// re-revoke or further claim.
func (e *Engine) RevokeTokens(caller Identity, vaultID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return nil, err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return nil, err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if v.IsIrrevocable {
		return nil, ErrVaultIrrevocable
	}
	unreleased := new(big.Int).Sub(v.TotalAmount, v.ReleasedAmount)
	if unreleased.Sign() <= 0 {
		return nil, ErrNothingToRevoke
	}
	v.TotalAmount = new(big.Int).Set(v.ReleasedAmount)
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	balance, _, err := e.state.GetAdminBalance()
	if err != nil {
		return nil, err
	}
	if err := e.state.SetAdminBalance(new(big.Int).Add(balance, unreleased)); err != nil {
		return nil, err
	}
	e.emit(tokensRevokedEvent(vaultID, unreleased.String(), e.nowFn()))
	e.telemetry.ObserveRevoke(bigFloat(unreleased))
	e.telemetry.SetAdminBalance(bigFloat(new(big.Int).Add(balance, unreleased)))
	return unreleased, nil
}

// Pause blocks the claim path without deprecating the deployment.
func (e *Engine) Pause(caller Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	return e.state.SetPaused(true)
}

// Unpause restores the claim path.
func (e *Engine) Unpause(caller Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	return e.state.SetPaused(false)
}

// MigrateLiquidity marks the deployment deprecated and records the
// successor address. Settlement of the actual balances is an external
// collaborator's responsibility; this call only flips the durable flags
// that every subsequent mutating operation consults.
func (e *Engine) MigrateLiquidity(caller Identity, successor Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	if err := e.state.SetIsDeprecated(true); err != nil {
		return err
	}
	if err := e.state.SetMigrationTarget(successor); err != nil {
		return err
	}
	e.emit(deprecatedEvent(successor, e.nowFn()))
	return nil
}

// UnlockMilestone marks one of a vault's milestones as unlocked, admin-only.
// It supplements the continuous-curve schedule with discrete, administrator-
// triggered release fractions; a vault with no configured milestones rejects
// the call outright since its schedule is curve-driven.
func (e *Engine) UnlockMilestone(caller Identity, vaultID uint64, label string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdminCaller(caller); err != nil {
		return err
	}
	if err := e.checkNotDeprecated(); err != nil {
		return err
	}
	v, ok, err := e.state.GetVault(vaultID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVaultNotFound
	}
	if !v.HasMilestones() {
		return ErrInvalidAmount
	}
	found := false
	for i := range v.Milestones {
		if v.Milestones[i].Label == label {
			v.Milestones[i].Unlocked = true
			found = true
			break
		}
	}
	if !found {
		return ErrVaultNotFound
	}
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	e.emit(milestoneUnlockedEvent(vaultID, label, e.nowFn()))
	return nil
}
