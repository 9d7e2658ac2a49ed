package grant

import (
	"math/big"
	"sync"
	"time"

	"nhbchain/core/events"
	"nhbchain/native/vault"
)

type engineState interface {
	GetRecipient() (*Identity, error)
	SetRecipient(Identity) error
	GetTotal() (*big.Int, bool, error)
	SetTotal(*big.Int) error
	GetStart() (uint64, error)
	SetStart(uint64) error
	GetEnd() (uint64, error)
	SetEnd(uint64) error
	GetClaimed() (*big.Int, bool, error)
	SetClaimed(*big.Int) error
}

// Engine implements the single-beneficiary grant variant: the same linear
// vesting math as the vault package (vault.Vested with CurveLinear), applied
// to one recipient and one running claimed total instead of a fleet of
// vaults.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	mu      sync.Mutex
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(em events.Emitter) {
	if em == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = em
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// InitializeGrant configures the deployment's five singletons. It may run
// exactly once; a second call fails AlreadyInitialized.
func (e *Engine) InitializeGrant(recipient Identity, total *big.Int, durationSeconds uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	existing, err := e.state.GetRecipient()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}
	if total == nil || total.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if durationSeconds == 0 || durationSeconds > vault.MaxDuration {
		return ErrInvalidDuration
	}
	now := uint64(e.nowFn())
	start := now
	end := now + durationSeconds

	if err := e.state.SetRecipient(recipient); err != nil {
		return err
	}
	if err := e.state.SetTotal(new(big.Int).Set(total)); err != nil {
		return err
	}
	if err := e.state.SetStart(start); err != nil {
		return err
	}
	if err := e.state.SetEnd(end); err != nil {
		return err
	}
	if err := e.state.SetClaimed(big.NewInt(0)); err != nil {
		return err
	}
	e.emitter.Emit(wrapEvent(grantInitializedEvent(recipient, total.String(), start, end, e.nowFn())))
	return nil
}

func (e *Engine) claimableLocked() (*big.Int, uint64, uint64, *big.Int, error) {
	total, ok, err := e.state.GetTotal()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	if !ok {
		return nil, 0, 0, nil, ErrNotInitialized
	}
	start, err := e.state.GetStart()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	end, err := e.state.GetEnd()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	claimed, _, err := e.state.GetClaimed()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	return total, start, end, claimed, nil
}

// Claim requires the caller to equal the configured recipient, computes
// vested(now, Linear) - claimed, and fails InvalidAmount if nothing is
// claimable.
func (e *Engine) Claim(caller Identity) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	recipient, err := e.state.GetRecipient()
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrNotInitialized
	}
	if caller.Prefix() != recipient.Prefix() || string(caller.Bytes()) != string(recipient.Bytes()) {
		return nil, ErrUnauthorized
	}

	total, start, end, claimed, err := e.claimableLocked()
	if err != nil {
		return nil, err
	}
	now := uint64(e.nowFn())
	vested := vault.Vested(total, start, end, now, vault.CurveLinear)
	claimable := new(big.Int).Sub(vested, claimed)
	if claimable.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	newClaimed := new(big.Int).Add(claimed, claimable)
	if err := e.state.SetClaimed(newClaimed); err != nil {
		return nil, err
	}
	e.emitter.Emit(wrapEvent(grantClaimedEvent(*recipient, claimable.String(), e.nowFn())))
	return claimable, nil
}

// ClaimableBalance is a pure query: vested(now, Linear) - claimed.
func (e *Engine) ClaimableBalance() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	total, start, end, claimed, err := e.claimableLocked()
	if err != nil {
		return nil, err
	}
	now := uint64(e.nowFn())
	vested := vault.Vested(total, start, end, now, vault.CurveLinear)
	claimable := new(big.Int).Sub(vested, claimed)
	if claimable.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return claimable, nil
}

// GrantInfo is the read-only snapshot returned by GetGrantInfo.
type GrantInfo struct {
	Recipient Identity
	Total     *big.Int
	Start     uint64
	End       uint64
	Claimed   *big.Int
}

// GetGrantInfo returns the full configuration and progress of the grant.
func (e *Engine) GetGrantInfo() (*GrantInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	recipient, err := e.state.GetRecipient()
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrNotInitialized
	}
	total, start, end, claimed, err := e.claimableLocked()
	if err != nil {
		return nil, err
	}
	return &GrantInfo{
		Recipient: *recipient,
		Total:     total,
		Start:     start,
		End:       end,
		Claimed:   claimed,
	}, nil
}
