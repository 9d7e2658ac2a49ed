package vaultrpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"nhbchain/crypto"
	"nhbchain/native/vault"
)

type handlerFunc func(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error)

type methodEntry struct {
	fn handlerFunc
	// authenticated methods require a verified bearer token; the decoded
	// subject becomes the caller identity passed to the engine. Pure
	// queries are unauthenticated, matching spec §6's read/write split.
	authenticated bool
}

var methodTable = map[string]methodEntry{
	"initialize":               {fn: handleInitialize, authenticated: true},
	"propose_new_admin":        {fn: handleProposeNewAdmin, authenticated: true},
	"accept_ownership":         {fn: handleAcceptOwnership, authenticated: true},
	"create_vault_full":        {fn: handleCreateVaultFull, authenticated: true},
	"create_vault_lazy":        {fn: handleCreateVaultLazy, authenticated: true},
	"batch_create_vaults_full": {fn: handleBatchCreateVaultsFull, authenticated: true},
	"batch_create_vaults_lazy": {fn: handleBatchCreateVaultsLazy, authenticated: true},
	"initialize_vault_metadata": {fn: handleInitializeVaultMetadata, authenticated: true},
	"transfer_beneficiary":     {fn: handleTransferBeneficiary, authenticated: true},
	"freeze_vault":             {fn: handleFreezeVault, authenticated: true},
	"unfreeze_vault":           {fn: handleUnfreezeVault, authenticated: true},
	"revoke_tokens":            {fn: handleRevokeTokens, authenticated: true},
	"migrate_liquidity":        {fn: handleMigrateLiquidity, authenticated: true},
	"pause":                    {fn: handlePause, authenticated: true},
	"unpause":                  {fn: handleUnpause, authenticated: true},
	"unlock_milestone":         {fn: handleUnlockMilestone, authenticated: true},

	"claim_tokens":     {fn: handleClaimTokens, authenticated: true},
	"claim_as_delegate": {fn: handleClaimAsDelegate, authenticated: true},
	"set_delegate":     {fn: handleSetDelegate, authenticated: true},

	"get_admin":            {fn: handleGetAdmin},
	"get_proposed_admin":   {fn: handleGetProposedAdmin},
	"get_vault":            {fn: handleGetVault},
	"get_user_vaults":      {fn: handleGetUserVaults},
	"get_contract_state":   {fn: handleGetContractState},
	"check_invariant":      {fn: handleCheckInvariant},
	"is_deprecated":        {fn: handleIsDeprecated},
	"get_migration_target": {fn: handleGetMigrationTarget},

	"initialize_grant":  {fn: handleInitializeGrant, authenticated: true},
	"claim":             {fn: handleClaim, authenticated: true},
	"claimable_balance":  {fn: handleClaimableBalance},
	"get_grant_info":    {fn: handleGetGrantInfo},
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return errors.New("params required")
	}
	return json.Unmarshal(params, v)
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, errors.New("amount is required")
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.New("amount must be a base-10 integer string")
	}
	return amount, nil
}

func decodeAddress(raw string) (crypto.Address, error) {
	if raw == "" {
		return crypto.Address{}, errors.New("address is required")
	}
	return crypto.DecodeAddress(raw)
}

func parseCurve(raw string) (vault.Curve, error) {
	switch raw {
	case "", "linear":
		return vault.CurveLinear, nil
	case "exponential":
		return vault.CurveExponential, nil
	default:
		return 0, errors.New("curve must be linear or exponential")
	}
}

// milestoneParam is the wire shape of vault.Milestone; Unlocked is
// intentionally omitted since milestones are created locked and unlocked
// only via unlock_milestone.
type milestoneParam struct {
	Label  string `json:"label"`
	Weight uint8  `json:"weight"`
}

func toMilestones(ms []milestoneParam) []vault.Milestone {
	if len(ms) == 0 {
		return nil
	}
	out := make([]vault.Milestone, len(ms))
	for i, m := range ms {
		out[i] = vault.Milestone{Label: m.Label, Weight: m.Weight}
	}
	return out
}

type vaultOptionsParam struct {
	KeeperFee      string            `json:"keeperFee,omitempty"`
	StakedAmount   string            `json:"stakedAmount,omitempty"`
	StepDuration   *uint64           `json:"stepDuration,omitempty"`
	IsIrrevocable  bool              `json:"isIrrevocable,omitempty"`
	IsTransferable bool              `json:"isTransferable,omitempty"`
	Milestones     []milestoneParam  `json:"milestones,omitempty"`
	Title          string            `json:"title,omitempty"`
}

func toVaultOptions(p vaultOptionsParam) (vault.VaultOptions, error) {
	opts := vault.VaultOptions{
		StepDuration:   p.StepDuration,
		IsIrrevocable:  p.IsIrrevocable,
		IsTransferable: p.IsTransferable,
		Milestones:     toMilestones(p.Milestones),
		Title:          p.Title,
	}
	if p.KeeperFee != "" {
		fee, err := parseAmount(p.KeeperFee)
		if err != nil {
			return opts, err
		}
		opts.KeeperFee = fee
	}
	if p.StakedAmount != "" {
		staked, err := parseAmount(p.StakedAmount)
		if err != nil {
			return opts, err
		}
		opts.StakedAmount = staked
	}
	return opts, nil
}

func vaultJSON(v *vault.Vault) map[string]interface{} {
	out := map[string]interface{}{
		"id":             v.ID,
		"owner":          v.Owner.String(),
		"totalAmount":    v.TotalAmount.String(),
		"releasedAmount": v.ReleasedAmount.String(),
		"startTime":      v.StartTime,
		"endTime":        v.EndTime,
		"creationTime":   v.CreationTime,
		"curve":          v.Curve.String(),
		"isInitialized":  v.IsInitialized,
		"isFrozen":       v.IsFrozen,
		"isIrrevocable":  v.IsIrrevocable,
		"isTransferable": v.IsTransferable,
		"title":          v.Title,
	}
	if v.Delegate != nil {
		out["delegate"] = v.Delegate.String()
	}
	if v.StepDuration != nil {
		out["stepDuration"] = *v.StepDuration
	}
	if v.KeeperFee != nil {
		out["keeperFee"] = v.KeeperFee.String()
	}
	if v.StakedAmount != nil {
		out["stakedAmount"] = v.StakedAmount.String()
	}
	if len(v.Milestones) > 0 {
		milestones := make([]map[string]interface{}, len(v.Milestones))
		for i, m := range v.Milestones {
			milestones[i] = map[string]interface{}{"label": m.Label, "weight": m.Weight, "unlocked": m.Unlocked}
		}
		out["milestones"] = milestones
	}
	return out
}

// --- Admin ---

type initializeParams struct {
	InitialSupply string `json:"initialSupply"`
}

func handleInitialize(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p initializeParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	supply, err := parseAmount(p.InitialSupply)
	if err != nil {
		return nil, err
	}
	if err := s.vaultEngine.Initialize(*caller, supply); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type proposeNewAdminParams struct {
	Candidate string `json:"candidate"`
}

func handleProposeNewAdmin(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p proposeNewAdminParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	candidate, err := decodeAddress(p.Candidate)
	if err != nil {
		return nil, err
	}
	if err := s.vaultEngine.ProposeNewAdmin(*caller, candidate); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleAcceptOwnership(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	if err := s.vaultEngine.AcceptOwnership(*caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type createVaultParams struct {
	Owner   string            `json:"owner"`
	Amount  string            `json:"amount"`
	Start   uint64            `json:"start"`
	End     uint64            `json:"end"`
	Curve   string            `json:"curve"`
	Options vaultOptionsParam `json:"options"`
}

func parseCreateVaultParams(params json.RawMessage) (owner crypto.Address, amount *big.Int, curve vault.Curve, opts vault.VaultOptions, p createVaultParams, err error) {
	if err = unmarshalParams(params, &p); err != nil {
		return
	}
	if owner, err = decodeAddress(p.Owner); err != nil {
		return
	}
	if amount, err = parseAmount(p.Amount); err != nil {
		return
	}
	if curve, err = parseCurve(p.Curve); err != nil {
		return
	}
	opts, err = toVaultOptions(p.Options)
	return
}

func handleCreateVaultFull(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	owner, amount, curve, opts, p, err := parseCreateVaultParams(params)
	if err != nil {
		return nil, err
	}
	id, err := s.vaultEngine.CreateVaultFull(*caller, owner, amount, p.Start, p.End, curve, opts)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"vaultId": id}, nil
}

func handleCreateVaultLazy(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	owner, amount, curve, opts, p, err := parseCreateVaultParams(params)
	if err != nil {
		return nil, err
	}
	id, err := s.vaultEngine.CreateVaultLazy(*caller, owner, amount, p.Start, p.End, curve, opts)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"vaultId": id}, nil
}

type batchCreateVaultsParams struct {
	Specs []createVaultParams `json:"specs"`
	// IdempotencyKey, when set, must be a UUID; a repeated call with the same
	// key returns the vault ids from the first attempt instead of re-running
	// the batch, so a client retrying after a dropped response cannot
	// allocate a second set of vaults.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

func toCreateSpecs(raw []createVaultParams) ([]vault.CreateSpec, error) {
	specs := make([]vault.CreateSpec, len(raw))
	for i, p := range raw {
		owner, err := decodeAddress(p.Owner)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		curve, err := parseCurve(p.Curve)
		if err != nil {
			return nil, err
		}
		opts, err := toVaultOptions(p.Options)
		if err != nil {
			return nil, err
		}
		specs[i] = vault.CreateSpec{Owner: owner, Amount: amount, Start: p.Start, End: p.End, Curve: curve, Options: opts}
	}
	return specs, nil
}

// withBatchIdempotency validates a client-supplied idempotency key (when
// present, it must be a well-formed UUID) and short-circuits a retried
// batch-create call with the same key to the vault ids the first attempt
// produced, instead of re-running the batch and allocating a second set of
// vaults for it.
func (s *Server) withBatchIdempotency(key string, run func() ([]uint64, error)) ([]uint64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return run()
	}
	if _, err := uuid.Parse(key); err != nil {
		return nil, errors.New("idempotencyKey must be a valid UUID")
	}

	s.idempotencyMu.Lock()
	if cached, ok := s.idempotencyCache[key]; ok {
		s.idempotencyMu.Unlock()
		return cached, nil
	}
	s.idempotencyMu.Unlock()

	ids, err := run()
	if err != nil {
		return nil, err
	}

	s.idempotencyMu.Lock()
	if s.idempotencyCache == nil {
		s.idempotencyCache = make(map[string][]uint64)
	}
	s.idempotencyCache[key] = ids
	s.idempotencyMu.Unlock()
	return ids, nil
}

func handleBatchCreateVaultsFull(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p batchCreateVaultsParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	specs, err := toCreateSpecs(p.Specs)
	if err != nil {
		return nil, err
	}
	ids, err := s.withBatchIdempotency(p.IdempotencyKey, func() ([]uint64, error) {
		return s.vaultEngine.BatchCreateVaultsFull(*caller, specs)
	})
	if err != nil {
		return nil, err
	}
	return map[string][]uint64{"vaultIds": ids}, nil
}

func handleBatchCreateVaultsLazy(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p batchCreateVaultsParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	specs, err := toCreateSpecs(p.Specs)
	if err != nil {
		return nil, err
	}
	ids, err := s.withBatchIdempotency(p.IdempotencyKey, func() ([]uint64, error) {
		return s.vaultEngine.BatchCreateVaultsLazy(*caller, specs)
	})
	if err != nil {
		return nil, err
	}
	return map[string][]uint64{"vaultIds": ids}, nil
}

type vaultIDParams struct {
	VaultID uint64 `json:"vaultId"`
}

func handleInitializeVaultMetadata(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p vaultIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	promoted, err := s.vaultEngine.InitializeVaultMetadata(*caller, p.VaultID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"promoted": promoted}, nil
}

type transferBeneficiaryParams struct {
	VaultID  uint64 `json:"vaultId"`
	NewOwner string `json:"newOwner"`
}

func handleTransferBeneficiary(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p transferBeneficiaryParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	newOwner, err := decodeAddress(p.NewOwner)
	if err != nil {
		return nil, err
	}
	if err := s.vaultEngine.TransferBeneficiary(*caller, p.VaultID, newOwner); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleFreezeVault(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p vaultIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.vaultEngine.FreezeVault(*caller, p.VaultID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleUnfreezeVault(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p vaultIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.vaultEngine.UnfreezeVault(*caller, p.VaultID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleRevokeTokens(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p vaultIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	reclaimed, err := s.vaultEngine.RevokeTokens(*caller, p.VaultID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"reclaimed": reclaimed.String()}, nil
}

type migrateLiquidityParams struct {
	Successor string `json:"successor"`
}

func handleMigrateLiquidity(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p migrateLiquidityParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	successor, err := decodeAddress(p.Successor)
	if err != nil {
		return nil, err
	}
	if err := s.vaultEngine.MigrateLiquidity(*caller, successor); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handlePause(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	if err := s.vaultEngine.Pause(*caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleUnpause(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	if err := s.vaultEngine.Unpause(*caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type unlockMilestoneParams struct {
	VaultID uint64 `json:"vaultId"`
	Label   string `json:"label"`
}

func handleUnlockMilestone(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p unlockMilestoneParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.vaultEngine.UnlockMilestone(*caller, p.VaultID, p.Label); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// --- Owner / delegate ---

type claimTokensParams struct {
	VaultID uint64 `json:"vaultId"`
	Amount  string `json:"amount"`
}

func handleClaimTokens(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p claimTokensParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	claimed, err := s.vaultEngine.ClaimTokens(*caller, p.VaultID, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimed": claimed.String()}, nil
}

func handleClaimAsDelegate(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p claimTokensParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	claimed, err := s.vaultEngine.ClaimAsDelegate(*caller, p.VaultID, amount)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimed": claimed.String()}, nil
}

type setDelegateParams struct {
	VaultID  uint64  `json:"vaultId"`
	Delegate *string `json:"delegate"`
}

func handleSetDelegate(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p setDelegateParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	var delegate *crypto.Address
	if p.Delegate != nil && *p.Delegate != "" {
		d, err := decodeAddress(*p.Delegate)
		if err != nil {
			return nil, err
		}
		delegate = &d
	}
	if err := s.vaultEngine.SetDelegate(*caller, p.VaultID, delegate); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// --- Queries (pure) ---

func handleGetAdmin(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	admin, err := s.vaultEngine.GetAdmin()
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return map[string]interface{}{"admin": nil}, nil
	}
	return map[string]interface{}{"admin": admin.String()}, nil
}

func handleGetProposedAdmin(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	proposed, err := s.vaultEngine.GetProposedAdmin()
	if err != nil {
		return nil, err
	}
	if proposed == nil {
		return map[string]interface{}{"proposedAdmin": nil}, nil
	}
	return map[string]interface{}{"proposedAdmin": proposed.String()}, nil
}

func handleGetVault(s *Server, _ *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p vaultIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	v, err := s.vaultEngine.GetVault(p.VaultID)
	if err != nil {
		return nil, err
	}
	return vaultJSON(v), nil
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func handleGetUserVaults(s *Server, _ *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p ownerParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	owner, err := decodeAddress(p.Owner)
	if err != nil {
		return nil, err
	}
	ids, err := s.vaultEngine.GetUserVaults(owner)
	if err != nil {
		return nil, err
	}
	return map[string][]uint64{"vaultIds": ids}, nil
}

func handleGetContractState(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	state, err := s.vaultEngine.GetContractState()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"totalLocked":  state.TotalLocked.String(),
		"totalClaimed": state.TotalClaimed.String(),
		"adminBalance": state.AdminBalance.String(),
	}, nil
}

func handleCheckInvariant(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	ok, err := s.vaultEngine.CheckInvariant()
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": ok}, nil
}

func handleIsDeprecated(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	deprecated, err := s.vaultEngine.IsDeprecated()
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deprecated": deprecated}, nil
}

func handleGetMigrationTarget(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	target, err := s.vaultEngine.GetMigrationTarget()
	if err != nil {
		return nil, err
	}
	if target == nil {
		return map[string]interface{}{"migrationTarget": nil}, nil
	}
	return map[string]interface{}{"migrationTarget": target.String()}, nil
}

// --- Grant variant ---

type initializeGrantParams struct {
	Recipient string `json:"recipient"`
	Total     string `json:"total"`
	Duration  uint64 `json:"durationSeconds"`
}

func handleInitializeGrant(s *Server, caller *crypto.Address, params json.RawMessage) (interface{}, error) {
	var p initializeGrantParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	recipient, err := decodeAddress(p.Recipient)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount(p.Total)
	if err != nil {
		return nil, err
	}
	if err := s.grantEngine.InitializeGrant(recipient, total, p.Duration); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleClaim(s *Server, caller *crypto.Address, _ json.RawMessage) (interface{}, error) {
	claimed, err := s.grantEngine.Claim(*caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimed": claimed.String()}, nil
}

func handleClaimableBalance(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	balance, err := s.grantEngine.ClaimableBalance()
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimable": balance.String()}, nil
}

func handleGetGrantInfo(s *Server, _ *crypto.Address, _ json.RawMessage) (interface{}, error) {
	info, err := s.grantEngine.GetGrantInfo()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"recipient": info.Recipient.String(),
		"total":     info.Total.String(),
		"start":     info.Start,
		"end":       info.End,
		"claimed":   info.Claimed.String(),
	}, nil
}
