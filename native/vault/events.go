package vault

import (
	"strconv"

	"nhbchain/core/events"
	"nhbchain/core/types"
)

const (
	EventTypeVaultCreated         = "vault.vault.created"
	EventTypeTokensClaimed        = "vault.tokens.claimed"
	EventTypeTokensRevoked        = "vault.tokens.revoked"
	EventTypeVaultFrozen          = "vault.vault.frozen"
	EventTypeVaultUnfrozen        = "vault.vault.unfrozen"
	EventTypeBeneficiaryChanged   = "vault.beneficiary.changed"
	EventTypeAdminProposed        = "vault.admin.proposed"
	EventTypeAdminAccepted        = "vault.admin.accepted"
	EventTypeDeprecated           = "vault.deprecated"
	EventTypeMilestoneUnlocked    = "vault.milestone.unlocked"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// wrapEvent converts a raw event payload into the emitter-friendly envelope.
func wrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func u64s(v uint64) string { return strconv.FormatUint(v, 10) }

func vaultCreatedEvent(id uint64, owner Identity, total string, start, end uint64, curve Curve, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeVaultCreated,
		Attributes: map[string]string{
			"vaultId":     u64s(id),
			"owner":       owner.String(),
			"totalAmount": total,
			"start":       u64s(start),
			"end":         u64s(end),
			"curve":       curve.String(),
			"timestamp":   strconv.FormatInt(now, 10),
		},
	}
}

func tokensClaimedEvent(id uint64, beneficiary Identity, amount string, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeTokensClaimed,
		Attributes: map[string]string{
			"vaultId":     u64s(id),
			"beneficiary": beneficiary.String(),
			"amount":      amount,
			"timestamp":   strconv.FormatInt(now, 10),
		},
	}
}

func tokensRevokedEvent(id uint64, amount string, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeTokensRevoked,
		Attributes: map[string]string{
			"vaultId":   u64s(id),
			"amount":    amount,
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func vaultFrozenEvent(id uint64, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeVaultFrozen,
		Attributes: map[string]string{
			"vaultId":   u64s(id),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func vaultUnfrozenEvent(id uint64, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeVaultUnfrozen,
		Attributes: map[string]string{
			"vaultId":   u64s(id),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func beneficiaryChangedEvent(id uint64, oldOwner, newOwner Identity, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeBeneficiaryChanged,
		Attributes: map[string]string{
			"vaultId":   u64s(id),
			"oldOwner":  oldOwner.String(),
			"newOwner":  newOwner.String(),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func adminProposedEvent(oldAdmin, newAdmin Identity, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeAdminProposed,
		Attributes: map[string]string{
			"oldAdmin":  oldAdmin.String(),
			"newAdmin":  newAdmin.String(),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func adminAcceptedEvent(oldAdmin, newAdmin Identity, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeAdminAccepted,
		Attributes: map[string]string{
			"oldAdmin":  oldAdmin.String(),
			"newAdmin":  newAdmin.String(),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func deprecatedEvent(successor Identity, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeDeprecated,
		Attributes: map[string]string{
			"successor": successor.String(),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func milestoneUnlockedEvent(id uint64, label string, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeMilestoneUnlocked,
		Attributes: map[string]string{
			"vaultId":   u64s(id),
			"label":     label,
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}
