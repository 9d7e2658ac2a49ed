package grant

import (
	"strconv"

	"nhbchain/core/events"
	"nhbchain/core/types"
)

const (
	EventTypeGrantInitialized = "grant.grant.initialized"
	EventTypeGrantClaimed     = "grant.grant.claimed"
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

func wrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func grantInitializedEvent(recipient Identity, total string, start, end uint64, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeGrantInitialized,
		Attributes: map[string]string{
			"recipient": recipient.String(),
			"total":     total,
			"start":     strconv.FormatUint(start, 10),
			"end":       strconv.FormatUint(end, 10),
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}

func grantClaimedEvent(recipient Identity, amount string, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeGrantClaimed,
		Attributes: map[string]string{
			"recipient": recipient.String(),
			"amount":    amount,
			"timestamp": strconv.FormatInt(now, 10),
		},
	}
}
