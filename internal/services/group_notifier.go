package services

import (
	"context"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime/bus"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// SSEEmitter publishes a realtime message toward connected clients.
type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type busEmitter struct {
	log *logger.Logger
	bus bus.Bus
}

// NewBusEmitter routes realtime messages through the injected bus; delivery
// problems are logged and swallowed so no core mutation depends on them.
func NewBusEmitter(log *logger.Logger, b bus.Bus) SSEEmitter {
	return &busEmitter{log: log.With("service", "BusEmitter"), bus: b}
}

func (e *busEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, msg); err != nil {
		e.log.Warn("SSE publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}

// GroupNotifier pushes group lifecycle and chat events onto the group's
// realtime channel.
type GroupNotifier interface {
	ParticipantJoined(group *types.GroupOrder, participant *types.Participant)
	StatusChanged(group *types.GroupOrder)
	PaymentUpdated(group *types.GroupOrder, participant *types.Participant)
	MessageCreated(group *types.GroupOrder, msg *types.ChatMessage)
}

type groupNotifier struct {
	emit SSEEmitter
}

func NewGroupNotifier(emit SSEEmitter) GroupNotifier {
	return &groupNotifier{emit: emit}
}

func (n *groupNotifier) ParticipantJoined(group *types.GroupOrder, participant *types.Participant) {
	if n == nil || n.emit == nil || group == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.GroupChannel(group.ID),
		Event:   realtime.SSEEventParticipantJoined,
		Data: map[string]any{
			"group_id":           group.ID,
			"current_qty":        group.CurrentQty,
			"current_unit_price": group.CurrentUnitPrice,
			"status":             group.Status,
			"participant_name":   participant.DisplayName(),
			"qty":                participant.Qty,
		},
	})
}

func (n *groupNotifier) StatusChanged(group *types.GroupOrder) {
	if n == nil || n.emit == nil || group == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.GroupChannel(group.ID),
		Event:   realtime.SSEEventGroupStatusChanged,
		Data: map[string]any{
			"group_id": group.ID,
			"status":   group.Status,
		},
	})
}

func (n *groupNotifier) PaymentUpdated(group *types.GroupOrder, participant *types.Participant) {
	if n == nil || n.emit == nil || group == nil || participant == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.GroupChannel(group.ID),
		Event:   realtime.SSEEventPaymentUpdated,
		Data: map[string]any{
			"group_id":       group.ID,
			"participant_id": participant.ID,
			"payment_status": participant.PaymentStatus,
		},
	})
}

func (n *groupNotifier) MessageCreated(group *types.GroupOrder, msg *types.ChatMessage) {
	if n == nil || n.emit == nil || group == nil || msg == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.GroupChannel(group.ID),
		Event:   realtime.SSEEventChatMessageCreated,
		Data:    map[string]any{"message": msg},
	})
}
