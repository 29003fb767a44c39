package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventParticipantJoined  SSEEvent = "GroupParticipantJoined"
	SSEEventGroupStatusChanged SSEEvent = "GroupStatusChanged"
	SSEEventChatMessageCreated SSEEvent = "GroupChatMessageCreated"
	SSEEventPaymentUpdated     SSEEvent = "GroupPaymentUpdated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// GroupChannel names the fanout channel carrying all realtime events of one
// group order.
func GroupChannel(groupID uuid.UUID) string {
	return "group:" + groupID.String()
}
