package feed

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// HubSource adapts the SSE hub into a PushSource: it subscribes a hub client
// to the group channel and surfaces chat-message events as typed messages.
type HubSource struct {
	Hub *realtime.SSEHub
}

func NewHubSource(hub *realtime.SSEHub) *HubSource {
	return &HubSource{Hub: hub}
}

func (s *HubSource) Subscribe(ctx context.Context, groupID uuid.UUID) (<-chan *types.ChatMessage, func(), error) {
	if s == nil || s.Hub == nil {
		return nil, nil, errNoPush
	}
	client := s.Hub.NewSSEClient()
	s.Hub.AddChannel(client, realtime.GroupChannel(groupID))

	out := make(chan *types.ChatMessage, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-client.Outbound:
				if !ok {
					return
				}
				if msg.Event != realtime.SSEEventChatMessageCreated {
					continue
				}
				cm := decodeChatMessage(msg.Data)
				if cm == nil {
					continue
				}
				select {
				case out <- cm:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() { s.Hub.CloseClient(client) }
	return out, cancel, nil
}

// decodeChatMessage tolerates both in-process payloads (typed message under
// the "message" key) and payloads that round-tripped through the bus as
// generic JSON.
func decodeChatMessage(data any) *types.ChatMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var envelope struct {
		Message *types.ChatMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return envelope.Message
}
