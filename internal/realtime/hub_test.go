package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := GroupChannel(uuid.New())

	clientA := hub.NewSSEClient()
	hub.AddChannel(clientA, channel)

	first := SSEMessage{Channel: channel, Event: SSEEventParticipantJoined, Data: map[string]any{"seq": 1}}
	second := SSEMessage{Channel: channel, Event: SSEEventGroupStatusChanged, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != SSEEventParticipantJoined {
		t.Fatalf("first event: want=%s got=%s", SSEEventParticipantJoined, gotFirst.Event)
	}
	if gotSecond.Event != SSEEventGroupStatusChanged {
		t.Fatalf("second event: want=%s got=%s", SSEEventGroupStatusChanged, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient()
	hub.AddChannel(clientB, channel)
	reconnect := SSEMessage{Channel: channel, Event: SSEEventChatMessageCreated, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventChatMessageCreated {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventChatMessageCreated, gotReconnect.Event)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	groupA := GroupChannel(uuid.New())
	groupB := GroupChannel(uuid.New())

	clientA := hub.NewSSEClient()
	hub.AddChannel(clientA, groupA)
	clientB := hub.NewSSEClient()
	hub.AddChannel(clientB, groupB)

	hub.Broadcast(SSEMessage{Channel: groupA, Event: SSEEventPaymentUpdated, Data: map[string]any{"x": 1}})

	got := recvMessage(t, clientA.Outbound, time.Second)
	if got.Channel != groupA {
		t.Fatalf("channel: want=%s got=%s", groupA, got.Channel)
	}
	select {
	case msg := <-clientB.Outbound:
		t.Fatalf("clientB should not receive messages for %s, got event=%s", groupA, msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := GroupChannel(uuid.New())
	client := hub.NewSSEClient()
	hub.AddChannel(client, channel)

	// Nothing drains Outbound here, so everything past the buffer must be
	// dropped rather than block Broadcast.
	for i := 0; i < cap(client.Outbound)+10; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventChatMessageCreated, Data: map[string]any{"seq": i}})
	}

	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("outbound length: want=%d got=%d", cap(client.Outbound), got)
	}
}
