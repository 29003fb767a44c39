package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

func chatMsg(at time.Time) *types.ChatMessage {
	return &types.ChatMessage{
		ID:           uuid.New(),
		GroupOrderID: uuid.New(),
		AuthorType:   types.ChatAuthorParticipant,
		AuthorName:   "Awa",
		Text:         "bonjour",
		CreatedAt:    at,
	}
}

func TestCursorDeduplicatesByID(t *testing.T) {
	c := newCursor(time.Time{}, 2*time.Second)
	msg := chatMsg(time.Now())

	if !c.Observe(msg) {
		t.Fatalf("first observation should be new")
	}
	if c.Observe(msg) {
		t.Fatalf("second observation of the same id should be dropped")
	}
}

func TestCursorWatermarkOnlyMovesForward(t *testing.T) {
	base := time.Now()
	c := newCursor(time.Time{}, 2*time.Second)

	c.Observe(chatMsg(base))
	c.Observe(chatMsg(base.Add(-time.Minute)))

	if got := c.Watermark(); !got.Equal(base) {
		t.Fatalf("watermark: want=%v got=%v", base, got)
	}
}

func TestCursorPollSinceAppliesOverlap(t *testing.T) {
	c := newCursor(time.Time{}, 2*time.Second)

	if got := c.PollSince(); got != nil {
		t.Fatalf("zero watermark should poll from the beginning, got=%v", got)
	}

	base := time.Now()
	c.Observe(chatMsg(base))
	since := c.PollSince()
	if since == nil {
		t.Fatalf("expected a poll lower bound after observing a message")
	}
	if want := base.Add(-2 * time.Second); !since.Equal(want) {
		t.Fatalf("poll since: want=%v got=%v", want, since)
	}
}
