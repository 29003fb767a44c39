package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// cursor is the deduplication + watermark state shared by every transport a
// feed runs over. Polls re-read a small overlap window behind the watermark,
// so the cursor keeps recently-seen IDs around long enough to drop the
// duplicates that overlap produces.
type cursor struct {
	mu        sync.Mutex
	watermark time.Time
	seen      map[uuid.UUID]time.Time
	overlap   time.Duration
}

func newCursor(since time.Time, overlap time.Duration) *cursor {
	return &cursor{
		watermark: since,
		seen:      make(map[uuid.UUID]time.Time),
		overlap:   overlap,
	}
}

// Observe records a message and reports whether it is new. The watermark
// only moves forward.
func (c *cursor) Observe(msg *types.ChatMessage) bool {
	if msg == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[msg.ID]; dup {
		return false
	}
	c.seen[msg.ID] = msg.CreatedAt
	if msg.CreatedAt.After(c.watermark) {
		c.watermark = msg.CreatedAt
	}
	c.prune()
	return true
}

// PollSince is the exclusive lower bound a poll should use: the watermark
// pulled back by the overlap window, so messages committed with slightly
// earlier timestamps are not skipped when switching transports.
func (c *cursor) PollSince() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watermark.IsZero() {
		return nil
	}
	since := c.watermark.Add(-c.overlap)
	return &since
}

func (c *cursor) Watermark() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// prune drops seen entries that fell behind the overlap window; they can no
// longer be re-delivered by a poll. Caller holds the lock.
func (c *cursor) prune() {
	if len(c.seen) < 1024 {
		return
	}
	cutoff := c.watermark.Add(-2 * c.overlap)
	for id, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, id)
		}
	}
}
