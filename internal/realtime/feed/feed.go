package feed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// PushSource is the server-push delivery strategy. Subscribe returns a
// stream of new chat messages for the group plus a teardown func; a closed
// channel or an error signals transport failure.
type PushSource interface {
	Subscribe(ctx context.Context, groupID uuid.UUID) (<-chan *types.ChatMessage, func(), error)
}

// PollSource is the pull strategy: re-query the persisted log above an
// exclusive lower bound.
type PollSource interface {
	ListSince(ctx context.Context, groupID uuid.UUID, since *time.Time, limit int) ([]*types.ChatMessage, error)
}

type Options struct {
	// Since resumes delivery after a known watermark; zero means from the
	// beginning of the log.
	Since time.Time
	// PollInterval paces the fallback poller.
	PollInterval time.Duration
	// PollOverlap is how far behind the watermark each poll re-reads; the
	// cursor drops the duplicates this produces.
	PollOverlap time.Duration
	// RetryPush, when positive, is how long the feed stays on polling before
	// attempting the push transport again. Zero means never go back.
	RetryPush time.Duration
	PollLimit int
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.PollOverlap <= 0 {
		o.PollOverlap = 2 * time.Second
	}
	if o.PollLimit <= 0 {
		o.PollLimit = 100
	}
}

// Feed delivers one group's chat messages exactly once and in order to its
// output channel, starting on push and falling back to polling on any
// transport error. Both strategies share one cursor, so switching mid-stream
// produces neither gaps nor duplicates.
type Feed struct {
	log     *logger.Logger
	push    PushSource
	poll    PollSource
	groupID uuid.UUID
	opts    Options
	cursor  *cursor
	out     chan *types.ChatMessage
}

func New(log *logger.Logger, push PushSource, poll PollSource, groupID uuid.UUID, opts Options) *Feed {
	opts.applyDefaults()
	return &Feed{
		log:     log.With("component", "ChatFeed", "groupID", groupID),
		push:    push,
		poll:    poll,
		groupID: groupID,
		opts:    opts,
		cursor:  newCursor(opts.Since, opts.PollOverlap),
		out:     make(chan *types.ChatMessage, 64),
	}
}

// Messages is the deduplicated, watermark-ordered output stream. It closes
// when Run returns.
func (f *Feed) Messages() <-chan *types.ChatMessage {
	return f.out
}

// Watermark is the CreatedAt of the newest message delivered so far.
func (f *Feed) Watermark() time.Time {
	return f.cursor.Watermark()
}

// Run blocks until ctx is done, alternating transports per the fallback
// policy.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pushErr := f.runPush(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if pushErr != nil {
			f.log.Warn("push transport failed, falling back to polling", "error", pushErr)
		}

		if err := f.runPoll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn("poll transport error", "error", err)
		}
		if f.opts.RetryPush <= 0 {
			// Polling is now the permanent strategy.
			continue
		}
	}
}

// runPush subscribes, backfills the gap behind the subscription via one poll
// pass, then relays pushed messages until the transport errors.
func (f *Feed) runPush(ctx context.Context) error {
	if f.push == nil {
		return errNoPush
	}
	ch, cancel, err := f.push.Subscribe(ctx, f.groupID)
	if err != nil {
		return err
	}
	defer cancel()

	// Messages appended between the watermark and the subscription start
	// would otherwise be lost; fetch them through the poll source.
	if err := f.pollOnce(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errPushClosed
			}
			f.emit(ctx, msg)
		}
	}
}

// runPoll drives the pull strategy. When RetryPush is configured it returns
// nil after that interval so Run can attempt push again; otherwise it only
// returns on context cancellation.
func (f *Feed) runPoll(ctx context.Context) error {
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	var retry <-chan time.Time
	if f.opts.RetryPush > 0 {
		t := time.NewTimer(f.opts.RetryPush)
		defer t.Stop()
		retry = t.C
	}

	if err := f.pollOnce(ctx); err != nil && ctx.Err() != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry:
			return nil
		case <-ticker.C:
			if err := f.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return err
				}
				f.log.Warn("poll failed, will retry", "error", err)
			}
		}
	}
}

func (f *Feed) pollOnce(ctx context.Context) error {
	if f.poll == nil {
		return nil
	}
	for {
		before := f.cursor.Watermark()
		msgs, err := f.poll.ListSince(ctx, f.groupID, f.cursor.PollSince(), f.opts.PollLimit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			f.emit(ctx, m)
		}
		if len(msgs) < f.opts.PollLimit {
			return nil
		}
		// A full page that moved nothing forward would re-query the same
		// window forever.
		if !f.cursor.Watermark().After(before) {
			return nil
		}
	}
}

func (f *Feed) emit(ctx context.Context, msg *types.ChatMessage) {
	if !f.cursor.Observe(msg) {
		return
	}
	select {
	case f.out <- msg:
	case <-ctx.Done():
	}
}

type feedError string

func (e feedError) Error() string { return string(e) }

const (
	errNoPush     = feedError("no push source configured")
	errPushClosed = feedError("push stream closed")
)
