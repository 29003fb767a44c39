package bus

import (
	"context"

	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
)

// Bus fans realtime messages out to every process serving SSE connections.
// It is injected everywhere it is needed; there is no process-wide singleton.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
