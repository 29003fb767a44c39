package bus

import (
	"context"
	"sync"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/realtime"
)

// memoryBus is an in-process Bus for single-node deployments and tests.
// Publish delivers synchronously to every registered forwarder.
type memoryBus struct {
	log *logger.Logger

	mu         sync.RWMutex
	forwarders []func(m realtime.SSEMessage)
	closed     bool
}

func NewMemoryBus(log *logger.Logger) Bus {
	return &memoryBus{log: log.With("service", "MemorySSEBus")}
}

func (b *memoryBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, fn := range b.forwarders {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.forwarders = append(b.forwarders, onMsg)
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.forwarders = nil
	return nil
}
