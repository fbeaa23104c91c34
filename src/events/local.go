package events

import (
	"context"
	"log/slog"
	"sync"
)

// LocalBus dispatches events to in-process handlers synchronously. It stands
// in for NATS when NATS_URL is empty.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish runs every handler. Handler errors are logged, not returned.
func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			slog.Error("Event handler failed", "type", e.Type, "post_id", e.PostID, "error", err)
		}
	}
	return nil
}
