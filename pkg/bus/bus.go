// Package bus decouples update ingress (long polling or the webhook) from
// the dispatcher with a bounded queue.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vigarepo2/elixir/pkg/logger"
)

const queueWriteTimeout = 2 * time.Second

type UpdateBus struct {
	updates   chan telego.Update
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewUpdateBus() *UpdateBus {
	return &UpdateBus{
		updates: make(chan telego.Update, 100),
	}
}

// Publish enqueues an update, dropping it with an error log if the queue
// stays full past the write timeout. Publishing after Close is a no-op.
func (b *UpdateBus) Publish(update telego.Update) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	ch := b.updates
	b.mu.RUnlock()

	defer func() {
		if recover() != nil {
			logger.WarnCF("bus", "Publish on closed bus recovered", map[string]interface{}{
				logger.FieldUpdateID: update.UpdateID,
			})
		}
	}()

	select {
	case ch <- update:
	case <-time.After(queueWriteTimeout):
		logger.ErrorCF("bus", "Publish timeout (queue full)", map[string]interface{}{
			logger.FieldUpdateID: update.UpdateID,
		})
	}
}

// Consume blocks for the next update; the second return is false once the
// bus closes or ctx is done.
func (b *UpdateBus) Consume(ctx context.Context) (telego.Update, bool) {
	select {
	case update, ok := <-b.updates:
		return update, ok
	case <-ctx.Done():
		return telego.Update{}, false
	}
}

func (b *UpdateBus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.updates)
		b.mu.Unlock()
	})
}
