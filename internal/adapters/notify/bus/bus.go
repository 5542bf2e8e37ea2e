// Package bus is an in-process notification sink with per-channel
// subscriptions. Send is fire-and-forget: handlers run synchronously and a
// channel with no subscribers drops the payload.
package bus

import (
	"sync"

	"github.com/bnema/accmux/internal/ports"
)

type Handler func(payload any)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var _ ports.Notifier = (*Bus)(nil)

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

func (b *Bus) Subscribe(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channel] = append(b.handlers[channel], handler)
}

func (b *Bus) Send(channel string, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[channel]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}
