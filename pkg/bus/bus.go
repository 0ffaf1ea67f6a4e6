package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned when publishing after Close.
var ErrBusClosed = errors.New("bus: closed")

const defaultBuffer = 100

// MessageBus decouples the polling loop from turn processing.
type MessageBus struct {
	inbound chan InboundMessage
	closed  bool
	mu      sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return NewMessageBusSize(defaultBuffer)
}

func NewMessageBusSize(buffer int) *MessageBus {
	if buffer < 0 {
		buffer = 0
	}
	return &MessageBus{
		inbound: make(chan InboundMessage, buffer),
	}
}

// PublishInbound enqueues msg, blocking while the buffer is full until ctx
// is done.
func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return ErrBusClosed
	}
	select {
	case mb.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound returns the next inbound message and whether the read succeeded.
// The bool is false when the context is cancelled or the channel is closed.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		return msg, ok
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// Pending reports buffered messages not yet consumed.
func (mb *MessageBus) Pending() int {
	return len(mb.inbound)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
}
