package turn

import (
	"context"
	"sync"
	"time"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/logger"
)

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, msg bus.InboundMessage) Result
}

const DefaultTurnTimeout = 5 * time.Minute

// Dispatcher consumes the inbound bus. Each user has a FIFO queue drained
// by one goroutine, so a user's turns run in arrival order while different
// users run concurrently.
type Dispatcher struct {
	bus         *bus.MessageBus
	handler     Handler
	turnTimeout time.Duration
	wg          sync.WaitGroup

	mu     sync.Mutex
	queues map[int64][]bus.InboundMessage
}

func NewDispatcher(mb *bus.MessageBus, h Handler, turnTimeout time.Duration) *Dispatcher {
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	return &Dispatcher{
		bus:         mb,
		handler:     h,
		turnTimeout: turnTimeout,
		queues:      make(map[int64][]bus.InboundMessage),
	}
}

// Run blocks until ctx is done or the bus is closed, then waits for
// in-flight turns. Turns are not cancelled by ctx so a reply that is
// already being produced still reaches the user.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.InfoC("turn", "Dispatcher started")
	for {
		msg, ok := d.bus.ConsumeInbound(ctx)
		if !ok {
			break
		}
		d.enqueue(ctx, msg)
	}
	logger.InfoC("turn", "Dispatcher stopping, waiting for in-flight turns")
	d.wg.Wait()
}

// enqueue appends msg to its user's queue and starts a drainer when the
// user has none running.
func (d *Dispatcher) enqueue(ctx context.Context, msg bus.InboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, active := d.queues[msg.SenderID]
	d.queues[msg.SenderID] = append(q, msg)
	if active {
		return
	}
	d.wg.Add(1)
	go d.drain(ctx, msg.SenderID)
}

// drain runs queued turns for userID one at a time and exits once the
// queue is empty.
func (d *Dispatcher) drain(ctx context.Context, userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[userID]
		if len(q) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		msg := q[0]
		d.queues[userID] = q[1:]
		d.mu.Unlock()

		d.handle(ctx, msg)
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg bus.InboundMessage) {
	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.turnTimeout)
	defer cancel()
	d.handler.Handle(turnCtx, msg)
}

// Wait blocks until all started turns have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
