package turn

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/history"
)

type recordingHandler struct {
	mu       sync.Mutex
	handled  []bus.InboundMessage
	ctxAlive []bool
	delay    time.Duration
}

func (h *recordingHandler) Handle(ctx context.Context, msg bus.InboundMessage) Result {
	time.Sleep(h.delay)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, msg)
	h.ctxAlive = append(h.ctxAlive, ctx.Err() == nil)
	return Result{State: StateDone}
}

func TestDispatcher_RunsAllAndDrainsOnShutdown(t *testing.T) {
	mb := bus.NewMessageBus()
	h := &recordingHandler{delay: 20 * time.Millisecond}
	d := NewDispatcher(mb, h, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	for i := int64(1); i <= 3; i++ {
		assert.NoError(t, mb.PublishInbound(context.Background(), bus.InboundMessage{SenderID: i, Kind: bus.KindText}))
	}
	assert.Eventually(t, func() bool { return mb.Pending() == 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.handled, 3)
	for _, alive := range h.ctxAlive {
		assert.True(t, alive, "in-flight turns keep their context after shutdown")
	}
}

func TestDispatcher_SameUserInArrivalOrder(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		h := newHarness(t)
		mb := bus.NewMessageBus()
		d := NewDispatcher(mb, h.orch, time.Second)

		const user = int64(7)
		for i := 0; i < 5; i++ {
			require.NoError(t, mb.PublishInbound(context.Background(), textMsg(user, "m"+strconv.Itoa(i))))
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			d.Run(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool { return h.store.Len(user) == 10 }, 2*time.Second, time.Millisecond)
		cancel()
		<-done

		var got []string
		for _, m := range h.store.RecentWindow(user, 10) {
			if m.Role == history.RoleUser {
				got = append(got, m.Content)
			}
		}
		require.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, got, "trial %d", trial)
	}
}

func TestDispatcher_UsersRunConcurrently(t *testing.T) {
	mb := bus.NewMessageBus()
	h := &recordingHandler{delay: 100 * time.Millisecond}
	d := NewDispatcher(mb, h, time.Second)

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, mb.PublishInbound(context.Background(), bus.InboundMessage{SenderID: i, Kind: bus.KindText}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.handled) == 4
	}, 2*time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Less(t, time.Since(start), 350*time.Millisecond)
}
