package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	Cancellation
	trace []string
}

func (e *testEvent) Kind() Kind { return "test" }

type plainEvent struct{}

func (plainEvent) Kind() Kind { return "plain" }

func record(name string) Listener {
	return func(ctx context.Context, ev Event) {
		e := ev.(*testEvent)
		e.trace = append(e.trace, name)
	}
}

func TestDispatcher_PriorityOrder(t *testing.T) {
	d := NewDispatcher()
	d.Register("test", PriorityMonitor, record("monitor"))
	d.Register("test", PriorityHigh, record("high-1"))
	d.Register("test", PriorityLowest, record("lowest"))
	d.Register("test", PriorityHigh, record("high-2"))
	d.Register("other", PriorityNormal, record("other"))

	ev := &testEvent{}
	assert.True(t, d.Dispatch(context.Background(), ev))
	assert.Equal(t, []string{"lowest", "high-1", "high-2", "monitor"}, ev.trace)
	assert.Equal(t, 4, d.Count("test"))
}

func TestDispatcher_Cancellation(t *testing.T) {
	d := NewDispatcher()
	d.Register("test", PriorityLow, func(ctx context.Context, ev Event) {
		ev.(Cancellable).SetCancelled(true)
	})
	d.Register("test", PriorityNormal, record("ignoring"), IgnoreCancelled())
	d.Register("test", PriorityMonitor, record("monitor"))

	ev := &testEvent{}
	assert.False(t, d.Dispatch(context.Background(), ev), "Отменённое событие")
	assert.Equal(t, []string{"monitor"}, ev.trace, "IgnoreCancelled пропускается для отменённого события")
}

func TestDispatcher_UncancelRestoresFlow(t *testing.T) {
	d := NewDispatcher()
	d.Register("test", PriorityLow, func(ctx context.Context, ev Event) { ev.(Cancellable).SetCancelled(true) })
	d.Register("test", PriorityHigh, func(ctx context.Context, ev Event) { ev.(Cancellable).SetCancelled(false) })

	assert.True(t, d.Dispatch(context.Background(), &testEvent{}))
}

func TestDispatcher_PanicDoesNotBreakChain(t *testing.T) {
	d := NewDispatcher()
	d.Register("test", PriorityLow, func(ctx context.Context, ev Event) { panic("boom") }, WithName("broken"))
	d.Register("test", PriorityNormal, record("after"))

	ev := &testEvent{}
	assert.NotPanics(t, func() { d.Dispatch(context.Background(), ev) })
	assert.Equal(t, []string{"after"}, ev.trace)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	sub := d.Register("test", PriorityNormal, record("gone"))
	d.Register("test", PriorityNormal, record("stays"))

	sub.Unsubscribe()
	sub.Unsubscribe()

	ev := &testEvent{}
	d.Dispatch(context.Background(), ev)
	assert.Equal(t, []string{"stays"}, ev.trace)
}

func TestDispatcher_NonCancellableAndContext(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.Register("plain", PriorityNormal, func(ctx context.Context, ev Event) { calls++ })

	assert.True(t, d.Dispatch(context.Background(), plainEvent{}))
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, plainEvent{})
	assert.Equal(t, 1, calls, "Отменённый контекст прекращает доставку")
}
