package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chopPayload struct {
	ChopID string `json:"chop_id"`
	Logs   int    `json:"logs"`
}

func TestEnvelope_RoundTrip(t *testing.T) {
	ev, err := NewEnvelope("treefell", "chop.completed", chopPayload{ChopID: "abc", Logs: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)

	var p chopPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, chopPayload{ChopID: "abc", Logs: 5}, p)
}

func TestMemoryBus_FilterAndDelivery(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"chop.completed"}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)

	for _, typ := range []string{"chop.completed", "chop.cancelled", "chop.completed"} {
		ev, err := NewEnvelope("treefell", typ, nil)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("событие не доставлено")
		}
	}

	mu.Lock()
	assert.Equal(t, []string{"chop.completed", "chop.completed"}, got)
	mu.Unlock()
	assert.Equal(t, uint64(3), bus.Metrics().Published)
}

func TestMemoryBus_CloseRejectsPublish(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	ev, _ := NewEnvelope("treefell", "x", nil)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrBusClosed)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) { <-block })
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		ev, _ := NewEnvelope("treefell", "x", i)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	close(block)

	stats := bus.Metrics()
	assert.Equal(t, uint64(50), stats.Published+stats.Dropped)
}

func TestGlobalBus(t *testing.T) {
	Init(nil)
	ev, _ := NewEnvelope("treefell", "x", nil)
	assert.NoError(t, Publish(context.Background(), ev), "Без шины публикация ничего не делает")

	bus := NewMemoryBus(4)
	defer bus.Close()
	Init(bus)
	defer Init(nil)

	require.NoError(t, Publish(context.Background(), ev))
	assert.Equal(t, bus, Default())
	assert.Equal(t, uint64(1), bus.Metrics().Published)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg := prometheus.NewRegistry()

	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ev, _ := NewEnvelope("treefell", "x", i)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	prev := me.collect(Stats{})
	assert.Equal(t, float64(3), testutil.ToFloat64(me.published))

	me.collect(prev)
	assert.Equal(t, float64(3), testutil.ToFloat64(me.published), "Повторный сбор добавляет только дельту")

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "Повторная регистрация в том же регистре")

	me.Stop()
}
