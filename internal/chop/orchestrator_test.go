package chop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

func TestOrchestrator_FellsWholeTree(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	base := vec.Vec3{X: 4, Y: 64, Z: 4}
	plantOak(t, w, base, 5)
	p := player.NewRandom("lumberjack", vec.Vec3Float{X: 0.5, Y: 64, Z: 4.5})

	c, ok := chopAt(t, w, o, p, base)
	require.True(t, ok, "Бревно под включённым игроком запускает рубку")
	r := wait(t, c)

	assert.Equal(t, StateDone, r.State)
	assert.Equal(t, "done", r.StateName)
	assert.Equal(t, 4, r.Logs, "Исходное бревно сломано игроком и не учитывается")
	assert.Equal(t, 17, r.Leaves)
	assert.Equal(t, "oak", r.Species)
	assert.Equal(t, p.UUID(), r.PlayerID)
	assert.Equal(t, 0, w.CountMaterials(treeMaterials...), "Дерево убрано целиком")
	assert.Equal(t, 5, w.ItemTotals()[block.OakLog], "Каждое бревно выпало ровно один раз")
	assert.Equal(t, StateDone, c.State())

	st := o.Stats()
	assert.Equal(t, uint64(1), st.Started)
	assert.Equal(t, uint64(1), st.Done)
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, float64(1), testutil.ToFloat64(o.metrics.started))
	assert.Equal(t, float64(0), testutil.ToFloat64(o.metrics.active))

	_, found := o.Chop(c.ID())
	assert.False(t, found, "Завершённая рубка не числится активной")
}

func TestOrchestrator_StartCancelledLeavesTree(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	base := vec.Vec3{X: -10, Y: 64, Z: 3}
	plantOak(t, w, base, 5)
	before := w.CountMaterials(treeMaterials...)

	o.Dispatcher().Register(KindStartChopTree, eventbus.PriorityNormal, func(_ context.Context, ev eventbus.Event) {
		ev.(*StartChopTreeEvent).SetCancelled(true)
	})

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	require.True(t, ok)
	r := wait(t, c)

	assert.Equal(t, StateCancelled, r.State)
	assert.Equal(t, ReasonStartCancelled, r.Reason)
	assert.Equal(t, before-1, w.CountMaterials(treeMaterials...), "Сломан только исходный блок")
	assert.Equal(t, block.Air, w.Material(base))
	assert.Equal(t, map[block.Material]int{block.OakLog: 1}, w.ItemTotals(), "Обычное выпадение исходного бревна")
	assert.Equal(t, uint64(1), o.Stats().Cancelled)
}

func TestOrchestrator_DropCancelledSpawnsNothing(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	base := vec.Vec3{X: 20, Y: 64, Z: 20}
	plantOak(t, w, base, 4)

	o.Dispatcher().Register(KindDropItems, eventbus.PriorityHigh, func(_ context.Context, ev eventbus.Event) {
		d := ev.(*DropItemsEvent)
		assert.Positive(t, d.Drops().Len())
		d.SetCancelled(true)
	})

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	require.True(t, ok)
	r := wait(t, c)

	assert.Equal(t, ReasonDropCancelled, r.Reason)
	assert.Equal(t, 0, r.Drops)
	assert.Equal(t, 3, r.Logs, "Дерево срублено до решения о выпадении")
	assert.Equal(t, 0, w.CountMaterials(treeMaterials...))
	assert.Equal(t, map[block.Material]int{block.OakLog: 1}, w.ItemTotals(), "Кроме исходного блока ничего не выпало")
}

func TestOrchestrator_ListenerControlsDropList(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})

	// три бревна и шесть листьев
	base := vec.Vec3{X: 0, Y: 70, Z: 0}
	place(t, w, block.OakLog, column(base, 3)...)
	place(t, w, block.OakLeaves,
		vec.Vec3{X: 1, Y: 72}, vec.Vec3{X: -1, Y: 72}, vec.Vec3{Y: 72, Z: 1}, vec.Vec3{Y: 72, Z: -1},
		vec.Vec3{Y: 73}, vec.Vec3{X: 1, Y: 71},
	)

	stick := NewDrop(vec.Vec3Float{X: 5.5, Y: 70, Z: 5.5}, world.NewItemStack(block.Stick, 3))
	apple := NewDrop(vec.Vec3Float{X: -5.5, Y: 70, Z: 5.5}, world.NewItemStack(block.Apple, 1))
	var kept Drop
	o.Dispatcher().Register(KindDropItems, eventbus.PriorityNormal, func(_ context.Context, ev eventbus.Event) {
		d := ev.(*DropItemsEvent)
		first, ok := d.Drops().Get(0)
		require.True(t, ok)
		kept = first
		d.Drops().RemoveFunc(func(Drop) bool { return true })
		d.Drops().Add(first, stick, apple)
	})

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	require.True(t, ok)
	r := wait(t, c)

	require.Equal(t, StateDone, r.State)
	assert.Equal(t, 2, r.Logs)
	assert.Equal(t, 6, r.Leaves)
	assert.Equal(t, block.OakLog, kept.Item.Material, "Брёвна идут первыми")
	assert.Equal(t, 5, r.Drops)
	assert.Equal(t, map[block.Material]int{
		block.OakLog: 2, // исходное бревно и оставленный обработчиком элемент
		block.Stick:  3,
		block.Apple:  1,
	}, w.ItemTotals())

	var locations []vec.Vec3Float
	for _, it := range w.Items() {
		if it.Stack.Material != block.OakLog {
			locations = append(locations, it.Location)
		}
	}
	assert.ElementsMatch(t, []vec.Vec3Float{stick.Location, apple.Location}, locations)
}

func TestOrchestrator_ListenerSetsAxis(t *testing.T) {
	w := newTestWorld(t)
	cfg := DefaultConfig()
	cfg.DropAtLanding = true
	o := newTestOrchestrator(t, cfg, Options{})
	base := vec.Vec3{X: 8, Y: 64, Z: -8}
	plantOak(t, w, base, 5)

	north := mgl32.Vec3{0, 0, 1}
	var captured *StartChopTreeEvent
	o.Dispatcher().Register(KindStartChopTree, eventbus.PriorityNormal, func(_ context.Context, ev eventbus.Event) {
		captured = ev.(*StartChopTreeEvent)
		assert.Equal(t, 5, captured.Logs().Len(), "Исходное бревно входит в структуру")
		assert.Equal(t, 5, captured.Height())
		assert.True(t, captured.SetAxis(north))
	})

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{X: 8.5, Y: 64, Z: -20}), base)
	require.True(t, ok)
	r := wait(t, c)

	require.Equal(t, StateDone, r.State)
	assert.Equal(t, north, r.Axis)
	require.NotNil(t, captured)
	assert.False(t, captured.SetAxis(mgl32.Vec3{1, 0, 0}), "После доставки ось зафиксирована")

	// брёвна выше корня падают вдоль оси на свою высоту
	shifted := 0
	for _, it := range w.Items() {
		if it.Stack.Material == block.OakLog && it.Location.Z > float64(base.Z)+0.6 {
			assert.InDelta(t, float64(base.X)+0.5, it.Location.X, 1e-6)
			shifted++
		}
	}
	assert.Equal(t, 4, shifted)
}

func TestOrchestrator_ConcurrentPlayers(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})

	bases := []vec.Vec3{{X: 0, Y: 64, Z: 0}, {X: 40, Y: 64, Z: 40}}
	for _, b := range bases {
		plantOak(t, w, b, 6)
	}

	var mu sync.Mutex
	seen := make(map[vec.Vec3][]vec.Vec3)
	o.Dispatcher().Register(KindStartChopTree, eventbus.PriorityMonitor, func(_ context.Context, ev eventbus.Event) {
		e := ev.(*StartChopTreeEvent)
		mu.Lock()
		defer mu.Unlock()
		seen[e.Origin().Pos()] = append(e.Logs().Positions(), e.Leaves().Positions()...)
	})

	results := make([]Result, len(bases))
	var wg sync.WaitGroup
	for i, b := range bases {
		wg.Add(1)
		go func(i int, b vec.Vec3) {
			defer wg.Done()
			c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), b)
			if assert.True(t, ok) {
				results[i] = wait(t, c)
			}
		}(i, b)
	}
	wg.Wait()

	for i, b := range bases {
		assert.Equal(t, StateDone, results[i].State)
		assert.Equal(t, 5, results[i].Logs)
		assert.Equal(t, 17, results[i].Leaves)

		positions := seen[b]
		assert.Len(t, positions, 23)
		for _, pos := range positions {
			assert.LessOrEqual(t, abs(pos.X-b.X), 1, "Блок чужого дерева в структуре: %v", pos)
			assert.LessOrEqual(t, abs(pos.Z-b.Z), 1, "Блок чужого дерева в структуре: %v", pos)
		}
	}
	assert.Equal(t, 0, w.CountMaterials(treeMaterials...))
	assert.Equal(t, 12, w.ItemTotals()[block.OakLog])
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestOrchestrator_DisabledPlayerBreaksNormally(t *testing.T) {
	w := newTestWorld(t)
	prefs := preference.NewStore(true)
	o := newTestOrchestrator(t, DefaultConfig(), Options{Preferences: prefs})
	base := vec.Vec3{X: 1, Y: 64, Z: 1}
	plantOak(t, w, base, 5)
	before := w.CountMaterials(treeMaterials...)

	p := player.NewRandom("builder", vec.Vec3Float{})
	prefs.Set(p.UUID(), false)

	c, ok := chopAt(t, w, o, p, base)
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Equal(t, before-1, w.CountMaterials(treeMaterials...))
	assert.Equal(t, uint64(0), o.Stats().Started)
	assert.Equal(t, float64(1), testutil.ToFloat64(o.metrics.rejected.WithLabelValues("disabled")))
}

func TestOrchestrator_NonLogIgnored(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	pos := vec.Vec3{Y: 64}
	place(t, w, block.Dirt, pos)

	_, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), pos)
	assert.False(t, ok)
	assert.Equal(t, map[block.Material]int{block.Dirt: 1}, w.ItemTotals())

	_, ok = chopAt(t, w, o, nil, vec.Vec3{Y: 200})
	assert.False(t, ok, "Без игрока рубка не запускается")
}

func TestOrchestrator_NotATreeFallsBack(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})

	// бревенчатая колонна без листвы это постройка, а не дерево
	base := vec.Vec3{X: 3, Y: 64, Z: 3}
	place(t, w, block.OakLog, column(base, 4)...)

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	require.True(t, ok)
	r := wait(t, c)

	assert.Equal(t, StateCancelled, r.State)
	assert.Equal(t, ReasonNotATree, r.Reason)
	assert.NotEmpty(t, r.Detail)
	assert.Equal(t, 3, w.CountMaterials(block.OakLog), "Остальные брёвна на месте")
	assert.Equal(t, uint64(1), o.Stats().NotATree)
}

func TestOrchestrator_JournalAndBus(t *testing.T) {
	w := newTestWorld(t)
	j := journal.NewMemory(8)
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { _ = bus.Close() })

	got := make(chan *eventbus.Envelope, 1)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{EnvelopeCompleted}}, func(_ context.Context, ev *eventbus.Envelope) {
		got <- ev
	})
	require.NoError(t, err)

	o := newTestOrchestrator(t, DefaultConfig(), Options{Journal: j, Bus: bus})
	base := vec.Vec3{X: -30, Y: 64, Z: 12}
	plantOak(t, w, base, 5)
	p := player.NewRandom("alex", vec.Vec3Float{})

	c, ok := chopAt(t, w, o, p, base)
	require.True(t, ok)
	r := wait(t, c)

	records, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, c.ID().String(), records[0].ID)
	assert.Equal(t, "done", records[0].State)
	assert.Equal(t, "alex", records[0].PlayerName)
	assert.Equal(t, base, records[0].Origin)
	assert.Equal(t, r.Logs, records[0].Logs)

	select {
	case ev := <-got:
		assert.Equal(t, c.ID().String(), ev.CorrelationID)
		assert.Equal(t, "alex", ev.Metadata["player"])
		var decoded Result
		require.NoError(t, ev.Decode(&decoded))
		assert.Equal(t, "done", decoded.StateName)
		assert.Equal(t, r.Leaves, decoded.Leaves)
	case <-time.After(5 * time.Second):
		t.Fatal("Уведомление о рубке не доставлено")
	}
}

func TestOrchestrator_AttachHandlesWorldBreaks(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	o.Attach(w)
	base := vec.Vec3{X: 12, Y: 64, Z: 12}
	plantOak(t, w, base, 5)

	require.NoError(t, w.ExecContext(context.Background(), func(tx *world.Tx) {
		assert.True(t, tx.BreakBlock(base, player.NewRandom("p", vec.Vec3Float{})))
	}))

	assert.Eventually(t, func() bool { return o.Stats().Done == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.CountMaterials(treeMaterials...))
}

func TestOrchestrator_ClosedRejectsChops(t *testing.T) {
	w := newTestWorld(t)
	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	base := vec.Vec3{X: 2, Y: 64, Z: 2}
	plantOak(t, w, base, 5)

	require.NoError(t, o.Close(context.Background()))

	_, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(o.metrics.rejected.WithLabelValues("busy")))
	assert.Equal(t, 0, o.Stats().Active)
}

func TestOrchestrator_WorldClosedAbortsFelling(t *testing.T) {
	w := world.New(world.Config{Name: "closing", Seed: 3})
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})

	o := newTestOrchestrator(t, DefaultConfig(), Options{})
	base := vec.Vec3{Y: 64}
	plantOak(t, w, base, 5)

	// мир закрывается, пока обработчик старта держит конвейер
	release := make(chan struct{})
	o.Dispatcher().Register(KindStartChopTree, eventbus.PriorityNormal, func(_ context.Context, _ eventbus.Event) {
		<-release
	})

	c, ok := chopAt(t, w, o, player.NewRandom("p", vec.Vec3Float{}), base)
	require.True(t, ok)
	w.Close()
	<-w.Done()
	close(release)

	r := wait(t, c)
	assert.Equal(t, StateCancelled, r.State)
	assert.Equal(t, ReasonWorldClosed, r.Reason)
	assert.Equal(t, 0, r.Logs)
}
