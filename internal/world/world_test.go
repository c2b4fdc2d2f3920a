package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

func newRunningWorld(t *testing.T) *World {
	t.Helper()
	w := New(Config{Name: "test", Seed: 42})
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func TestWorld_Creation(t *testing.T) {
	w := New(Config{Seed: 12345})

	assert.Equal(t, int64(12345), w.Seed(), "Seed должен быть установлен правильно")
	minY, maxY := w.Range()
	assert.Equal(t, DefaultMinY, minY, "Нижняя граница по умолчанию")
	assert.Equal(t, DefaultMaxY, maxY, "Верхняя граница по умолчанию")
	assert.Equal(t, 0, w.ChunkCount(), "Новый мир пуст")
}

func TestWorld_SetAndReadMaterial(t *testing.T) {
	w := newRunningWorld(t)
	pos := vec.Vec3{X: -17, Y: 70, Z: 33}

	err := w.ExecContext(context.Background(), func(tx *Tx) {
		prev := tx.SetMaterial(pos, block.OakLog)
		assert.Equal(t, block.Air, prev, "Предыдущий материал должен быть воздухом")
	})
	require.NoError(t, err)

	assert.Equal(t, block.OakLog, w.Material(pos), "Материал должен читаться вне цикла")
	assert.Equal(t, block.OakLog, w.Block(pos).Material(), "Живая ссылка видит текущий материал")
	assert.Equal(t, 1, w.ChunkCount())

	// За пределами высоты мира ничего не ставится
	require.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) {
		tx.SetMaterial(vec.Vec3{Y: 10_000}, block.Stone)
	}))
	assert.Equal(t, block.Air, w.Material(vec.Vec3{Y: 10_000}))
}

func TestWorld_BlockRefIsLive(t *testing.T) {
	w := newRunningWorld(t)
	pos := vec.Vec3{X: 1, Y: 65, Z: 1}
	ref := w.Block(pos)

	require.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) { tx.SetMaterial(pos, block.BirchLog) }))
	assert.Equal(t, block.BirchLog, ref.Material())

	require.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) { tx.SetMaterial(pos, block.Air) }))
	assert.Equal(t, block.Air, ref.Material())
	assert.Equal(t, w.Block(pos), ref, "Ссылки на одну позицию равны")
}

func TestTx_PanicsOutsideLoop(t *testing.T) {
	w := newRunningWorld(t)

	var leaked *Tx
	<-w.Exec(func(tx *Tx) { leaked = tx })

	require.NotNil(t, leaked)
	assert.Panics(t, func() { leaked.SetMaterial(vec.Vec3{}, block.Stone) }, "Tx вне цикла должен паниковать")
}

func TestWorld_ExecOrder(t *testing.T) {
	w := newRunningWorld(t)

	var order []int
	var last <-chan struct{}
	for i := 0; i < 50; i++ {
		i := i
		last = w.Exec(func(tx *Tx) { order = append(order, i) })
	}
	<-last

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v, "Задачи выполняются в порядке отправки")
	}
}

func TestWorld_ExecContextCancelledSkipsTask(t *testing.T) {
	w := New(Config{Name: "paused"})
	ctx, cancel := context.WithCancel(context.Background())

	ran := false
	done := make(chan error, 1)
	go func() {
		done <- w.ExecContext(ctx, func(tx *Tx) { ran = true })
	}()

	// Цикл ещё не запущен, задача ждёт в очереди
	time.Sleep(10 * time.Millisecond)
	cancel()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	w.Run(runCtx)

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran, "Отменённая задача не должна выполняться")
}

func TestWorld_CloseRejectsTasks(t *testing.T) {
	w := New(Config{})
	w.Run(context.Background())
	w.Close()
	<-w.Done()

	err := w.ExecContext(context.Background(), func(tx *Tx) {})
	assert.ErrorIs(t, err, ErrWorldClosed)

	select {
	case <-w.Exec(func(tx *Tx) {}):
	case <-time.After(time.Second):
		t.Fatal("Exec в остановленном мире должен завершаться сразу")
	}
}

func TestWorld_TaskPanicIsRecovered(t *testing.T) {
	w := newRunningWorld(t)

	err := w.ExecContext(context.Background(), func(tx *Tx) { panic("boom") })
	assert.Error(t, err)

	// Цикл продолжает работать
	assert.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) {}))
}

func TestTx_BreakBlock(t *testing.T) {
	w := newRunningWorld(t)
	p := player.NewRandom("Steve", vec.Vec3Float{})
	log := vec.Vec3{X: 0, Y: 64, Z: 0}
	leaf := vec.Vec3{X: 0, Y: 65, Z: 0}

	var seen []block.Material
	var mu sync.Mutex
	w.RegisterBreakHandler(BreakHandlerFunc(func(tx *Tx, br *player.Player, pos vec.Vec3) {
		mu.Lock()
		defer mu.Unlock()
		// Обработчик видит блок до разрушения
		seen = append(seen, tx.Material(pos))
		assert.Equal(t, p, br)
	}))

	require.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) {
		tx.SetMaterial(log, block.OakLog)
		tx.SetMaterial(leaf, block.OakLeaves)

		assert.True(t, tx.BreakBlock(log, p))
		assert.True(t, tx.BreakBlock(leaf, p))
		assert.False(t, tx.BreakBlock(vec.Vec3{X: 5, Y: 64}, p), "Воздух не ломается")
	}))

	assert.Equal(t, []block.Material{block.OakLog, block.OakLeaves}, seen)
	assert.Equal(t, block.Air, w.Material(log))
	assert.Equal(t, block.Air, w.Material(leaf))

	items := w.Items()
	require.Len(t, items, 1, "Листва ничего не роняет")
	assert.Equal(t, NewItemStack(block.OakLog, 1), items[0].Stack)
	assert.Equal(t, log.Center(), items[0].Location)
}

func TestTx_SpawnItemSkipsEmpty(t *testing.T) {
	w := newRunningWorld(t)

	require.NoError(t, w.ExecContext(context.Background(), func(tx *Tx) {
		assert.Zero(t, tx.SpawnItem(vec.Vec3Float{}, NewItemStack(block.Stick, 0)))
		assert.NotZero(t, tx.SpawnItem(vec.Vec3Float{}, NewItemStack(block.Apple, 2)))
	}))

	assert.Equal(t, map[block.Material]int{block.Apple: 2}, w.ItemTotals())
}

func TestWorld_ConcurrentReads(t *testing.T) {
	w := newRunningWorld(t)
	pos := vec.Vec3{X: 3, Y: 64, Z: 3}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m := w.Material(pos)
				assert.True(t, m == block.Air || m == block.OakLog)
			}
		}()
	}
	for j := 0; j < 20; j++ {
		m := block.OakLog
		if j%2 == 1 {
			m = block.Air
		}
		<-w.Exec(func(tx *Tx) { tx.SetMaterial(pos, m) })
	}
	wg.Wait()
}
