package world

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

// ErrWorldClosed возвращается при попытке выполнить задачу в остановленном мире
var ErrWorldClosed = errors.New("world: мир остановлен")

// Частота тиков цикла мира
const TicksPerSecond = 60

type task struct {
	ctx  context.Context
	fn   func(tx *Tx)
	err  error
	done chan struct{}
}

func (t *task) finish(err error) {
	t.err = err
	close(t.done)
}

// Run запускает основной цикл мира. Повторный вызов ничего не делает.
// Цикл останавливается при отмене ctx или вызове Close.
func (w *World) Run(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	go w.loop(ctx)
}

// Close останавливает цикл мира. Задачи, ожидающие в очереди, завершаются с ErrWorldClosed.
func (w *World) Close() {
	w.stopOnce.Do(func() { close(w.stopping) })
	if !w.running.Load() {
		w.drain()
	}
}

// Done закрывается после полной остановки цикла
func (w *World) Done() <-chan struct{} { return w.closed }

func (w *World) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / TicksPerSecond)
	defer ticker.Stop()

	w.log.Info("Цикл мира %s запущен", w.name)
	defer w.log.Info("Цикл мира %s остановлен (тик %d)", w.name, w.tick.Load())

	for {
		select {
		case <-ctx.Done():
			w.stopOnce.Do(func() { close(w.stopping) })
			w.drain()
			return
		case <-w.stopping:
			w.drain()
			return
		case t := <-w.tasks:
			w.runTask(t)
		case <-ticker.C:
			w.tick.Add(1)
		}
	}
}

// drain закрывает приём задач и завершает оставшиеся в очереди
func (w *World) drain() {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	if w.closing {
		return
	}
	w.closing = true
	for {
		select {
		case t := <-w.tasks:
			t.finish(ErrWorldClosed)
		default:
			close(w.closed)
			return
		}
	}
}

func (w *World) runTask(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.finish(err)
		return
	}

	tx := &Tx{w: w}
	tx.active.Store(true)
	defer func() {
		tx.active.Store(false)
		if r := recover(); r != nil {
			w.log.Error("Паника в задаче цикла мира: %v", r)
			t.finish(fmt.Errorf("world: паника в задаче: %v", r))
			return
		}
		t.finish(nil)
	}()
	t.fn(tx)
}

func (w *World) submit(ctx context.Context, fn func(tx *Tx)) *task {
	t := &task{ctx: ctx, fn: fn, done: make(chan struct{})}

	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	if w.closing {
		t.finish(ErrWorldClosed)
		return t
	}
	select {
	case w.tasks <- t:
	case <-w.stopping:
		t.finish(ErrWorldClosed)
	case <-ctx.Done():
		t.finish(ctx.Err())
	}
	return t
}

// Exec планирует выполнение fn в цикле мира. Возвращаемый канал закрывается,
// когда задача выполнена или отброшена. Задачи выполняются в порядке отправки.
// Вызывать Exec и ждать результата изнутри цикла нельзя.
func (w *World) Exec(fn func(tx *Tx)) <-chan struct{} {
	return w.submit(context.Background(), fn).done
}

// ExecContext выполняет fn в цикле мира и ждёт завершения.
// Если ctx отменён до начала выполнения, задача пропускается.
func (w *World) ExecContext(ctx context.Context, fn func(tx *Tx)) error {
	t := w.submit(ctx, fn)
	<-t.done
	return t.err
}

// Tx даёт доступ на изменение мира внутри задачи цикла.
// Tx действителен только пока выполняется функция, переданная в Exec.
type Tx struct {
	w      *World
	active atomic.Bool
}

func (tx *Tx) check() {
	if !tx.active.Load() {
		panic("world: Tx использован вне задачи цикла мира")
	}
}

// World возвращает мир транзакции
func (tx *Tx) World() *World {
	tx.check()
	return tx.w
}

// Material возвращает материал блока
func (tx *Tx) Material(pos vec.Vec3) block.Material {
	tx.check()
	return tx.w.Material(pos)
}

// Block возвращает живую ссылку на блок
func (tx *Tx) Block(pos vec.Vec3) Block {
	tx.check()
	return tx.w.Block(pos)
}

// SetMaterial устанавливает материал и возвращает предыдущий
func (tx *Tx) SetMaterial(pos vec.Vec3, m block.Material) block.Material {
	tx.check()
	return tx.w.setMaterial(pos, m)
}

// BreakBlock ломает блок от имени игрока. Сначала вызываются обработчики
// разрушения, затем блок заменяется воздухом и выпадает сам, если он
// ставится и является твёрдым. Листва ничего не роняет.
// Возвращает false, если на позиции был воздух.
func (tx *Tx) BreakBlock(pos vec.Vec3, p *player.Player) bool {
	tx.check()
	m := tx.w.Material(pos)
	if m.IsAir() {
		return false
	}

	for _, h := range tx.w.handlers() {
		h.HandleBreak(tx, p, pos)
	}

	prev := tx.w.setMaterial(pos, block.Air)
	if prev.IsAir() {
		// обработчик уже убрал блок
		return true
	}
	if info, ok := block.Get(prev); ok && info.Placeable && info.Solid {
		tx.w.spawnItem(pos.Center(), NewItemStack(prev, 1))
	}
	return true
}

// SpawnItem создаёт предмет в мире и возвращает его ID
func (tx *Tx) SpawnItem(loc vec.Vec3Float, stack ItemStack) uint64 {
	tx.check()
	if stack.Empty() {
		return 0
	}
	return tx.w.spawnItem(loc, stack)
}
