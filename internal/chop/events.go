package chop

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

// Виды синхронных событий рубки
const (
	KindStartChopTree eventbus.Kind = "chop.start"
	KindDropItems     eventbus.Kind = "chop.drop"
)

// StartChopTreeEvent публикуется после обнаружения дерева, до изменения мира.
// Обработчики могут менять множества Logs и Leaves и ось падения
// или отменить событие: тогда ломается только исходный блок.
type StartChopTreeEvent struct {
	eventbus.Cancellation

	structure *tree.Structure
	player    *player.Player

	mu     sync.RWMutex
	axis   mgl32.Vec3
	frozen atomic.Bool
}

func newStartChopTreeEvent(s *tree.Structure, p *player.Player, axis mgl32.Vec3) *StartChopTreeEvent {
	return &StartChopTreeEvent{structure: s, player: p, axis: axis}
}

// Kind реализует eventbus.Event
func (e *StartChopTreeEvent) Kind() eventbus.Kind { return KindStartChopTree }

// Logs изменяемое множество брёвен
func (e *StartChopTreeEvent) Logs() *tree.BlockSet { return e.structure.Logs }

// Leaves изменяемое множество листвы
func (e *StartChopTreeEvent) Leaves() *tree.BlockSet { return e.structure.Leaves }

// Axis текущая ось падения
func (e *StartChopTreeEvent) Axis() mgl32.Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.axis
}

// SetAxis меняет ось падения. После окончания доставки события ось
// зафиксирована, и вызов возвращает false.
func (e *StartChopTreeEvent) SetAxis(axis mgl32.Vec3) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen.Load() {
		return false
	}
	e.axis = axis
	return true
}

func (e *StartChopTreeEvent) freeze() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen.Store(true)
	return e.axis
}

// Player игрок, начавший рубку
func (e *StartChopTreeEvent) Player() *player.Player { return e.player }

// Root центр нижнего слоя ствола
func (e *StartChopTreeEvent) Root() vec.Vec3Float { return e.structure.Root }

// World мир дерева
func (e *StartChopTreeEvent) World() *world.World { return e.structure.World() }

// Height количество слоёв ствола
func (e *StartChopTreeEvent) Height() int { return e.structure.Height }

// LogMaterials материалы ствола породы
func (e *StartChopTreeEvent) LogMaterials() tree.MaterialSet { return e.structure.LogMaterials }

// LeavesMaterials материалы листвы породы
func (e *StartChopTreeEvent) LeavesMaterials() tree.MaterialSet { return e.structure.LeavesMaterials }

// Origin исходный сломанный блок
func (e *StartChopTreeEvent) Origin() world.Block { return e.structure.Origin }

// Species порода дерева
func (e *StartChopTreeEvent) Species() *tree.Species { return e.structure.Species }

// DropItemsEvent публикуется после рубки, до появления предметов в мире.
// Список выпадения можно менять; отмена означает, что ничего не выпадет.
type DropItemsEvent struct {
	eventbus.Cancellation

	drops  *DropList
	origin world.Block
	player *player.Player
	axis   mgl32.Vec3
}

// Kind реализует eventbus.Event
func (e *DropItemsEvent) Kind() eventbus.Kind { return KindDropItems }

// Drops изменяемый список выпадения
func (e *DropItemsEvent) Drops() *DropList { return e.drops }

// Origin исходный сломанный блок
func (e *DropItemsEvent) Origin() world.Block { return e.origin }

// World мир рубки
func (e *DropItemsEvent) World() *world.World { return e.origin.World() }

// Player игрок, начавший рубку
func (e *DropItemsEvent) Player() *player.Player { return e.player }

// Axis итоговая ось падения
func (e *DropItemsEvent) Axis() mgl32.Vec3 { return e.axis }
