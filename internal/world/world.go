package world

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/treefell/internal/logging"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

// Вертикальный диапазон мира по умолчанию
const (
	DefaultMinY = -64
	DefaultMaxY = 319
)

// BreakHandler вызывается в цикле мира до того, как блок будет сломан.
// Обработчик видит блок в исходном состоянии и может планировать работу через World.Exec.
type BreakHandler interface {
	HandleBreak(tx *Tx, p *player.Player, pos vec.Vec3)
}

// BreakHandlerFunc адаптер функции к BreakHandler
type BreakHandlerFunc func(tx *Tx, p *player.Player, pos vec.Vec3)

// HandleBreak вызывает f(tx, p, pos)
func (f BreakHandlerFunc) HandleBreak(tx *Tx, p *player.Player, pos vec.Vec3) { f(tx, p, pos) }

// Config описывает параметры мира
type Config struct {
	Name      string
	Seed      int64
	MinY      int
	MaxY      int
	QueueSize int // Размер очереди задач цикла мира
}

// World хранит блоки и предметы и владеет основным циклом симуляции.
// Чтение состояния безопасно из любых горутин, изменение возможно только через Tx.
type World struct {
	name string
	seed int64
	minY int
	maxY int

	mu     sync.RWMutex
	chunks map[vec.Vec2]*Chunk

	itemsMu      sync.Mutex
	items        []ItemEntity
	nextEntityID uint64

	handlersMu    sync.RWMutex
	breakHandlers []BreakHandler

	tasks    chan *task
	submitMu sync.Mutex
	closing  bool
	running  atomic.Bool
	stopping chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
	tick     atomic.Uint64

	log *logging.Logger
}

// New создаёт пустой мир. Цикл мира запускается отдельно через Run.
func New(cfg Config) *World {
	if cfg.MinY == 0 && cfg.MaxY == 0 {
		cfg.MinY, cfg.MaxY = DefaultMinY, DefaultMaxY
	}
	if cfg.MaxY < cfg.MinY {
		cfg.MinY, cfg.MaxY = cfg.MaxY, cfg.MinY
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4096
	}
	if cfg.Name == "" {
		cfg.Name = "world"
	}
	return &World{
		name:         cfg.Name,
		seed:         cfg.Seed,
		minY:         cfg.MinY,
		maxY:         cfg.MaxY,
		chunks:       make(map[vec.Vec2]*Chunk),
		nextEntityID: 1,
		tasks:        make(chan *task, cfg.QueueSize),
		stopping:     make(chan struct{}),
		closed:       make(chan struct{}),
		log:          logging.GetWorldLogger(),
	}
}

// Name возвращает имя мира
func (w *World) Name() string { return w.name }

// Seed возвращает сид мира
func (w *World) Seed() int64 { return w.seed }

// Range возвращает вертикальный диапазон мира
func (w *World) Range() (minY, maxY int) { return w.minY, w.maxY }

// Tick возвращает номер текущего тика цикла мира
func (w *World) Tick() uint64 { return w.tick.Load() }

// InBounds проверяет, что позиция лежит в вертикальном диапазоне мира
func (w *World) InBounds(pos vec.Vec3) bool {
	return pos.Y >= w.minY && pos.Y <= w.maxY
}

// Material возвращает материал блока по мировым координатам.
// Незагруженные чанки считаются воздухом.
func (w *World) Material(pos vec.Vec3) block.Material {
	if !w.InBounds(pos) {
		return block.Air
	}
	col := pos.Column()

	w.mu.RLock()
	defer w.mu.RUnlock()

	chunk, ok := w.chunks[col.ToChunkCoords()]
	if !ok {
		return block.Air
	}
	return chunk.GetBlock(col.LocalInChunk(), pos.Y)
}

// Block возвращает живую ссылку на блок
func (w *World) Block(pos vec.Vec3) Block {
	return Block{w: w, pos: pos}
}

// ChunkCount возвращает количество загруженных чанков
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// CountMaterials считает блоки с указанными материалами во всех загруженных чанках
func (w *World) CountMaterials(mats ...block.Material) int {
	want := make(map[block.Material]struct{}, len(mats))
	for _, m := range mats {
		want[m] = struct{}{}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	count := 0
	for _, chunk := range w.chunks {
		if chunk.Empty() {
			continue
		}
		for _, m := range chunk.blocks {
			if _, ok := want[m]; ok {
				count++
			}
		}
	}
	return count
}

// Items возвращает снимок предметов, выпавших в мир, в порядке появления
func (w *World) Items() []ItemEntity {
	w.itemsMu.Lock()
	defer w.itemsMu.Unlock()

	out := make([]ItemEntity, len(w.items))
	copy(out, w.items)
	return out
}

// ItemTotals суммирует количество выпавших предметов по материалам
func (w *World) ItemTotals() map[block.Material]int {
	totals := make(map[block.Material]int)
	for _, it := range w.Items() {
		totals[it.Stack.Material] += it.Stack.Count
	}
	return totals
}

// RegisterBreakHandler добавляет обработчик разрушения блоков.
// Обработчики вызываются в порядке регистрации.
func (w *World) RegisterBreakHandler(h BreakHandler) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.breakHandlers = append(w.breakHandlers, h)
}

func (w *World) handlers() []BreakHandler {
	w.handlersMu.RLock()
	defer w.handlersMu.RUnlock()
	return append([]BreakHandler(nil), w.breakHandlers...)
}

// setMaterial изменяет блок, создавая чанк при необходимости. Вызывается только из Tx.
func (w *World) setMaterial(pos vec.Vec3, m block.Material) block.Material {
	if !w.InBounds(pos) {
		return block.Air
	}
	col := pos.Column()
	key := col.ToChunkCoords()

	w.mu.Lock()
	defer w.mu.Unlock()

	chunk, ok := w.chunks[key]
	if !ok {
		if m == block.Air {
			return block.Air
		}
		chunk = NewChunk(key, w.minY, w.maxY)
		w.chunks[key] = chunk
	}
	return chunk.SetBlock(col.LocalInChunk(), pos.Y, m)
}

func (w *World) spawnItem(loc vec.Vec3Float, stack ItemStack) uint64 {
	w.itemsMu.Lock()
	defer w.itemsMu.Unlock()

	id := w.nextEntityID
	w.nextEntityID++
	w.items = append(w.items, ItemEntity{ID: id, Location: loc, Stack: stack})
	return id
}

// SortedChunkCoords возвращает координаты загруженных чанков в стабильном порядке
func (w *World) SortedChunkCoords() []vec.Vec2 {
	w.mu.RLock()
	coords := make([]vec.Vec2, 0, len(w.chunks))
	for c := range w.chunks {
		coords = append(coords, c)
	}
	w.mu.RUnlock()

	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Y < coords[j].Y
	})
	return coords
}
