package tree

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/zeebo/xxh3"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

const blockSetStripes = 16

// blockShard хранит блоки полосы в порядке добавления; значение - номер добавления
type blockShard struct {
	mu sync.RWMutex
	m  *orderedmap.OrderedMap[world.Block, uint64]
}

// BlockSet потокобезопасное множество ссылок на блоки.
// Запись блокирует одну полосу, снимок блокирует все полосы сразу,
// поэтому итерация никогда не видит частично применённых изменений.
type BlockSet struct {
	shards [blockSetStripes]blockShard
	seq    atomic.Uint64
}

// NewBlockSet создаёт множество с начальными элементами
func NewBlockSet(blocks ...world.Block) *BlockSet {
	s := &BlockSet{}
	for i := range s.shards {
		s.shards[i].m = orderedmap.NewOrderedMap[world.Block, uint64]()
	}
	for _, b := range blocks {
		s.Add(b)
	}
	return s
}

func (s *BlockSet) shard(b world.Block) *blockShard {
	var buf [24]byte
	pos := b.Pos()
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(pos.X)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(pos.Y)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(pos.Z)))
	return &s.shards[xxh3.Hash(buf[:])%blockSetStripes]
}

// Add добавляет блок. Возвращает false, если блок уже был в множестве.
func (s *BlockSet) Add(b world.Block) bool {
	sh := s.shard(b)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m.Get(b); ok {
		return false
	}
	return sh.m.Set(b, s.seq.Add(1))
}

// Remove удаляет блок. Возвращает false, если блока не было.
func (s *BlockSet) Remove(b world.Block) bool {
	sh := s.shard(b)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.m.Delete(b)
}

// Contains проверяет наличие блока
func (s *BlockSet) Contains(b world.Block) bool {
	sh := s.shard(b)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.m.Get(b)
	return ok
}

// ContainsPos проверяет наличие блока с указанной позицией в мире w
func (s *BlockSet) ContainsPos(w *world.World, pos vec.Vec3) bool {
	return s.Contains(w.Block(pos))
}

func (s *BlockSet) rlockAll() {
	for i := range s.shards {
		s.shards[i].mu.RLock()
	}
}

func (s *BlockSet) runlockAll() {
	for i := len(s.shards) - 1; i >= 0; i-- {
		s.shards[i].mu.RUnlock()
	}
}

// Len возвращает согласованный размер множества
func (s *BlockSet) Len() int {
	s.rlockAll()
	defer s.runlockAll()

	n := 0
	for i := range s.shards {
		n += s.shards[i].m.Len()
	}
	return n
}

// Clear удаляет все блоки
func (s *BlockSet) Clear() {
	for i := range s.shards {
		s.shards[i].mu.Lock()
	}
	for i := range s.shards {
		s.shards[i].m = orderedmap.NewOrderedMap[world.Block, uint64]()
	}
	for i := len(s.shards) - 1; i >= 0; i-- {
		s.shards[i].mu.Unlock()
	}
}

// Snapshot возвращает согласованную копию множества, упорядоченную по позиции
func (s *BlockSet) Snapshot() []world.Block {
	s.rlockAll()
	out := make([]world.Block, 0, 64)
	for i := range s.shards {
		for el := s.shards[i].m.Front(); el != nil; el = el.Next() {
			out = append(out, el.Key)
		}
	}
	s.runlockAll()

	sort.Slice(out, func(i, j int) bool { return out[i].Pos().Less(out[j].Pos()) })
	return out
}

// InsertionOrder возвращает согласованную копию множества в порядке добавления.
// Повторное добавление не меняет место блока, удаление и добавление переносит его в конец.
func (s *BlockSet) InsertionOrder() []world.Block {
	s.rlockAll()
	defer s.runlockAll()

	var heads [blockSetStripes]*orderedmap.Element[world.Block, uint64]
	n := 0
	for i := range s.shards {
		heads[i] = s.shards[i].m.Front()
		n += s.shards[i].m.Len()
	}
	// полосы уже упорядочены по номеру, остаётся слить их
	out := make([]world.Block, 0, n)
	for len(out) < n {
		best := -1
		for i, el := range heads {
			if el != nil && (best < 0 || el.Value < heads[best].Value) {
				best = i
			}
		}
		out = append(out, heads[best].Key)
		heads[best] = heads[best].Next()
	}
	return out
}

// Range вызывает fn для каждого блока в порядке добавления, пока fn возвращает true.
// Обход идёт по снимку, поэтому изменять множество внутри fn безопасно.
func (s *BlockSet) Range(fn func(b world.Block) bool) {
	for _, b := range s.InsertionOrder() {
		if !fn(b) {
			return
		}
	}
}

// Positions возвращает позиции блоков снимка
func (s *BlockSet) Positions() []vec.Vec3 {
	snap := s.Snapshot()
	out := make([]vec.Vec3, len(snap))
	for i, b := range snap {
		out[i] = b.Pos()
	}
	return out
}
