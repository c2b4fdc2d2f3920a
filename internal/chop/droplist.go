package chop

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

// Drop неизменяемая пара (место, предмет)
type Drop = tree.Drop

// NewDrop создаёт элемент выпадения
func NewDrop(loc vec.Vec3Float, item world.ItemStack) Drop {
	return Drop{Location: loc, Item: item}
}

// DropList упорядоченный список выпадения с копированием при записи.
// Чтение и итерация работают со снимком и никогда не видят частичных изменений.
type DropList struct {
	mu    sync.Mutex // сериализует писателей
	items atomic.Pointer[[]Drop]
}

// NewDropList создаёт список из начальных элементов
func NewDropList(drops []Drop) *DropList {
	l := &DropList{}
	cp := append([]Drop(nil), drops...)
	l.items.Store(&cp)
	return l
}

func (l *DropList) load() []Drop {
	if p := l.items.Load(); p != nil {
		return *p
	}
	return nil
}

// update применяет fn к копии списка и публикует результат
func (l *DropList) update(fn func(cur []Drop) []Drop) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := append([]Drop(nil), l.load()...)
	next := fn(cur)
	l.items.Store(&next)
}

// Snapshot возвращает копию текущего списка
func (l *DropList) Snapshot() []Drop {
	return append([]Drop(nil), l.load()...)
}

// Len возвращает длину списка
func (l *DropList) Len() int { return len(l.load()) }

// Get возвращает элемент по индексу
func (l *DropList) Get(i int) (Drop, bool) {
	cur := l.load()
	if i < 0 || i >= len(cur) {
		return Drop{}, false
	}
	return cur[i], true
}

// Range обходит снимок списка, пока fn возвращает true
func (l *DropList) Range(fn func(i int, d Drop) bool) {
	for i, d := range l.load() {
		if !fn(i, d) {
			return
		}
	}
}

// Add добавляет элементы в конец
func (l *DropList) Add(drops ...Drop) {
	l.update(func(cur []Drop) []Drop { return append(cur, drops...) })
}

// Set заменяет элемент по индексу
func (l *DropList) Set(i int, d Drop) bool {
	ok := false
	l.update(func(cur []Drop) []Drop {
		if i >= 0 && i < len(cur) {
			cur[i] = d
			ok = true
		}
		return cur
	})
	return ok
}

// RemoveAt удаляет элемент по индексу
func (l *DropList) RemoveAt(i int) bool {
	ok := false
	l.update(func(cur []Drop) []Drop {
		if i < 0 || i >= len(cur) {
			return cur
		}
		ok = true
		return append(cur[:i], cur[i+1:]...)
	})
	return ok
}

// RemoveFunc удаляет элементы, для которых pred вернул true, и возвращает их количество
func (l *DropList) RemoveFunc(pred func(d Drop) bool) int {
	removed := 0
	l.update(func(cur []Drop) []Drop {
		kept := cur[:0]
		for _, d := range cur {
			if pred(d) {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		return kept
	})
	return removed
}

// Clear очищает список
func (l *DropList) Clear() {
	l.update(func([]Drop) []Drop { return nil })
}
