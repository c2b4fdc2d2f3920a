package preference

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// API управляет включением рубки деревьев для игроков
type API interface {
	IsEnabled(player uuid.UUID) bool
	Set(player uuid.UUID, enabled bool)
}

// Store потокобезопасное хранилище настроек игроков.
// Запись создаётся лениво при первом запросе со значением по умолчанию
// и удаляется только при уходе игрока.
type Store struct {
	entries      sync.Map // uuid.UUID -> *atomic.Bool
	defaultState bool
	count        atomic.Int64
}

// NewStore создаёт хранилище с заданным значением по умолчанию
func NewStore(defaultEnabled bool) *Store {
	return &Store{defaultState: defaultEnabled}
}

// Default возвращает значение для новых игроков
func (s *Store) Default() bool { return s.defaultState }

func (s *Store) entry(player uuid.UUID) *atomic.Bool {
	if v, ok := s.entries.Load(player); ok {
		return v.(*atomic.Bool)
	}
	fresh := &atomic.Bool{}
	fresh.Store(s.defaultState)
	v, loaded := s.entries.LoadOrStore(player, fresh)
	if !loaded {
		s.count.Add(1)
	}
	return v.(*atomic.Bool)
}

// IsEnabled сообщает, включена ли рубка у игрока
func (s *Store) IsEnabled(player uuid.UUID) bool {
	return s.entry(player).Load()
}

// attached сообщает, что e всё ещё запись игрока, а не удалённая параллельным Remove
func (s *Store) attached(player uuid.UUID, e *atomic.Bool) bool {
	v, ok := s.entries.Load(player)
	return ok && v.(*atomic.Bool) == e
}

// Set включает или выключает рубку у игрока. Если запись удалили во время
// записи, она создаётся заново, и значение не теряется.
func (s *Store) Set(player uuid.UUID, enabled bool) {
	for {
		e := s.entry(player)
		e.Store(enabled)
		if s.attached(player, e) {
			return
		}
	}
}

// Toggle переключает состояние и возвращает новое значение
func (s *Store) Toggle(player uuid.UUID) bool {
	for {
		e := s.entry(player)
		old := e.Load()
		if !e.CompareAndSwap(old, !old) {
			continue
		}
		if s.attached(player, e) {
			return !old
		}
	}
}

// Remove удаляет запись игрока
func (s *Store) Remove(player uuid.UUID) {
	if _, loaded := s.entries.LoadAndDelete(player); loaded {
		s.count.Add(-1)
	}
}

// Len возвращает количество известных игроков
func (s *Store) Len() int { return int(s.count.Load()) }

// Snapshot возвращает копию всех записей
func (s *Store) Snapshot() map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	s.entries.Range(func(k, v any) bool {
		out[k.(uuid.UUID)] = v.(*atomic.Bool).Load()
		return true
	})
	return out
}
