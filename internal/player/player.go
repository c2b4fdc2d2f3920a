package player

import (
	"sync"

	"github.com/annel0/treefell/internal/vec"
	"github.com/google/uuid"
)

// Player представляет игрока, инициирующего рубку.
// Идентичность — UUID; имя и позиция только для логов и расчёта оси падения.
type Player struct {
	id   uuid.UUID
	name string

	mu       sync.RWMutex
	position vec.Vec3Float
}

// New создаёт игрока с указанным UUID
func New(id uuid.UUID, name string, position vec.Vec3Float) *Player {
	return &Player{id: id, name: name, position: position}
}

// NewRandom создаёт игрока со случайным UUID (тесты, симуляция)
func NewRandom(name string, position vec.Vec3Float) *Player {
	return New(uuid.New(), name, position)
}

// UUID возвращает постоянный идентификатор игрока
func (p *Player) UUID() uuid.UUID { return p.id }

// Name возвращает имя игрока
func (p *Player) Name() string { return p.name }

// Position возвращает текущую позицию игрока
func (p *Player) Position() vec.Vec3Float {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

// Move перемещает игрока
func (p *Player) Move(pos vec.Vec3Float) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

// String для логов
func (p *Player) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.name + "(" + p.id.String() + ")"
}
