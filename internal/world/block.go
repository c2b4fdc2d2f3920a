package world

import (
	"fmt"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

// Block представляет собой живую ссылку на позицию в мире.
// Координата неизменна, материал читается из мира в момент вызова.
// Block сравним и может служить ключом map.
type Block struct {
	w   *World
	pos vec.Vec3
}

// Pos возвращает координаты блока
func (b Block) Pos() vec.Vec3 { return b.pos }

// World возвращает мир, которому принадлежит блок
func (b Block) World() *World { return b.w }

// Material возвращает текущий материал блока (чтение безопасно вне цикла мира)
func (b Block) Material() block.Material {
	if b.w == nil {
		return block.Air
	}
	return b.w.Material(b.pos)
}

// Valid проверяет, что ссылка привязана к миру
func (b Block) Valid() bool { return b.w != nil }

// String для логов
func (b Block) String() string {
	return fmt.Sprintf("(%d, %d, %d)", b.pos.X, b.pos.Y, b.pos.Z)
}

// ItemStack представляет стопку предметов
type ItemStack struct {
	Material block.Material `json:"material"`
	Count    int            `json:"count"`
}

// NewItemStack создаёт стопку предметов
func NewItemStack(m block.Material, count int) ItemStack {
	return ItemStack{Material: m, Count: count}
}

// Empty проверяет, что стопка пуста
func (s ItemStack) Empty() bool { return s.Count <= 0 || s.Material == block.Air }

// String для логов
func (s ItemStack) String() string {
	return fmt.Sprintf("%dx%s", s.Count, s.Material)
}

// ItemEntity представляет выпавший в мир предмет
type ItemEntity struct {
	ID       uint64
	Location vec.Vec3Float
	Stack    ItemStack
}
