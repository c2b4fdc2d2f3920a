package world

import (
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

// Размер чанка по горизонтали
const chunkSize = 16

// Chunk представляет колонну мира размером 16x16 блоков на всю высоту мира.
// Собственной синхронизации нет: доступ защищён мьютексом World.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире

	minY   int
	height int
	blocks []block.Material // [y][x][z], y отсчитывается от minY

	nonAir        int // Количество не-воздушных блоков
	ChangeCounter int // Счетчик изменений
}

// NewChunk создаёт пустой (воздушный) чанк с указанным вертикальным диапазоном
func NewChunk(coords vec.Vec2, minY, maxY int) *Chunk {
	height := maxY - minY + 1
	return &Chunk{
		Coords: coords,
		minY:   minY,
		height: height,
		blocks: make([]block.Material, chunkSize*chunkSize*height),
	}
}

func (c *Chunk) index(local vec.Vec2, y int) int {
	return ((y-c.minY)*chunkSize+local.X)*chunkSize + local.Y
}

// GetBlock возвращает материал по локальным координатам колонны и мировой высоте
func (c *Chunk) GetBlock(local vec.Vec2, y int) block.Material {
	if y < c.minY || y >= c.minY+c.height {
		return block.Air
	}
	return c.blocks[c.index(local, y)]
}

// SetBlock устанавливает материал и возвращает предыдущий
func (c *Chunk) SetBlock(local vec.Vec2, y int, m block.Material) block.Material {
	if y < c.minY || y >= c.minY+c.height {
		return block.Air
	}
	i := c.index(local, y)
	prev := c.blocks[i]
	if prev == m {
		return prev
	}
	c.blocks[i] = m
	switch {
	case prev == block.Air:
		c.nonAir++
	case m == block.Air:
		c.nonAir--
	}
	c.ChangeCounter++
	return prev
}

// Empty проверяет, что чанк состоит только из воздуха
func (c *Chunk) Empty() bool {
	return c.nonAir == 0
}
