package tree

import (
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

// Structure описывает найденное дерево.
// Logs и Leaves можно изменять в обработчиках событий, остальные поля
// фиксируются при построении.
type Structure struct {
	Logs   *BlockSet
	Leaves *BlockSet

	LogMaterials    MaterialSet
	LeavesMaterials MaterialSet

	Height  int           // Количество вертикальных слоёв ствола
	MinY    int           // Нижний слой ствола
	Root    vec.Vec3Float // Центр нижнего слоя ствола
	Origin  world.Block   // Блок, с которого началась рубка
	Species *Species
}

// World возвращает мир, в котором найдено дерево
func (s *Structure) World() *world.World { return s.Origin.World() }

// newStructure строит структуру по найденным позициям.
// Высота и корень считаются по min/max Y, а не по порядку обхода.
func newStructure(w *world.World, origin vec.Vec3, sp *Species, logs, leaves []vec.Vec3) *Structure {
	s := &Structure{
		Logs:            NewBlockSet(),
		Leaves:          NewBlockSet(),
		LogMaterials:    sp.Logs,
		LeavesMaterials: sp.Leaves,
		Origin:          w.Block(origin),
		Species:         sp,
	}

	minY, maxY := logs[0].Y, logs[0].Y
	for _, p := range logs {
		s.Logs.Add(w.Block(p))
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	for _, p := range leaves {
		s.Leaves.Add(w.Block(p))
	}

	var sumX, sumZ float64
	n := 0
	for _, p := range logs {
		if p.Y != minY {
			continue
		}
		c := p.Center()
		sumX += c.X
		sumZ += c.Z
		n++
	}

	s.Height = maxY - minY + 1
	s.MinY = minY
	s.Root = vec.Vec3Float{X: sumX / float64(n), Y: float64(minY), Z: sumZ / float64(n)}
	return s
}
