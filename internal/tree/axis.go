package tree

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/treefell/internal/vec"
)

// DefaultAxis направление падения, когда наклон не определён
var DefaultAxis = mgl32.Vec3{1, 0, 0}

const axisEpsilon = 1e-5

// AxisCalculator вычисляет направление падения дерева по распределению массы.
// Смещение каждого блока от вертикали корня взвешивается высотой над нижним слоем.
type AxisCalculator struct {
	LeafMass float32 // Вес листа относительно бревна
}

// NewAxisCalculator создаёт калькулятор с весом листвы по умолчанию
func NewAxisCalculator() *AxisCalculator {
	return &AxisCalculator{LeafMass: 0.25}
}

// Compute возвращает нормализованное горизонтальное направление наибольшего наклона.
// ok == false для симметричного дерева или одиночного блока: тогда возвращается нулевой вектор.
func (a *AxisCalculator) Compute(s *Structure) (mgl32.Vec3, bool) {
	var sum mgl32.Vec3
	add := func(p vec.Vec3, mass float32) {
		c := p.Center()
		dx := float32(c.X - s.Root.X)
		dz := float32(c.Z - s.Root.Z)
		weight := float32(p.Y-s.MinY+1) * mass
		sum = sum.Add(mgl32.Vec3{dx * weight, 0, dz * weight})
	}

	for _, p := range s.Logs.Positions() {
		add(p, 1)
	}
	if a.LeafMass > 0 {
		for _, p := range s.Leaves.Positions() {
			add(p, a.LeafMass)
		}
	}
	return normalizeHorizontal(sum)
}

// Towards возвращает горизонтальное направление от from к to
func Towards(from, to vec.Vec3Float) (mgl32.Vec3, bool) {
	return normalizeHorizontal(mgl32.Vec3{float32(to.X - from.X), 0, float32(to.Z - from.Z)})
}

// Sanitize приводит ось, заданную обработчиком, к нормализованной горизонтальной.
// Нулевой или NaN вектор заменяется на fallback.
func Sanitize(axis, fallback mgl32.Vec3) mgl32.Vec3 {
	if v, ok := normalizeHorizontal(axis); ok {
		return v
	}
	return fallback
}

func normalizeHorizontal(v mgl32.Vec3) (mgl32.Vec3, bool) {
	v[1] = 0
	if math32.IsNaN(v[0]) || math32.IsNaN(v[2]) || math32.IsInf(v[0], 0) || math32.IsInf(v[2], 0) {
		return mgl32.Vec3{}, false
	}
	l := math32.Sqrt(v[0]*v[0] + v[2]*v[2])
	if l < axisEpsilon {
		return mgl32.Vec3{}, false
	}
	return mgl32.Vec3{v[0] / l, 0, v[2] / l}, true
}
