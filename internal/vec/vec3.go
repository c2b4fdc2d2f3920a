package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Y — вертикальная ось.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Column возвращает горизонтальную колонну (X, Z), в которой лежит блок
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Y: v.Z}
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Center возвращает центр блока в мировых координатах
func (v Vec3) Center() Vec3Float {
	return Vec3Float{X: float64(v.X) + 0.5, Y: float64(v.Y) + 0.5, Z: float64(v.Z) + 0.5}
}

// Less задаёт детерминированный порядок блоков: сначала Y, затем X, затем Z
func (v Vec3) Less(other Vec3) bool {
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

// Соседи по граням (6-связность)
var faceOffsets = [6]Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Соседи по граням, рёбрам и вершинам (26-связность)
var cubeOffsets = func() []Vec3 {
	offsets := make([]Vec3, 0, 26)
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				offsets = append(offsets, Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return offsets
}()

// FaceNeighbours возвращает 6 соседей, разделяющих грань с блоком
func (v Vec3) FaceNeighbours() []Vec3 {
	out := make([]Vec3, 0, len(faceOffsets))
	for _, off := range faceOffsets {
		out = append(out, v.Add(off))
	}
	return out
}

// Neighbours возвращает соседей блока для заданной связности (6 или 26).
// Любое значение кроме 6 трактуется как 26.
func (v Vec3) Neighbours(connectivity int) []Vec3 {
	if connectivity == 6 {
		return v.FaceNeighbours()
	}
	out := make([]Vec3, 0, len(cubeOffsets))
	for _, off := range cubeOffsets {
		out = append(out, v.Add(off))
	}
	return out
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(scalar float64) Vec3Float {
	return Vec3Float{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Floor возвращает блок, в котором лежит точка
func (v Vec3Float) Floor() Vec3 {
	return Vec3{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}
