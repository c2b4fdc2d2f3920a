package world

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world/block"
)

// TreeKind тип генерируемого дерева
type TreeKind int

const (
	TreeOak TreeKind = iota
	TreeBirch
	TreeSpruce
	TreeAcacia
)

func (k TreeKind) String() string {
	switch k {
	case TreeOak:
		return "oak"
	case TreeBirch:
		return "birch"
	case TreeSpruce:
		return "spruce"
	case TreeAcacia:
		return "acacia"
	}
	return "unknown"
}

// TreeSite описывает посаженное генератором дерево
type TreeSite struct {
	Kind TreeKind
	Base vec.Vec3 // Нижний блок ствола
}

// Generator генерирует рельеф и лес на основе шума Перлина
type Generator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб шума высоты
	BiomeScale    float64 // Масштаб шума выбора породы
	BaseHeight    int     // Средняя высота поверхности
	Amplitude     int     // Размах высот
	ForestDensity float64 // Вероятность дерева в колонне (от 0 до 1)
	TreeSpacing   int     // Минимальное расстояние между стволами

	height *perlin.Perlin
	biome  *perlin.Perlin
}

// NewGenerator создаёт генератор с настройками по умолчанию
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:          seed,
		NoiseScale:    0.03,
		BiomeScale:    0.01,
		BaseHeight:    64,
		Amplitude:     6,
		ForestDensity: 0.08,
		TreeSpacing:   5,
		height:        perlin.NewPerlin(2, 2, 3, seed),
		biome:         perlin.NewPerlin(2, 2, 2, seed^0x5eed),
	}
}

// SurfaceHeight возвращает высоту верхнего блока травы в колонне
func (g *Generator) SurfaceHeight(x, z int) int {
	n := g.height.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return g.BaseHeight + int(math.Round(n*float64(g.Amplitude)))
}

// KindAt выбирает породу дерева для колонны по шуму биомов
func (g *Generator) KindAt(x, z int) TreeKind {
	n := g.biome.Noise2D(float64(x)*g.BiomeScale, float64(z)*g.BiomeScale)
	switch {
	case n < -0.2:
		return TreeSpruce
	case n < 0.05:
		return TreeOak
	case n < 0.25:
		return TreeBirch
	default:
		return TreeAcacia
	}
}

// Generate заполняет прямоугольник колонн [from, to] рельефом и деревьями.
// Результат детерминирован для одинакового сида и области.
func (g *Generator) Generate(tx *Tx, from, to vec.Vec2) []TreeSite {
	if from.X > to.X {
		from.X, to.X = to.X, from.X
	}
	if from.Y > to.Y {
		from.Y, to.Y = to.Y, from.Y
	}

	for x := from.X; x <= to.X; x++ {
		for z := from.Y; z <= to.Y; z++ {
			g.fillColumn(tx, x, z)
		}
	}

	var sites []TreeSite
	margin := 3
	for x := from.X + margin; x <= to.X-margin; x++ {
		for z := from.Y + margin; z <= to.Y-margin; z++ {
			rng := g.columnRand(x, z)
			if rng.Float64() >= g.ForestDensity {
				continue
			}
			if g.tooClose(sites, x, z) {
				continue
			}
			base := vec.Vec3{X: x, Y: g.SurfaceHeight(x, z) + 1, Z: z}
			kind := g.KindAt(x, z)
			GrowTree(tx, kind, base, rng)
			sites = append(sites, TreeSite{Kind: kind, Base: base})
		}
	}
	return sites
}

func (g *Generator) fillColumn(tx *Tx, x, z int) {
	surface := g.SurfaceHeight(x, z)
	for y := surface - 4; y <= surface; y++ {
		pos := vec.Vec3{X: x, Y: y, Z: z}
		switch {
		case y == surface:
			tx.SetMaterial(pos, block.Grass)
		case y >= surface-2:
			tx.SetMaterial(pos, block.Dirt)
		default:
			tx.SetMaterial(pos, block.Stone)
		}
	}
}

func (g *Generator) tooClose(sites []TreeSite, x, z int) bool {
	for _, s := range sites {
		if abs(s.Base.X-x) < g.TreeSpacing && abs(s.Base.Z-z) < g.TreeSpacing {
			return true
		}
	}
	return false
}

// columnRand создаёт локальный генератор для колонны, как для чанков у генератора мира
func (g *Generator) columnRand(x, z int) *rand.Rand {
	seed := g.Seed + int64(x)*341873128712 + int64(z)*132897987541
	return rand.New(rand.NewSource(seed))
}

// GrowTree строит дерево указанной породы с основанием ствола в base
func GrowTree(tx *Tx, kind TreeKind, base vec.Vec3, rng *rand.Rand) {
	switch kind {
	case TreeOak:
		h := 4 + rng.Intn(3)
		basicTop(tx, base, block.OakLeaves, h, rng)
		trunk(tx, base, block.OakLog, h)
	case TreeBirch:
		h := 5 + rng.Intn(3)
		basicTop(tx, base, block.BirchLeaves, h, rng)
		trunk(tx, base, block.BirchLog, h)
	case TreeSpruce:
		h := 6 + rng.Intn(4)
		coneTop(tx, base, block.SpruceLeaves, h)
		trunk(tx, base, block.SpruceLog, h)
	case TreeAcacia:
		acacia(tx, base, rng)
	}
}

// trunk ставит вертикальный ствол высотой h
func trunk(tx *Tx, base vec.Vec3, log block.Material, h int) {
	for y := 0; y < h; y++ {
		tx.SetMaterial(base.Add(vec.Vec3{Y: y}), log)
	}
}

// basicTop строит округлую крону вокруг вершины ствола высотой h
func basicTop(tx *Tx, base vec.Vec3, leaves block.Material, h int, rng *rand.Rand) {
	top := base.Y + h
	for y := top - 3; y <= top; y++ {
		yOff := y - top
		radius := 1 - yOff/2
		for x := -radius; x <= radius; x++ {
			for z := -radius; z <= radius; z++ {
				if abs(x) == radius && abs(z) == radius && (yOff == 0 || rng.Intn(2) == 0) {
					continue
				}
				placeLeaf(tx, vec.Vec3{X: base.X + x, Y: y, Z: base.Z + z}, leaves)
			}
		}
	}
}

// coneTop строит коническую крону ели
func coneTop(tx *Tx, base vec.Vec3, leaves block.Material, h int) {
	top := base.Y + h
	radius := 0
	for y := top; y >= base.Y+2; y-- {
		for x := -radius; x <= radius; x++ {
			for z := -radius; z <= radius; z++ {
				if radius > 0 && abs(x) == radius && abs(z) == radius {
					continue
				}
				placeLeaf(tx, vec.Vec3{X: base.X + x, Y: y, Z: base.Z + z}, leaves)
			}
		}
		radius++
		if radius > 2 {
			radius = 1
		}
	}
}

// acacia строит наклонный ствол с плоской кроной. Ствол смещается по диагонали,
// поэтому дерево связно только при 26-связности.
func acacia(tx *Tx, base vec.Vec3, rng *rand.Rand) {
	dirs := []vec.Vec3{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}
	dir := dirs[rng.Intn(len(dirs))]

	straight := 2 + rng.Intn(2)
	bent := 2 + rng.Intn(2)

	pos := base
	for i := 0; i < straight; i++ {
		tx.SetMaterial(pos, block.AcaciaLog)
		pos = pos.Add(vec.Vec3{Y: 1})
	}
	pos = pos.Add(dir)
	for i := 0; i < bent; i++ {
		tx.SetMaterial(pos, block.AcaciaLog)
		pos = pos.Add(vec.Vec3{Y: 1}).Add(dir)
	}
	crown := pos.Sub(dir)
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			if abs(x) == 2 && abs(z) == 2 {
				continue
			}
			placeLeaf(tx, vec.Vec3{X: crown.X + x, Y: crown.Y, Z: crown.Z + z}, block.AcaciaLeaves)
		}
	}
	placeLeaf(tx, crown.Add(vec.Vec3{Y: 1}), block.AcaciaLeaves)
}

func placeLeaf(tx *Tx, pos vec.Vec3, leaves block.Material) {
	if tx.Material(pos).IsAir() {
		tx.SetMaterial(pos, leaves)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
