package tree

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zeebo/xxh3"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

// Drop пара (место, предмет), которая появится в мире после рубки
type Drop struct {
	Location vec.Vec3Float   `json:"location"`
	Item     world.ItemStack `json:"item"`
}

// Felled блок, убранный из мира при рубке, с материалом на момент удаления
type Felled struct {
	Pos      vec.Vec3
	Material block.Material
	Leaf     bool // Блок пришёл из множества листвы
}

// Yield правила выпадения предметов при рубке
type Yield struct {
	WorldSeed     int64
	DropAtLanding bool // Сдвигать выпадение вдоль оси падения
}

// Seed возвращает детерминированный сид для дерева
func (y Yield) Seed(s *Structure) int64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(s.Root.X))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(s.Root.Y))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(s.Root.Z))
	o := s.Origin.Pos()
	binary.LittleEndian.PutUint32(buf[24:], uint32(int32(o.X)))
	binary.LittleEndian.PutUint32(buf[28:], uint32(int32(o.Y)))
	binary.LittleEndian.PutUint32(buf[32:], uint32(int32(o.Z)))
	return int64(xxh3.Hash(buf[:]) ^ uint64(y.WorldSeed))
}

// Compute вычисляет выпадение для убранных блоков. Брёвна выпадают всегда,
// листва даёт саженцы, палки и яблоки с вероятностями породы.
// Результат упорядочен: сначала брёвна, затем листва, внутри по позиции.
func (y Yield) Compute(s *Structure, felled []Felled, axis mgl32.Vec3) []Drop {
	ordered := append([]Felled(nil), felled...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Leaf != ordered[j].Leaf {
			return !ordered[i].Leaf
		}
		return ordered[i].Pos.Less(ordered[j].Pos)
	})

	rng := rand.New(rand.NewSource(y.Seed(s)))
	var drops []Drop
	for _, f := range ordered {
		loc := y.location(s, f.Pos, axis)
		for _, stack := range y.items(s, f, rng) {
			drops = append(drops, Drop{Location: loc, Item: stack})
		}
	}
	return drops
}

func (y Yield) items(s *Structure, f Felled, rng *rand.Rand) []world.ItemStack {
	sp := s.Species
	switch {
	case f.Material.IsAir():
		return nil
	case s.LeavesMaterials.Contains(f.Material):
		// четыре броска на каждый лист при любой породе
		sapling := rng.Float64()
		stick := rng.Float64()
		sticks := 1 + rng.Intn(2)
		apple := rng.Float64()

		var out []world.ItemStack
		if sp == nil {
			return nil
		}
		if sp.Sapling != block.Air && sapling < sp.SaplingChance {
			out = append(out, world.NewItemStack(sp.Sapling, 1))
		}
		if stick < sp.StickChance {
			out = append(out, world.NewItemStack(block.Stick, sticks))
		}
		if apple < sp.AppleChance {
			out = append(out, world.NewItemStack(block.Apple, 1))
		}
		return out
	case s.LogMaterials.Contains(f.Material):
		return []world.ItemStack{world.NewItemStack(f.Material, 1)}
	}
	// блок, добавленный обработчиком: выпадает сам, если он твёрдый
	if info, ok := block.Get(f.Material); ok && info.Placeable && info.Solid {
		return []world.ItemStack{world.NewItemStack(f.Material, 1)}
	}
	return nil
}

// location возвращает место выпадения. С DropAtLanding блок «падает» вдоль оси
// на расстояние своей высоты над корнем и приземляется на уровень корня.
func (y Yield) location(s *Structure, pos vec.Vec3, axis mgl32.Vec3) vec.Vec3Float {
	c := pos.Center()
	if !y.DropAtLanding {
		return c
	}
	dist := float64(pos.Y - s.MinY)
	return vec.Vec3Float{
		X: c.X + float64(axis.X())*dist,
		Y: s.Root.Y + 0.5,
		Z: c.Z + float64(axis.Z())*dist,
	}
}
