package tree

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

func detectOak(t *testing.T) (*world.World, *Structure) {
	t.Helper()
	w := newTestWorld(t)
	base := vec.Vec3{X: 0, Y: 64, Z: 0}
	plantOak(t, w, base, 5)

	s, err := NewDetector(DefaultDetectorConfig()).Detect(context.Background(), w.Block(base), oak(t))
	require.NoError(t, err)
	return w, s
}

func felledOf(w *world.World, s *Structure) []Felled {
	var out []Felled
	for _, p := range s.Logs.Positions() {
		out = append(out, Felled{Pos: p, Material: w.Material(p)})
	}
	for _, p := range s.Leaves.Positions() {
		out = append(out, Felled{Pos: p, Material: w.Material(p), Leaf: true})
	}
	return out
}

func TestYield_LogsAlwaysDrop(t *testing.T) {
	w, s := detectOak(t)
	s.Species = &Species{Name: "barren", Logs: s.LogMaterials, Leaves: s.LeavesMaterials}

	drops := Yield{WorldSeed: 7}.Compute(s, felledOf(w, s), DefaultAxis)

	require.Len(t, drops, 5, "Без шансов листвы выпадают только брёвна")
	for i, d := range drops {
		assert.Equal(t, world.NewItemStack(block.OakLog, 1), d.Item)
		assert.Equal(t, vec.Vec3{X: 0, Y: 64 + i, Z: 0}.Center(), d.Location, "Брёвна упорядочены по высоте")
	}
}

func TestYield_LeafChances(t *testing.T) {
	w, s := detectOak(t)
	s.Species = &Species{
		Name:          "generous",
		Logs:          s.LogMaterials,
		Leaves:        s.LeavesMaterials,
		Sapling:       block.OakSapling,
		SaplingChance: 1,
		StickChance:   1,
		AppleChance:   1,
	}

	drops := Yield{}.Compute(s, felledOf(w, s), DefaultAxis)

	totals := make(map[block.Material]int)
	for _, d := range drops {
		totals[d.Item.Material] += d.Item.Count
	}
	assert.Equal(t, 5, totals[block.OakLog])
	assert.Equal(t, 17, totals[block.OakSapling])
	assert.Equal(t, 17, totals[block.Apple])
	assert.GreaterOrEqual(t, totals[block.Stick], 17)
	assert.LessOrEqual(t, totals[block.Stick], 34)
}

func TestYield_Deterministic(t *testing.T) {
	w, s := detectOak(t)
	felled := felledOf(w, s)

	y := Yield{WorldSeed: 99}
	first := y.Compute(s, felled, DefaultAxis)

	// порядок входа не влияет на результат
	reversed := make([]Felled, len(felled))
	for i, f := range felled {
		reversed[len(felled)-1-i] = f
	}
	assert.Equal(t, first, y.Compute(s, reversed, DefaultAxis))
	assert.Equal(t, y.Seed(s), y.Seed(s))
	assert.NotEqual(t, y.Seed(s), Yield{WorldSeed: 100}.Seed(s))
}

func TestYield_AirAndForeignBlocks(t *testing.T) {
	_, s := detectOak(t)
	felled := []Felled{
		{Pos: vec.Vec3{Y: 64}, Material: block.Air},
		{Pos: vec.Vec3{Y: 65}, Material: block.Stone},
		{Pos: vec.Vec3{Y: 66}, Material: block.Water},
	}

	drops := Yield{}.Compute(s, felled, DefaultAxis)
	require.Len(t, drops, 1, "Воздух и нетвёрдые блоки ничего не роняют")
	assert.Equal(t, block.Stone, drops[0].Item.Material)
}

func TestYield_DropAtLanding(t *testing.T) {
	_, s := detectOak(t)
	felled := []Felled{{Pos: vec.Vec3{X: 0, Y: 68, Z: 0}, Material: block.OakLog}}

	drops := Yield{DropAtLanding: true}.Compute(s, felled, mgl32.Vec3{0, 0, 1})
	require.Len(t, drops, 1)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 64.5, Z: 4.5}, drops[0].Location)
}
