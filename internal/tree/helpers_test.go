package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New(world.Config{Name: "tree-test", Seed: 1})
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func place(t *testing.T, w *world.World, m block.Material, positions ...vec.Vec3) {
	t.Helper()
	require.NoError(t, w.ExecContext(context.Background(), func(tx *world.Tx) {
		for _, p := range positions {
			tx.SetMaterial(p, m)
		}
	}))
}

// column возвращает вертикальный ряд из n блоков начиная с base
func column(base vec.Vec3, n int) []vec.Vec3 {
	out := make([]vec.Vec3, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, base.Add(vec.Vec3{Y: i}))
	}
	return out
}

// ring возвращает кольцо 3x3 без центра на высоте y вокруг (x, z)
func ring(x, y, z int) []vec.Vec3 {
	var out []vec.Vec3
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			out = append(out, vec.Vec3{X: x + dx, Y: y, Z: z + dz})
		}
	}
	return out
}

// plantOak ставит прямой дуб: ствол высотой h и симметричную крону на двух верхних слоях
func plantOak(t *testing.T, w *world.World, base vec.Vec3, h int) {
	t.Helper()
	place(t, w, block.OakLog, column(base, h)...)
	top := base.Y + h - 1
	place(t, w, block.OakLeaves, ring(base.X, top, base.Z)...)
	place(t, w, block.OakLeaves, ring(base.X, top-1, base.Z)...)
	place(t, w, block.OakLeaves, vec.Vec3{X: base.X, Y: top + 1, Z: base.Z})
}

func oak(t *testing.T) *Species {
	t.Helper()
	for _, sp := range DefaultSpecies() {
		if sp.Name == "oak" {
			return sp
		}
	}
	t.Fatal("oak species not found")
	return nil
}
