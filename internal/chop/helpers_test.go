package chop

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

var treeMaterials = []block.Material{block.OakLog, block.OakLeaves}

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New(world.Config{Name: "chop-test", Seed: 7})
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func newTestOrchestrator(t *testing.T, cfg Config, opts Options) *Orchestrator {
	t.Helper()
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Preferences == nil {
		opts.Preferences = preference.NewStore(true)
	}
	classifier, err := tree.NewClassifier(tree.DefaultSpecies()...)
	require.NoError(t, err)
	o, err := New(cfg, classifier, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Close(ctx)
	})
	return o
}

func place(t *testing.T, w *world.World, m block.Material, positions ...vec.Vec3) {
	t.Helper()
	require.NoError(t, w.ExecContext(context.Background(), func(tx *world.Tx) {
		for _, p := range positions {
			tx.SetMaterial(p, m)
		}
	}))
}

func column(base vec.Vec3, n int) []vec.Vec3 {
	out := make([]vec.Vec3, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, base.Add(vec.Vec3{Y: i}))
	}
	return out
}

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

// plantOak ставит дуб: ствол высотой h и 17 блоков листвы
func plantOak(t *testing.T, w *world.World, base vec.Vec3, h int) {
	t.Helper()
	place(t, w, block.OakLog, column(base, h)...)
	top := base.Y + h - 1
	place(t, w, block.OakLeaves, ring(base.X, top, base.Z)...)
	place(t, w, block.OakLeaves, ring(base.X, top-1, base.Z)...)
	place(t, w, block.OakLeaves, vec.Vec3{X: base.X, Y: top + 1, Z: base.Z})
}

// chopAt ломает блок от имени игрока так же, как это делает цикл мира,
// и возвращает запущенную рубку
func chopAt(t *testing.T, w *world.World, o *Orchestrator, p *player.Player, pos vec.Vec3) (*Chop, bool) {
	t.Helper()
	var (
		c  *Chop
		ok bool
	)
	require.NoError(t, w.ExecContext(context.Background(), func(tx *world.Tx) {
		c, ok = o.Trigger(tx, p, pos)
		tx.BreakBlock(pos, p)
	}))
	return c, ok
}

func wait(t *testing.T, c *Chop) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := c.Wait(ctx)
	require.NoError(t, err)
	return r
}
