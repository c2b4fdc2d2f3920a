// forest-sim генерирует лес и рубит его группой симулированных игроков.
// Используется для нагрузочной проверки конвейера рубки без сетевого слоя.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/treefell/internal/chop"
	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

func main() {
	var (
		seed     = flag.Int64("seed", 42, "сид мира")
		radius   = flag.Int("radius", 3, "радиус леса в чанках")
		players  = flag.Int("players", 8, "количество игроков")
		workers  = flag.Int("workers", 0, "воркеры обнаружения (0 = NumCPU)")
		landing  = flag.Bool("drop-at-landing", true, "выпадение в месте падения дерева")
		veto     = flag.Float64("veto", 0.1, "доля рубок, отменяемых обработчиком старта")
		disabled = flag.Int("disabled", 1, "игроков с выключенной рубкой")
		timeout  = flag.Duration("timeout", time.Minute, "максимальное время симуляции")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := simulate(ctx, simConfig{
		seed:     *seed,
		radius:   *radius,
		players:  *players,
		workers:  *workers,
		landing:  *landing,
		veto:     *veto,
		disabled: *disabled,
	}); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

type simConfig struct {
	seed     int64
	radius   int
	players  int
	workers  int
	landing  bool
	veto     float64
	disabled int
}

func simulate(ctx context.Context, sc simConfig) error {
	w := world.New(world.Config{Name: "forest-sim", Seed: sc.seed})
	w.Run(context.Background())
	defer func() {
		w.Close()
		<-w.Done()
	}()

	gen := world.NewGenerator(sc.seed)
	var sites []world.TreeSite
	r := sc.radius * 16
	if err := w.ExecContext(ctx, func(tx *world.Tx) {
		sites = gen.Generate(tx, vec.Vec2{X: -r, Y: -r}, vec.Vec2{X: r - 1, Y: r - 1})
	}); err != nil {
		return err
	}
	fmt.Printf("🌳 Сгенерировано %d деревьев в %d чанках\n", len(sites), w.ChunkCount())

	classifier, err := tree.NewClassifier(tree.DefaultSpecies()...)
	if err != nil {
		return err
	}
	prefs := preference.NewStore(true)
	jr := journal.NewMemory(len(sites) + 1)

	cfg := chop.DefaultConfig()
	cfg.Workers = sc.workers
	cfg.QueueSize = len(sites) + 1
	cfg.DropAtLanding = sc.landing
	orch, err := chop.New(cfg, classifier, chop.Options{
		Preferences: prefs,
		Journal:     jr,
		Registerer:  prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	orch.Attach(w)

	// часть рубок отменяет «защита территории»
	var vetoed atomic.Int64
	vetoRng := rand.New(rand.NewSource(sc.seed))
	var vetoMu sync.Mutex
	orch.Dispatcher().Register(chop.KindStartChopTree, eventbus.PriorityHigh, func(_ context.Context, ev eventbus.Event) {
		vetoMu.Lock()
		deny := vetoRng.Float64() < sc.veto
		vetoMu.Unlock()
		if deny {
			ev.(*chop.StartChopTreeEvent).SetCancelled(true)
			vetoed.Add(1)
		}
	}, eventbus.WithName("sim-veto"))

	var dropped atomic.Int64
	orch.Dispatcher().Register(chop.KindDropItems, eventbus.PriorityMonitor, func(_ context.Context, ev eventbus.Event) {
		dropped.Add(int64(ev.(*chop.DropItemsEvent).Drops().Len()))
	}, eventbus.IgnoreCancelled(), eventbus.WithName("sim-drops"))

	lumberjacks := make([]*player.Player, sc.players)
	for i := range lumberjacks {
		lumberjacks[i] = player.NewRandom(fmt.Sprintf("lumberjack-%d", i), vec.Vec3Float{})
		if i < sc.disabled {
			prefs.Set(lumberjacks[i].UUID(), false)
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i, p := range lumberjacks {
		wg.Add(1)
		go func(i int, p *player.Player) {
			defer wg.Done()
			for j := i; j < len(sites); j += len(lumberjacks) {
				base := sites[j].Base
				// игрок стоит в двух блоках к западу от ствола
				p.Move(vec.Vec3Float{X: float64(base.X) - 1.5, Y: float64(base.Y), Z: float64(base.Z) + 0.5})
				if err := w.ExecContext(ctx, func(tx *world.Tx) { tx.BreakBlock(base, p) }); err != nil {
					return
				}
			}
		}(i, p)
	}
	wg.Wait()

	if err := waitIdle(ctx, orch); err != nil {
		return err
	}
	elapsed := time.Since(start)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := orch.Close(closeCtx); err != nil {
		return err
	}

	report(orch.Stats(), jr, w, elapsed, vetoed.Load(), dropped.Load())
	return nil
}

func waitIdle(ctx context.Context, orch *chop.Orchestrator) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		st := orch.Stats()
		if st.Active == 0 && st.Done+st.Cancelled == st.Started {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("симуляция не завершилась: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func report(st chop.Stats, jr *journal.Memory, w *world.World, elapsed time.Duration, vetoed, dropped int64) {
	fmt.Printf("⏱  %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("🪓 Запущено %d, срублено %d, отменено %d (не дерево: %d, вето: %d)\n",
		st.Started, st.Done, st.Cancelled, st.NotATree, vetoed)
	fmt.Printf("📦 Предложено предметов: %d\n", dropped)

	records, _ := jr.Recent(context.Background(), jr.Len())
	bySpecies := make(map[string]int)
	var logs, leaves int
	for _, rec := range records {
		if rec.State != "done" {
			continue
		}
		bySpecies[rec.Species]++
		logs += rec.Logs
		leaves += rec.Leaves
	}
	fmt.Printf("🌲 Убрано брёвен %d, листвы %d\n", logs, leaves)

	names := make([]string, 0, len(bySpecies))
	for name := range bySpecies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("   %-10s %d\n", name, bySpecies[name])
	}

	totals := w.ItemTotals()
	mats := make([]string, 0, len(totals))
	for m, n := range totals {
		mats = append(mats, fmt.Sprintf("%s=%d", m, n))
	}
	sort.Strings(mats)
	fmt.Printf("🎒 Предметы в мире: %v\n", mats)
}
