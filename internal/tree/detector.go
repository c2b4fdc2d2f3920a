package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

// Ошибки обнаружения. Все они оборачивают ErrNotATree и означают
// обычный отрицательный результат: блок ломается как обычно.
var (
	ErrNotATree      = errors.New("tree: структура не является деревом")
	ErrTooManyLogs   = fmt.Errorf("%w: слишком много брёвен", ErrNotATree)
	ErrTooManyLeaves = fmt.Errorf("%w: слишком много листвы", ErrNotATree)
	ErrTooTall       = fmt.Errorf("%w: слишком высокое", ErrNotATree)
	ErrNoCanopy      = fmt.Errorf("%w: нет кроны", ErrNotATree)
)

// DetectorConfig ограничения обхода
type DetectorConfig struct {
	Connectivity int // 6 или 26
	MaxLogs      int
	MaxLeaves    int
	MaxHeight    int
	LeafRange    int // Глубина обхода листвы от ствола, 1 = один слой вокруг брёвен
	MinLeaves    int // Минимум листвы, 0 = крона не обязательна
}

// DefaultDetectorConfig возвращает ограничения по умолчанию
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Connectivity: 26,
		MaxLogs:      256,
		MaxLeaves:    1024,
		MaxHeight:    48,
		LeafRange:    1,
		MinLeaves:    1,
	}
}

func (c DetectorConfig) normalized() DetectorConfig {
	def := DefaultDetectorConfig()
	if c.Connectivity != 6 && c.Connectivity != 26 {
		c.Connectivity = def.Connectivity
	}
	if c.MaxLogs <= 0 {
		c.MaxLogs = def.MaxLogs
	}
	if c.MaxLeaves <= 0 {
		c.MaxLeaves = def.MaxLeaves
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = def.MaxHeight
	}
	if c.LeafRange <= 0 {
		c.LeafRange = 1
	}
	if c.MinLeaves < 0 {
		c.MinLeaves = 0
	}
	return c
}

// Detector находит структуру дерева ограниченным обходом в ширину.
// Только читает мир и может работать вне цикла мира.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector создаёт детектор
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.normalized()}
}

// Config возвращает действующие ограничения
func (d *Detector) Config() DetectorConfig { return d.cfg }

// Detect находит дерево, начиная с origin. Origin считается бревном, даже если
// он уже сломан. Брёвна ниже origin не обходятся: пень остаётся на месте.
// При ошибке мир не изменяется.
func (d *Detector) Detect(ctx context.Context, origin world.Block, sp *Species) (*Structure, error) {
	w := origin.World()
	if w == nil || sp == nil {
		return nil, ErrNotATree
	}
	start := origin.Pos()

	logs, err := d.walkLogs(ctx, w, start, sp)
	if err != nil {
		return nil, err
	}
	stump := d.walkStump(w, start, sp)
	own := func(p vec.Vec3) bool {
		if _, ok := logs[p]; ok {
			return true
		}
		_, ok := stump[p]
		return ok
	}
	leaves, err := d.walkLeaves(ctx, w, logs, own, sp)
	if err != nil {
		return nil, err
	}
	if len(leaves) < d.cfg.MinLeaves {
		return nil, fmt.Errorf("%w: %d из %d", ErrNoCanopy, len(leaves), d.cfg.MinLeaves)
	}

	logList := make([]vec.Vec3, 0, len(logs))
	for p := range logs {
		logList = append(logList, p)
	}
	return newStructure(w, start, sp, logList, leaves), nil
}

func (d *Detector) walkLogs(ctx context.Context, w *world.World, start vec.Vec3, sp *Species) (map[vec.Vec3]struct{}, error) {
	logs := map[vec.Vec3]struct{}{start: {}}
	visited := map[vec.Vec3]struct{}{start: {}}
	queue := []vec.Vec3{start}
	minY, maxY := start.Y, start.Y

	for steps := 0; len(queue) > 0; steps++ {
		if steps&63 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := queue[0]
		queue = queue[1:]

		for _, n := range cur.Neighbours(d.cfg.Connectivity) {
			if n.Y < start.Y {
				continue
			}
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			if sp.Classify(w.Material(n)) != KindLog {
				continue
			}

			logs[n] = struct{}{}
			if len(logs) > d.cfg.MaxLogs {
				return nil, fmt.Errorf("%w: больше %d", ErrTooManyLogs, d.cfg.MaxLogs)
			}
			if n.Y < minY {
				minY = n.Y
			}
			if n.Y > maxY {
				maxY = n.Y
			}
			if maxY-minY+1 > d.cfg.MaxHeight {
				return nil, fmt.Errorf("%w: больше %d", ErrTooTall, d.cfg.MaxHeight)
			}
			queue = append(queue, n)
		}
	}
	return logs, nil
}

// walkStump собирает брёвна пня ниже origin. Они не рубятся, но остаются
// своими при проверке листвы на принадлежность соседу.
func (d *Detector) walkStump(w *world.World, start vec.Vec3, sp *Species) map[vec.Vec3]struct{} {
	stump := make(map[vec.Vec3]struct{})
	queue := []vec.Vec3{start}
	for len(queue) > 0 && len(stump) < d.cfg.MaxLogs {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbours(d.cfg.Connectivity) {
			if n.Y >= start.Y {
				continue
			}
			if _, seen := stump[n]; seen {
				continue
			}
			if sp.Classify(w.Material(n)) != KindLog {
				continue
			}
			stump[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return stump
}

type leafStep struct {
	pos   vec.Vec3
	depth int
}

func (d *Detector) walkLeaves(ctx context.Context, w *world.World, logs map[vec.Vec3]struct{}, own func(vec.Vec3) bool, sp *Species) ([]vec.Vec3, error) {
	visited := make(map[vec.Vec3]struct{})
	var leaves []vec.Vec3
	var queue []leafStep

	// Обход идёт по возрастанию глубины, поэтому depth у листа минимальна.
	// Лист, до которого чужое бревно той же породы не дальше, чем свой ствол,
	// принадлежит соседнему дереву.
	accept := func(p vec.Vec3, depth int) error {
		if _, seen := visited[p]; seen {
			return nil
		}
		visited[p] = struct{}{}
		if own(p) {
			return nil
		}
		if sp.Classify(w.Material(p)) != KindLeaf || d.foreignWithin(w, p, depth, own, sp) {
			return nil
		}
		leaves = append(leaves, p)
		if len(leaves) > d.cfg.MaxLeaves {
			return fmt.Errorf("%w: больше %d", ErrTooManyLeaves, d.cfg.MaxLeaves)
		}
		queue = append(queue, leafStep{pos: p, depth: depth})
		return nil
	}

	for p := range logs {
		for _, n := range p.Neighbours(d.cfg.Connectivity) {
			if err := accept(n, 1); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps&63 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= d.cfg.LeafRange {
			continue
		}
		for _, n := range cur.pos.Neighbours(d.cfg.Connectivity) {
			if err := accept(n, cur.depth+1); err != nil {
				return nil, err
			}
		}
	}
	return leaves, nil
}

// foreignWithin ищет чужое бревно породы sp на расстоянии не больше r от p.
// Расстояние согласовано со связностью: Чебышёва для 26, манхэттенское для 6.
func (d *Detector) foreignWithin(w *world.World, p vec.Vec3, r int, own func(vec.Vec3) bool, sp *Species) bool {
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if d.cfg.Connectivity == 6 && absInt(dx)+absInt(dy)+absInt(dz) > r {
					continue
				}
				q := p.Add(vec.Vec3{X: dx, Y: dy, Z: dz})
				if own(q) {
					continue
				}
				if sp.Classify(w.Material(q)) == KindLog {
					return true
				}
			}
		}
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
