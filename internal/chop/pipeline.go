package chop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
	"github.com/annel0/treefell/internal/world/block"
)

// pipeline один экземпляр конвейера рубки. Не переиспользуется.
type pipeline struct {
	o       *Orchestrator
	w       *world.World
	player  *player.Player
	origin  vec.Vec3
	species *tree.Species
	chop    *Chop
	result  Result
}

func newPipeline(o *Orchestrator, w *world.World, p *player.Player, origin vec.Vec3, sp *tree.Species) *pipeline {
	id := uuid.New()
	return &pipeline{
		o:       o,
		w:       w,
		player:  p,
		origin:  origin,
		species: sp,
		chop:    newChop(id),
		result: Result{
			ID:         id,
			PlayerID:   p.UUID(),
			PlayerName: p.Name(),
			World:      w.Name(),
			Species:    sp.Name,
			Origin:     origin,
			State:      StateIdle,
			StartedAt:  time.Now(),
		},
	}
}

func (p *pipeline) transition(to State) {
	from := p.chop.State()
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("chop: недопустимый переход %s -> %s", from, to))
	}
	p.chop.state.Store(int32(to))
	p.result.State = to
	p.o.log.Trace("Рубка %s: %s -> %s", p.chop.id, from, to)
}

func (p *pipeline) cancel(span trace.Span, reason string, err error) {
	p.transition(StateCancelled)
	p.result.Reason = reason
	if err != nil {
		p.result.Detail = err.Error()
	}
	span.SetAttributes(attribute.String("chop.reason", reason))
	if err != nil && reason != ReasonNotATree {
		span.SetStatus(codes.Error, err.Error())
	}
}

// run проходит все состояния конвейера. Выполняется в пуле воркеров.
func (p *pipeline) run(ctx context.Context) {
	ctx, span := p.o.tracer.Start(ctx, "chop.pipeline", trace.WithAttributes(
		attribute.String("chop.id", p.chop.id.String()),
		attribute.String("chop.species", p.species.Name),
		attribute.String("player.name", p.player.Name()),
		attribute.Int("origin.x", p.origin.X),
		attribute.Int("origin.y", p.origin.Y),
		attribute.Int("origin.z", p.origin.Z),
	))
	defer func() {
		span.SetAttributes(attribute.String("chop.state", p.result.State.String()))
		span.End()
		p.o.finish(p.chop, p.result)
	}()
	defer func() {
		// паника обработчика уже перехвачена диспетчером; здесь только сбои самого конвейера
		if r := recover(); r != nil {
			if !p.result.State.Terminal() {
				p.chop.state.Store(int32(StateCancelled))
				p.result.State = StateCancelled
				p.result.Reason = ReasonAborted
				p.result.Detail = fmt.Sprint(r)
			}
			span.SetStatus(codes.Error, fmt.Sprint(r))
			panic(r)
		}
	}()

	p.transition(StateDetecting)
	s, axis, err := p.detect(ctx)
	if err != nil {
		reason := ReasonNotATree
		if !errors.Is(err, tree.ErrNotATree) {
			reason = ReasonAborted
		}
		p.o.log.Debug("Рубка %s: дерево не найдено в %v: %v", p.chop.id, p.origin, err)
		p.cancel(span, reason, err)
		return
	}

	p.transition(StateAwaitingStartDecision)
	start := newStartChopTreeEvent(s, p.player, axis)
	cancelled := !p.o.dispatcher.Dispatch(ctx, start)
	axis = tree.Sanitize(start.freeze(), p.o.cfg.DefaultAxis)
	p.result.Axis = axis
	if cancelled {
		p.cancel(span, ReasonStartCancelled, nil)
		return
	}
	if err := ctx.Err(); err != nil {
		p.cancel(span, ReasonAborted, err)
		return
	}

	p.transition(StateFelling)
	felled, err := p.fell(ctx, s, axis)
	if err != nil {
		p.cancel(span, ReasonWorldClosed, err)
		return
	}

	p.transition(StateAwaitingDropDecision)
	yield := tree.Yield{WorldSeed: p.w.Seed(), DropAtLanding: p.o.cfg.DropAtLanding}
	drops := NewDropList(yield.Compute(s, felled, axis))
	dropEvent := &DropItemsEvent{drops: drops, origin: s.Origin, player: p.player, axis: axis}
	if !p.o.dispatcher.Dispatch(ctx, dropEvent) {
		p.cancel(span, ReasonDropCancelled, nil)
		return
	}

	p.transition(StateMaterializing)
	if err := p.materialize(ctx, drops.Snapshot()); err != nil {
		p.cancel(span, ReasonWorldClosed, err)
		return
	}
	p.transition(StateDone)
}

// detect находит дерево и вычисляет ось падения
func (p *pipeline) detect(ctx context.Context) (*tree.Structure, mgl32.Vec3, error) {
	ctx, span := p.o.tracer.Start(ctx, "chop.detect")
	defer span.End()

	s, err := p.o.detector.Detect(ctx, p.w.Block(p.origin), p.species)
	if err != nil {
		return nil, mgl32.Vec3{}, err
	}
	span.SetAttributes(
		attribute.Int("tree.logs", s.Logs.Len()),
		attribute.Int("tree.leaves", s.Leaves.Len()),
		attribute.Int("tree.height", s.Height),
	)

	if axis, ok := p.o.axis.Compute(s); ok {
		return s, axis, nil
	}
	// симметричное дерево падает от игрока
	if axis, ok := tree.Towards(p.player.Position(), s.Root); ok {
		return s, axis, nil
	}
	return s, p.o.cfg.DefaultAxis, nil
}

type fellTarget struct {
	pos  vec.Vec3
	leaf bool
	key  float32
}

// fellOrder упорядочивает блоки вдоль оси падения: ближние к корню первыми, затем по высоте
func fellOrder(s *tree.Structure, axis mgl32.Vec3) []fellTarget {
	seen := make(map[vec.Vec3]struct{})
	var targets []fellTarget
	add := func(b world.Block, leaf bool) {
		pos := b.Pos()
		if _, dup := seen[pos]; dup {
			return
		}
		seen[pos] = struct{}{}
		c := pos.Center()
		off := mgl32.Vec3{float32(c.X - s.Root.X), 0, float32(c.Z - s.Root.Z)}
		targets = append(targets, fellTarget{pos: pos, leaf: leaf, key: off.Dot(axis)})
	}
	for _, b := range s.Logs.Snapshot() {
		add(b, false)
	}
	for _, b := range s.Leaves.Snapshot() {
		add(b, true)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].key != targets[j].key {
			return targets[i].key < targets[j].key
		}
		return targets[i].pos.Less(targets[j].pos)
	})
	return targets
}

// fell убирает блоки дерева одной задачей в цикле мира
func (p *pipeline) fell(ctx context.Context, s *tree.Structure, axis mgl32.Vec3) ([]tree.Felled, error) {
	ctx, span := p.o.tracer.Start(ctx, "chop.fell")
	defer span.End()

	targets := fellOrder(s, axis)
	var felled []tree.Felled
	err := p.w.ExecContext(ctx, func(tx *world.Tx) {
		for _, t := range targets {
			prev := tx.SetMaterial(t.pos, block.Air)
			if prev.IsAir() {
				continue
			}
			felled = append(felled, tree.Felled{Pos: t.pos, Material: prev, Leaf: t.leaf})
		}
	})
	if err != nil {
		return nil, err
	}

	for _, f := range felled {
		if f.Leaf {
			p.result.Leaves++
		} else {
			p.result.Logs++
		}
	}
	span.SetAttributes(attribute.Int("felled", len(felled)))
	return felled, nil
}

// materialize создаёт предметы одной задачей в цикле мира
func (p *pipeline) materialize(ctx context.Context, drops []Drop) error {
	ctx, span := p.o.tracer.Start(ctx, "chop.materialize")
	defer span.End()

	spawned := 0
	err := p.w.ExecContext(ctx, func(tx *world.Tx) {
		for _, d := range drops {
			if tx.SpawnItem(d.Location, d.Item) != 0 {
				spawned += d.Item.Count
			}
		}
	})
	if err != nil {
		return err
	}
	p.result.Drops = spawned
	span.SetAttributes(attribute.Int("drops", spawned))
	return nil
}
