package chop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/logging"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/preference"
	"github.com/annel0/treefell/internal/tree"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

// Типы асинхронных уведомлений о завершении рубки
const (
	EnvelopeCompleted = "chop.completed"
	EnvelopeCancelled = "chop.cancelled"
)

// Config настройки оркестратора
type Config struct {
	Detector      tree.DetectorConfig
	LeafMass      float32    // Вес листа при расчёте оси
	DefaultAxis   mgl32.Vec3 // Ось, если наклон не определён и игрок стоит на оси ствола
	DropAtLanding bool       // Предметы выпадают там, куда упало дерево
	Workers       int        // Воркеры обнаружения
	QueueSize     int        // Очередь обнаружения
	Source        string     // Источник в конвертах шины
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Detector:    tree.DefaultDetectorConfig(),
		LeafMass:    0.25,
		DefaultAxis: tree.DefaultAxis,
		Source:      "treefell",
	}
}

// Options внешние зависимости оркестратора. Пустые поля заменяются значениями по умолчанию.
type Options struct {
	Preferences preference.API
	Dispatcher  *eventbus.Dispatcher
	Bus         eventbus.EventBus
	Journal     journal.Journal
	Registerer  prometheus.Registerer
	Tracer      trace.Tracer
}

// Stats счётчики оркестратора
type Stats struct {
	Started   uint64 `json:"started"`
	Done      uint64 `json:"done"`
	Cancelled uint64 `json:"cancelled"`
	NotATree  uint64 `json:"not_a_tree"`
	Active    int    `json:"active"`
}

// Orchestrator запускает конвейер рубки при разрушении бревна.
// Каждая рубка это независимый конвейер; обнаружение и расчёт оси выполняются
// в пуле воркеров, изменения мира только через World.Exec.
type Orchestrator struct {
	cfg        Config
	classifier *tree.Classifier
	detector   *tree.Detector
	axis       *tree.AxisCalculator

	prefs      preference.API
	dispatcher *eventbus.Dispatcher
	bus        eventbus.EventBus
	journal    journal.Journal
	metrics    *Metrics
	tracer     trace.Tracer
	pool       *Pool
	log        *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	active map[uuid.UUID]*Chop

	started   atomic.Uint64
	done      atomic.Uint64
	cancelled atomic.Uint64
	notATree  atomic.Uint64
}

// New создаёт оркестратор
func New(cfg Config, classifier *tree.Classifier, opts Options) (*Orchestrator, error) {
	if classifier == nil {
		return nil, errors.New("chop: classifier is required")
	}
	if cfg.Source == "" {
		cfg.Source = "treefell"
	}
	cfg.DefaultAxis = tree.Sanitize(cfg.DefaultAxis, tree.DefaultAxis)

	metrics, err := NewMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("chop: register metrics: %w", err)
	}
	if opts.Preferences == nil {
		opts.Preferences = preference.Get()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = eventbus.NewDispatcher()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/annel0/treefell/internal/chop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		detector:   tree.NewDetector(cfg.Detector),
		axis:       &tree.AxisCalculator{LeafMass: cfg.LeafMass},
		prefs:      opts.Preferences,
		dispatcher: opts.Dispatcher,
		bus:        opts.Bus,
		journal:    opts.Journal,
		metrics:    metrics,
		tracer:     opts.Tracer,
		pool:       NewPool(cfg.Workers, cfg.QueueSize),
		log:        logging.GetChopLogger(),
		ctx:        ctx,
		cancel:     cancel,
		active:     make(map[uuid.UUID]*Chop),
	}, nil
}

// Dispatcher возвращает диспетчер синхронных событий рубки
func (o *Orchestrator) Dispatcher() *eventbus.Dispatcher { return o.dispatcher }

// Preferences возвращает хранилище настроек игроков
func (o *Orchestrator) Preferences() preference.API { return o.prefs }

// Journal возвращает журнал рубок
func (o *Orchestrator) Journal() journal.Journal { return o.journal }

// Attach регистрирует оркестратор обработчиком разрушения блоков мира
func (o *Orchestrator) Attach(w *world.World) {
	w.RegisterBreakHandler(o)
}

// HandleBreak реализует world.BreakHandler
func (o *Orchestrator) HandleBreak(tx *world.Tx, p *player.Player, pos vec.Vec3) {
	o.Trigger(tx, p, pos)
}

// Trigger запускает рубку, если разрушенный блок является бревном, а у игрока
// включена рубка. Вызывается в цикле мира до разрушения блока.
// Возвращает false, если конвейер не запущен: тогда блок ломается как обычно.
func (o *Orchestrator) Trigger(tx *world.Tx, p *player.Player, pos vec.Vec3) (*Chop, bool) {
	if p == nil {
		o.metrics.breakSkipped("no_player")
		return nil, false
	}
	if !o.prefs.IsEnabled(p.UUID()) {
		o.metrics.breakSkipped("disabled")
		return nil, false
	}
	species, ok := o.classifier.SpeciesFor(tx.Material(pos))
	if !ok {
		o.metrics.breakSkipped("not_a_log")
		return nil, false
	}

	pl := newPipeline(o, tx.World(), p, pos, species)
	o.mu.Lock()
	o.active[pl.chop.id] = pl.chop
	o.mu.Unlock()
	o.metrics.chopQueued()

	o.wg.Add(1)
	if err := o.pool.TrySubmit(func() {
		defer o.wg.Done()
		pl.run(o.ctx)
	}); err != nil {
		o.wg.Done()
		o.mu.Lock()
		delete(o.active, pl.chop.id)
		o.mu.Unlock()
		o.metrics.active.Dec()
		o.metrics.breakSkipped("busy")
		o.log.Warn("Рубка %v не запущена: %v", pos, err)
		return nil, false
	}
	o.started.Add(1)
	o.metrics.chopStarted()
	return pl.chop, true
}

// Chop возвращает активную рубку по ID
func (o *Orchestrator) Chop(id uuid.UUID) (*Chop, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.active[id]
	return c, ok
}

// Stats возвращает счётчики
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	active := len(o.active)
	o.mu.RUnlock()
	return Stats{
		Started:   o.started.Load(),
		Done:      o.done.Load(),
		Cancelled: o.cancelled.Load(),
		NotATree:  o.notATree.Load(),
		Active:    active,
	}
}

// Close останавливает приём новых рубок и ждёт завершения запущенных.
// Если ctx истекает раньше, оставшиеся конвейеры прерываются.
func (o *Orchestrator) Close(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		o.pool.Close()
		o.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-finished
		return ctx.Err()
	}
}

// finish фиксирует итог рубки: метрики, журнал, уведомление в шину
func (o *Orchestrator) finish(c *Chop, r Result) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.StateName = r.State.String()
	c.result = r

	o.mu.Lock()
	delete(o.active, c.id)
	o.mu.Unlock()

	switch {
	case r.State == StateDone:
		o.done.Add(1)
	default:
		o.cancelled.Add(1)
		if r.Reason == ReasonNotATree {
			o.notATree.Add(1)
		}
	}
	o.metrics.chopFinished(r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.journal.Append(ctx, r.Record()); err != nil {
		o.log.Warn("Не удалось записать рубку %s в журнал: %v", r.ID, err)
	}
	if o.bus != nil {
		o.publish(ctx, r)
	}
	close(c.done)
}

func (o *Orchestrator) publish(ctx context.Context, r Result) {
	typ := EnvelopeCompleted
	if r.State != StateDone {
		typ = EnvelopeCancelled
	}
	env, err := eventbus.NewEnvelope(o.cfg.Source, typ, r)
	if err != nil {
		o.log.Warn("Не удалось подготовить уведомление о рубке %s: %v", r.ID, err)
		return
	}
	env.CorrelationID = r.ID.String()
	env.Metadata["player"] = r.PlayerName
	env.Metadata["species"] = r.Species
	if err := o.bus.Publish(ctx, env); err != nil {
		o.log.Warn("Не удалось опубликовать %s: %v", typ, err)
	}
}
