package eventbus

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Kind тип синхронного события
type Kind string

// Event синхронное событие, доставляемое Dispatcher'ом
type Event interface {
	Kind() Kind
}

// Cancellable событие, которое обработчик может отменить
type Cancellable interface {
	Event
	Cancelled() bool
	SetCancelled(cancelled bool)
}

// Cancellation встраивается в событие, чтобы сделать его отменяемым
type Cancellation struct {
	cancelled atomic.Bool
}

// Cancelled сообщает, отменено ли событие
func (c *Cancellation) Cancelled() bool { return c.cancelled.Load() }

// SetCancelled устанавливает флаг отмены
func (c *Cancellation) SetCancelled(cancelled bool) { c.cancelled.Store(cancelled) }

// Priority порядок вызова обработчиков: от Lowest к Monitor.
// Monitor-обработчики вызываются последними и не должны изменять событие.
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityMonitor
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	case PriorityMonitor:
		return "monitor"
	}
	return "unknown"
}

// Listener обработчик синхронного события
type Listener func(ctx context.Context, ev Event)

// Option настраивает регистрацию обработчика
type Option func(*registration)

// IgnoreCancelled пропускает обработчик, если событие уже отменено
func IgnoreCancelled() Option {
	return func(r *registration) { r.ignoreCancelled = true }
}

// WithName задаёт имя обработчика для логов
func WithName(name string) Option {
	return func(r *registration) { r.name = name }
}

type registration struct {
	id              uint64
	kind            Kind
	priority        Priority
	listener        Listener
	ignoreCancelled bool
	name            string
}

// Dispatcher доставляет события зарегистрированным обработчикам последовательно:
// по приоритету, затем в порядке регистрации. Тайм-аутов нет, медленный
// обработчик задерживает только текущую доставку.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[Kind][]*registration
	nextID    uint64
}

// NewDispatcher создаёт пустой диспетчер
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[Kind][]*registration)}
}

// Register добавляет обработчик события kind
func (d *Dispatcher) Register(kind Kind, priority Priority, l Listener, opts ...Option) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	reg := &registration{id: d.nextID, kind: kind, priority: priority, listener: l}
	for _, opt := range opts {
		opt(reg)
	}

	// копия при записи: Dispatch итерирует по снимку без блокировки
	list := append(append([]*registration(nil), d.listeners[kind]...), reg)
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
	d.listeners[kind] = list

	return &dispatchSub{d: d, kind: kind, id: reg.id}
}

// Count возвращает количество обработчиков события kind
func (d *Dispatcher) Count(kind Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind])
}

// Dispatch доставляет событие и возвращает true, если оно не отменено.
// Паника обработчика перехватывается и не прерывает цепочку.
// Отмена ctx прекращает доставку оставшимся обработчикам.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) bool {
	d.mu.RLock()
	list := d.listeners[ev.Kind()]
	d.mu.RUnlock()

	c, cancellable := ev.(Cancellable)
	for _, reg := range list {
		if ctx.Err() != nil {
			break
		}
		if cancellable && reg.ignoreCancelled && c.Cancelled() {
			continue
		}
		d.call(ctx, reg, ev)
	}
	return !cancellable || !c.Cancelled()
}

func (d *Dispatcher) call(ctx context.Context, reg *registration, ev Event) {
	name := reg.name
	if name == "" {
		name = string(reg.kind) + "/" + reg.priority.String()
	}
	defer recoverListener("listener " + name)
	reg.listener(ctx, ev)
}

func (d *Dispatcher) remove(kind Kind, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.listeners[kind]
	list := make([]*registration, 0, len(old))
	for _, reg := range old {
		if reg.id != id {
			list = append(list, reg)
		}
	}
	d.listeners[kind] = list
}

type dispatchSub struct {
	d    *Dispatcher
	kind Kind
	id   uint64
	once sync.Once
}

func (s *dispatchSub) Unsubscribe() {
	s.once.Do(func() { s.d.remove(s.kind, s.id) })
}
