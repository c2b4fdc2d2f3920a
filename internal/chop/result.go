package chop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/annel0/treefell/internal/journal"
	"github.com/annel0/treefell/internal/vec"
)

// Причины отмены
const (
	ReasonNotATree       = "not_a_tree"
	ReasonStartCancelled = "start_cancelled"
	ReasonDropCancelled  = "drop_cancelled"
	ReasonWorldClosed    = "world_closed"
	ReasonAborted        = "aborted"
)

// Result итог рубки
type Result struct {
	ID         uuid.UUID     `json:"id"`
	PlayerID   uuid.UUID     `json:"player_id"`
	PlayerName string        `json:"player_name"`
	World      string        `json:"world"`
	Species    string        `json:"species"`
	Origin     vec.Vec3      `json:"origin"`
	State      State         `json:"-"`
	StateName  string        `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Logs       int           `json:"logs"`   // Убрано брёвен
	Leaves     int           `json:"leaves"` // Убрано листвы
	Drops      int           `json:"drops"`  // Появилось предметов
	Axis       mgl32.Vec3    `json:"axis"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Record преобразует итог в запись журнала
func (r Result) Record() journal.Record {
	reason := r.Reason
	if r.Detail != "" {
		reason += ": " + r.Detail
	}
	return journal.Record{
		ID:         r.ID.String(),
		PlayerID:   r.PlayerID.String(),
		PlayerName: r.PlayerName,
		World:      r.World,
		Species:    r.Species,
		Origin:     r.Origin,
		State:      r.State.String(),
		Reason:     reason,
		Logs:       r.Logs,
		Leaves:     r.Leaves,
		Drops:      r.Drops,
		Axis:       [3]float32{r.Axis.X(), r.Axis.Y(), r.Axis.Z()},
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// Chop дескриптор запущенной рубки
type Chop struct {
	id     uuid.UUID
	state  atomic.Int32
	done   chan struct{}
	result Result
}

func newChop(id uuid.UUID) *Chop {
	return &Chop{id: id, done: make(chan struct{})}
}

// ID идентификатор рубки
func (c *Chop) ID() uuid.UUID { return c.id }

// State текущее состояние конвейера
func (c *Chop) State() State { return State(c.state.Load()) }

// Done закрывается по завершении рубки
func (c *Chop) Done() <-chan struct{} { return c.done }

// Wait ждёт завершения рубки
func (c *Chop) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result возвращает итог; ok == false, пока рубка не завершена
func (c *Chop) Result() (Result, bool) {
	select {
	case <-c.done:
		return c.result, true
	default:
		return Result{}, false
	}
}
