package eventbus

import (
	"context"
	"sync/atomic"
)

var globalBus atomic.Pointer[EventBus]

// Init устанавливает глобальную шину.
func Init(bus EventBus) {
	if bus == nil {
		globalBus.Store(nil)
		return
	}
	globalBus.Store(&bus)
}

// Default возвращает глобальную шину или nil.
func Default() EventBus {
	if p := globalBus.Load(); p != nil {
		return *p
	}
	return nil
}

// Publish отправляет событие в глобальную шину, если она инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	bus := Default()
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, ev)
}
