package eventbus

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/annel0/treefell/internal/logging"
)

// recoverListener перехватывает панику обработчика, пишет её в лог и отправляет в Sentry.
// Вызывается только через defer.
func recoverListener(where string) {
	r := recover()
	if r == nil {
		return
	}
	logging.Error("Паника в %s: %v", where, r)

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("listener", where)
	})
	hub.Recover(fmt.Errorf("%s: %v", where, r))
	hub.Flush(2 * time.Second)
}
