package chop

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/annel0/treefell/internal/logging"
)

// ErrPoolFull возвращается, когда очередь пула заполнена
var ErrPoolFull = errors.New("chop: очередь обнаружения заполнена")

// ErrPoolClosed возвращается после остановки пула
var ErrPoolClosed = errors.New("chop: пул остановлен")

// Pool пул воркеров для тяжёлой работы вне цикла мира
type Pool struct {
	queue chan func()
	mu    sync.RWMutex
	close bool
	wg    sync.WaitGroup
	log   *logging.Logger
}

// NewPool запускает workers воркеров с очередью queueSize.
// workers <= 0 означает runtime.NumCPU().
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 16
	}
	p := &Pool{
		queue: make(chan func(), queueSize),
		log:   logging.GetChopLogger(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for f := range p.queue {
		p.run(f)
	}
}

func (p *Pool) run(f func()) {
	defer func() {
		if err := recover(); err != nil {
			p.log.Error("Паника в воркере рубки: %v", err)
			hub := sentry.CurrentHub().Clone()
			hub.Recover(err)
			hub.Flush(time.Second * 5)
		}
	}()
	f()
}

// TrySubmit ставит задачу в очередь без блокировки
func (p *Pool) TrySubmit(f func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.close {
		return ErrPoolClosed
	}
	select {
	case p.queue <- f:
		return nil
	default:
		return ErrPoolFull
	}
}

// Pending возвращает количество задач в очереди
func (p *Pool) Pending() int { return len(p.queue) }

// Close перестаёт принимать задачи и ждёт завершения уже принятых
func (p *Pool) Close() {
	p.mu.Lock()
	if p.close {
		p.mu.Unlock()
		return
	}
	p.close = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}
