package journal

import (
	"context"
	"sync"
)

// Memory кольцевой буфер записей в памяти
type Memory struct {
	mu     sync.RWMutex
	buf    []Record
	next   int
	size   int
	closed bool
}

// NewMemory создаёт журнал в памяти на capacity записей
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{buf: make([]Record, capacity)}
}

// Append добавляет запись, вытесняя самую старую при переполнении
func (m *Memory) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}
	return nil
}

// Recent возвращает до n последних записей, новые первыми
func (m *Memory) Recent(_ context.Context, n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if n <= 0 || n > m.size {
		n = m.size
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

// Len возвращает количество хранимых записей
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
