package chop

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAndSurvivesPanics(t *testing.T) {
	p := NewPool(2, 8)
	var ran atomic.Int32

	require.NoError(t, p.TrySubmit(func() { panic("boom") }))
	for i := 0; i < 4; i++ {
		require.NoError(t, p.TrySubmit(func() { ran.Add(1) }))
	}
	p.Close()

	assert.Equal(t, int32(4), ran.Load(), "Паника одной задачи не останавливает воркеры")
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrPoolClosed)
	p.Close()
}

func TestPool_FullQueue(t *testing.T) {
	p := NewPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.TrySubmit(func() { close(started); <-block }))
	<-started
	require.NoError(t, p.TrySubmit(func() {}))
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrPoolFull)
	assert.Equal(t, 1, p.Pending())

	close(block)
	p.Close()
}
