package chop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Transitions(t *testing.T) {
	happy := []State{StateIdle, StateDetecting, StateAwaitingStartDecision, StateFelling,
		StateAwaitingDropDecision, StateMaterializing, StateDone}
	for i := 0; i+1 < len(happy); i++ {
		assert.True(t, CanTransition(happy[i], happy[i+1]), "%s -> %s", happy[i], happy[i+1])
	}

	for _, s := range happy[1 : len(happy)-1] {
		assert.True(t, CanTransition(s, StateCancelled), "%s может завершиться отменой", s)
	}

	assert.False(t, CanTransition(StateIdle, StateFelling), "Нельзя рубить без обнаружения")
	assert.False(t, CanTransition(StateAwaitingStartDecision, StateMaterializing))
	assert.False(t, CanTransition(StateDone, StateCancelled))
	assert.False(t, CanTransition(StateCancelled, StateDetecting))
	assert.False(t, CanTransition(StateIdle, StateCancelled))

	assert.True(t, StateDone.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateFelling.Terminal())
	assert.Equal(t, "awaiting_drop_decision", StateAwaitingDropDecision.String())
}
