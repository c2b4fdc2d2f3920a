package chop

import "fmt"

// State состояние конвейера рубки
type State int32

const (
	StateIdle State = iota
	StateDetecting
	StateAwaitingStartDecision
	StateFelling
	StateAwaitingDropDecision
	StateMaterializing
	StateDone
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:                  "idle",
	StateDetecting:             "detecting",
	StateAwaitingStartDecision: "awaiting_start_decision",
	StateFelling:               "felling",
	StateAwaitingDropDecision:  "awaiting_drop_decision",
	StateMaterializing:         "materializing",
	StateDone:                  "done",
	StateCancelled:             "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal сообщает, что состояние конечное
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

// Допустимые переходы. Felling и Materializing могут завершиться отменой,
// если мир остановлен до выполнения задачи.
var transitions = map[State][]State{
	StateIdle:                  {StateDetecting},
	StateDetecting:             {StateAwaitingStartDecision, StateCancelled},
	StateAwaitingStartDecision: {StateFelling, StateCancelled},
	StateFelling:               {StateAwaitingDropDecision, StateCancelled},
	StateAwaitingDropDecision:  {StateMaterializing, StateCancelled},
	StateMaterializing:         {StateDone, StateCancelled},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
