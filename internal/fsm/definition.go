package fsm

import "github.com/librescoot/librefsm"

// Actions is implemented by the channel driver to observe lifecycle changes.
type Actions interface {
	EnterReady(c *librefsm.Context) error
}

// NewDefinition creates the LEDC channel lifecycle.
// There is no way back from ready: the peripheral keeps its configuration
// until reset.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateUninitialized).
		State(StateReady,
			librefsm.WithOnEnter(actions.EnterReady),
		).
		Transition(StateUninitialized, EvConfigured, StateReady).
		Initial(StateUninitialized)
}
