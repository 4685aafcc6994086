package fsm

import "github.com/librescoot/librefsm"

// LEDC channel states
const (
	StateUninitialized librefsm.StateID = "uninitialized"
	StateReady         librefsm.StateID = "ready"
)

// LEDC channel events
const (
	// EvConfigured is sent once timer and channel were programmed.
	EvConfigured librefsm.EventID = "configured"
)
