package ledc

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

const (
	MaxChannels   = 8
	MaxTimers     = 4
	MaxResolution = 20
	MaxHPoint     = 1<<20 - 1
)

type SpeedMode int

const (
	HighSpeedMode SpeedMode = iota
	LowSpeedMode
)

func (m SpeedMode) String() string {
	switch m {
	case HighSpeedMode:
		return "high-speed"
	case LowSpeedMode:
		return "low-speed"
	default:
		return fmt.Sprintf("speed-mode(%d)", int(m))
	}
}

// ParseSpeedMode accepts "high" / "high-speed" and "low" / "low-speed".
func ParseSpeedMode(s string) (SpeedMode, error) {
	switch s {
	case "", "high", "high-speed":
		return HighSpeedMode, nil
	case "low", "low-speed":
		return LowSpeedMode, nil
	default:
		return HighSpeedMode, fmt.Errorf("invalid speed mode: %s", s)
	}
}

type Timer int

type Channel int

type ClockSource int

const (
	AutoClock ClockSource = iota
	APBClock
	RefTickClock
	SlowClock
)

var clockNames = map[ClockSource]string{
	AutoClock:    "auto",
	APBClock:     "apb",
	RefTickClock: "ref-tick",
	SlowClock:    "slow",
}

func (c ClockSource) String() string {
	if name, ok := clockNames[c]; ok {
		return name
	}
	return fmt.Sprintf("clock(%d)", int(c))
}

// ParseClockSource maps a clock name to its ClockSource. Empty means auto.
func ParseClockSource(s string) (ClockSource, error) {
	if s == "" {
		return AutoClock, nil
	}
	for c, name := range clockNames {
		if name == s {
			return c, nil
		}
	}
	return AutoClock, fmt.Errorf("invalid clock source: %s", s)
}

// TimerConfig programs one hardware PWM timer.
type TimerConfig struct {
	SpeedMode  SpeedMode
	Resolution int
	Timer      Timer
	Frequency  physic.Frequency
	Clock      ClockSource
}

// ChannelConfig binds an output pin to a timer through a channel. HPoint
// is the counter value at which the output goes high.
type ChannelConfig struct {
	Pin        int
	SpeedMode  SpeedMode
	Channel    Channel
	Timer      Timer
	Duty       uint32
	HPoint     int
	Interrupts bool
}

// Peripheral is the vendor PWM timer/channel driver. Every call returns
// nil or an error carrying a Status.
//
// Duty changes are double buffered: SetDuty only stages the new value,
// UpdateDuty makes it visible on the pin.
type Peripheral interface {
	ConfigureTimer(cfg TimerConfig) error
	ConfigureChannel(cfg ChannelConfig) error
	SetDuty(mode SpeedMode, ch Channel, duty uint32) error
	UpdateDuty(mode SpeedMode, ch Channel) error
}
