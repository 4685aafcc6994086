// Package motor controls a brushed DC motor either through a single PWM
// output switching a MOSFET, or through an H-Bridge with a PWM enable pin
// and two direction inputs.
package motor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"actuator-service/internal/logger"
)

const (
	MinSpeed = 0
	MaxSpeed = 255

	// DefaultFrequency is the PWM frequency used for the speed pin.
	DefaultFrequency = physic.KiloHertz
)

type Direction bool

const (
	Clockwise        Direction = true
	CounterClockwise Direction = false
)

func (d Direction) String() string {
	if d == Clockwise {
		return "cw"
	}
	return "ccw"
}

// ParseDirection accepts "cw"/"clockwise" and "ccw"/"counterclockwise".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "cw", "clockwise":
		return Clockwise, nil
	case "ccw", "counterclockwise":
		return CounterClockwise, nil
	default:
		return Clockwise, fmt.Errorf("invalid motor direction: %s", s)
	}
}

type Mode int

const (
	ModeSingle Mode = iota
	ModeHBridge
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeHBridge:
		return "h-bridge"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type Controller struct {
	mode      Mode
	speed     gpio.PinOut
	in1       gpio.PinOut
	in2       gpio.PinOut
	direction Direction
	released  bool
	current   int
	frequency physic.Frequency
	logger    *logger.Logger
}

type Option func(*Controller)

// WithFrequency sets the PWM frequency of the speed pin.
func WithFrequency(f physic.Frequency) Option {
	return func(c *Controller) { c.frequency = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func newController(mode Mode, speed gpio.PinOut, opts []Option) *Controller {
	c := &Controller{
		mode:      mode,
		speed:     speed,
		direction: Clockwise,
		frequency: DefaultFrequency,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSingle creates a controller that only drives the speed pin.
func NewSingle(speed gpio.PinOut, opts ...Option) (*Controller, error) {
	c := newController(ModeSingle, speed, opts)
	if err := speed.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure speed pin %s: %w", speed, err)
	}
	c.logger.Debugf("Motor ready: mode=%s speed=%s", c.mode, speed)
	return c, nil
}

// NewHBridge creates a controller for an H-Bridge and applies the initial
// direction right away.
func NewHBridge(speed, in1, in2 gpio.PinOut, dir Direction, opts ...Option) (*Controller, error) {
	c := newController(ModeHBridge, speed, opts)
	c.in1 = in1
	c.in2 = in2

	for _, pin := range []gpio.PinOut{speed, in1, in2} {
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure pin %s: %w", pin, err)
		}
	}
	if err := c.SetDirection(dir); err != nil {
		return nil, err
	}
	c.logger.Debugf("Motor ready: mode=%s speed=%s in1=%s in2=%s dir=%s", c.mode, speed, in1, in2, dir)
	return c, nil
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// Direction returns the last direction applied. It is always Clockwise in
// single-pin mode.
func (c *Controller) Direction() Direction {
	return c.direction
}

// Released reports whether both direction inputs are low after Stop.
// It is never true in single-pin mode.
func (c *Controller) Released() bool {
	return c.released
}

// Speed returns the last speed written, after clamping.
func (c *Controller) Speed() int {
	return c.current
}

// SetDirection drives the direction inputs to complementary levels. It
// does nothing in single-pin mode.
func (c *Controller) SetDirection(dir Direction) error {
	if c.mode != ModeHBridge {
		return nil
	}
	if err := c.in1.Out(gpio.Level(dir)); err != nil {
		return fmt.Errorf("failed to set IN1: %w", err)
	}
	if err := c.in2.Out(gpio.Level(!dir)); err != nil {
		return fmt.Errorf("failed to set IN2: %w", err)
	}
	c.direction = dir
	c.released = false
	c.logger.Debugf("Motor direction=%s", dir)
	return nil
}

// SetSpeed clamps speed to MinSpeed..MaxSpeed and writes it as PWM duty
// to the speed pin.
func (c *Controller) SetSpeed(speed int) error {
	speed = clamp(speed, MinSpeed, MaxSpeed)
	if err := c.speed.PWM(SpeedDuty(speed), c.frequency); err != nil {
		return fmt.Errorf("failed to set motor speed %d: %w", speed, err)
	}
	c.current = speed
	c.logger.Debugf("Motor speed=%d", speed)
	return nil
}

// Drive sets direction (H-Bridge only) and speed in one call.
func (c *Controller) Drive(dir Direction, speed int) error {
	if err := c.SetDirection(dir); err != nil {
		return err
	}
	return c.SetSpeed(speed)
}

// Stop removes drive power and, on an H-Bridge, pulls both direction
// inputs low so the motor coasts.
func (c *Controller) Stop() error {
	if err := c.SetSpeed(0); err != nil {
		return err
	}
	if c.mode != ModeHBridge {
		return nil
	}
	if err := c.in1.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to release IN1: %w", err)
	}
	if err := c.in2.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to release IN2: %w", err)
	}
	c.released = true
	c.logger.Debugf("Motor stopped")
	return nil
}

// SpeedDuty converts a speed in MinSpeed..MaxSpeed to a PWM duty cycle.
func SpeedDuty(speed int) gpio.Duty {
	speed = clamp(speed, MinSpeed, MaxSpeed)
	return gpio.Duty(int64(gpio.DutyMax) * int64(speed) / MaxSpeed)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
