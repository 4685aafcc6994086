// Package ledc drives a motor from a hardware PWM peripheral that has
// separately configurable timers and channels (the ESP32 LEDC block and
// look-alikes).
//
// A Driver touches no peripheral register when it is created. Init programs
// the timer and then the channel; afterwards SetSpeed writes and commits
// new duty values. Close releases the driver.
package ledc

import (
	"context"
	"fmt"

	"github.com/librescoot/librefsm"
	"periph.io/x/conn/v3/physic"

	"actuator-service/internal/fsm"
	"actuator-service/internal/logger"
	"actuator-service/internal/types"
)

const (
	DefaultChannel    Channel   = 0
	DefaultFrequency            = 5 * physic.KiloHertz
	DefaultResolution           = 8
	DefaultSpeedMode  SpeedMode = HighSpeedMode
	DefaultTimer      Timer     = 0
	DefaultClock                = AutoClock
)

// Config is fixed for the lifetime of a Driver.
type Config struct {
	Pin        int
	Channel    Channel
	Frequency  physic.Frequency
	Resolution int
	SpeedMode  SpeedMode
	Timer      Timer
	Clock      ClockSource
}

// lifecycle is the part of the librefsm machine the driver uses.
type lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	SendSync(ev librefsm.Event) error
	CurrentState() librefsm.StateID
}

type Driver struct {
	peripheral Peripheral
	config     Config
	logger     *logger.Logger
	machine    lifecycle
	closed     bool
	duty       int
}

// Ensure Driver implements fsm.Actions
var _ fsm.Actions = (*Driver)(nil)

type Option func(*Driver)

func WithChannel(ch Channel) Option {
	return func(d *Driver) { d.config.Channel = ch }
}

func WithFrequency(f physic.Frequency) Option {
	return func(d *Driver) { d.config.Frequency = f }
}

// WithResolution sets the duty resolution in bits.
func WithResolution(bits int) Option {
	return func(d *Driver) { d.config.Resolution = bits }
}

func WithSpeedMode(mode SpeedMode) Option {
	return func(d *Driver) { d.config.SpeedMode = mode }
}

func WithTimer(t Timer) Option {
	return func(d *Driver) { d.config.Timer = t }
}

func WithClock(c ClockSource) Option {
	return func(d *Driver) { d.config.Clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New creates a driver for the given output pin and starts its lifecycle.
// Nothing is written to the peripheral until Init is called.
func New(p Peripheral, pin int, opts ...Option) (*Driver, error) {
	d := &Driver{
		peripheral: p,
		config: Config{
			Pin:        pin,
			Channel:    DefaultChannel,
			Frequency:  DefaultFrequency,
			Resolution: DefaultResolution,
			SpeedMode:  DefaultSpeedMode,
			Timer:      DefaultTimer,
			Clock:      DefaultClock,
		},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.config.Resolution < 1 || d.config.Resolution > MaxResolution {
		return nil, Errorf(StatusInvalidArg, "invalid duty resolution %d bits", d.config.Resolution)
	}

	machine, err := fsm.NewDefinition(d).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build channel lifecycle: %w", err)
	}
	// The lifecycle outlives any caller context; only Close stops it.
	if err := machine.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to start channel lifecycle: %w", err)
	}
	d.machine = machine
	return d, nil
}

func (d *Driver) Config() Config {
	return d.config
}

// MaxDuty is the largest duty value for the configured resolution.
func (d *Driver) MaxDuty() int {
	return (1 << d.config.Resolution) - 1
}

// ClampDuty limits duty to 0..MaxDuty.
func (d *Driver) ClampDuty(duty int) int {
	if duty < 0 {
		return 0
	}
	if limit := d.MaxDuty(); duty > limit {
		return limit
	}
	return duty
}

func (d *Driver) State() types.DriverState {
	if !d.closed && d.machine.CurrentState() == fsm.StateReady {
		return types.DriverReady
	}
	return types.DriverUninitialized
}

// Init programs the timer and then the channel. The channel is left alone
// when the timer could not be configured. Calling Init on a ready driver
// does nothing. A cancelled ctx stops Init before the next register step.
func (d *Driver) Init(ctx context.Context) error {
	if d.closed {
		return Errorf(StatusInvalidState, "LEDC channel %d closed", d.config.Channel)
	}
	if d.State() == types.DriverReady {
		d.logger.Debugf("LEDC channel %d already initialized", d.config.Channel)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.peripheral.ConfigureTimer(TimerConfig{
		SpeedMode:  d.config.SpeedMode,
		Resolution: d.config.Resolution,
		Timer:      d.config.Timer,
		Frequency:  d.config.Frequency,
		Clock:      d.config.Clock,
	}); err != nil {
		status := StatusOf(err)
		d.logger.Errorf("Failed to configure LEDC timer: %s (%v)", status, err)
		return status
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.peripheral.ConfigureChannel(ChannelConfig{
		Pin:        d.config.Pin,
		SpeedMode:  d.config.SpeedMode,
		Channel:    d.config.Channel,
		Timer:      d.config.Timer,
		Duty:       0,
		HPoint:     0,
		Interrupts: false,
	}); err != nil {
		status := StatusOf(err)
		d.logger.Errorf("Failed to configure LEDC channel: %s (%v)", status, err)
		return status
	}

	return d.machine.SendSync(librefsm.Event{ID: fsm.EvConfigured})
}

// SetSpeed clamps duty to 0..MaxDuty, writes it and commits it.
func (d *Driver) SetSpeed(duty int) error {
	if d.State() != types.DriverReady {
		return Errorf(StatusInvalidState, "LEDC channel %d not initialized", d.config.Channel)
	}

	duty = d.ClampDuty(duty)

	if err := d.peripheral.SetDuty(d.config.SpeedMode, d.config.Channel, uint32(duty)); err != nil {
		status := StatusOf(err)
		d.logger.Errorf("Failed to set duty: %s (%v)", status, err)
		return status
	}

	if err := d.peripheral.UpdateDuty(d.config.SpeedMode, d.config.Channel); err != nil {
		status := StatusOf(err)
		d.logger.Errorf("Failed to update duty: %s (%v)", status, err)
		return status
	}

	d.duty = duty
	d.logger.Debugf("LEDC channel %d duty=%d", d.config.Channel, duty)
	return nil
}

// Duty returns the last committed duty value.
func (d *Driver) Duty() int {
	return d.duty
}

// Stop sets the duty to zero.
func (d *Driver) Stop() error {
	return d.SetSpeed(0)
}

// Close stops the lifecycle. The peripheral keeps its last duty; call Stop
// first to turn the output off. Every later call fails with
// ERR_INVALID_STATE.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.machine.Stop()
}

func (d *Driver) EnterReady(c *librefsm.Context) error {
	d.logger.Infof("LEDC channel %d ready: pin=%d timer=%d %s %d bits %s",
		d.config.Channel, d.config.Pin, d.config.Timer, d.config.Frequency, d.config.Resolution, d.config.SpeedMode)
	return nil
}
