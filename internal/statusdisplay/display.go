// Package statusdisplay drives a row of status LEDs through a serial-in,
// parallel-out shift register with a storage latch (74HC595 and friends).
//
// The display keeps the last transmitted output word so that a single line
// can be switched without disturbing the others.
package statusdisplay

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"actuator-service/internal/logger"
)

const (
	// MaxWidth is the number of parallel outputs of one shift register.
	MaxWidth = 8

	// LatchPulseWidth is how long the storage clock is held high after the
	// word has been shifted in.
	LatchPulseWidth = 10 * time.Microsecond
)

// ErrInvalidLine is returned for line numbers outside 1..Width.
var ErrInvalidLine = errors.New("invalid status line")

type Display struct {
	data  gpio.PinOut
	clock gpio.PinOut
	latch gpio.PinOut

	width      int
	word       uint8
	latchPulse time.Duration
	sleep      func(time.Duration)
	logger     *logger.Logger
}

type Option func(*Display)

// WithWidth limits the number of addressable lines. Only the lowest
// width bits of the output word are ever set.
func WithWidth(width int) Option {
	return func(d *Display) { d.width = width }
}

// WithLatchPulse overrides LatchPulseWidth.
func WithLatchPulse(pulse time.Duration) Option {
	return func(d *Display) { d.latchPulse = pulse }
}

func WithLogger(l *logger.Logger) Option {
	return func(d *Display) { d.logger = l }
}

// withSleep replaces the delay used for the latch pulse.
func withSleep(sleep func(time.Duration)) Option {
	return func(d *Display) { d.sleep = sleep }
}

// New configures the data, shift clock and storage clock pins as outputs
// (driven low) and returns a display with all lines off in its cache.
func New(data, clock, latch gpio.PinOut, opts ...Option) (*Display, error) {
	d := &Display{
		data:       data,
		clock:      clock,
		latch:      latch,
		width:      MaxWidth,
		latchPulse: LatchPulseWidth,
		sleep:      time.Sleep,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.width < 1 || d.width > MaxWidth {
		return nil, fmt.Errorf("invalid display width %d (want 1..%d)", d.width, MaxWidth)
	}

	for _, pin := range []gpio.PinOut{data, clock, latch} {
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure pin %s: %w", pin, err)
		}
	}

	d.logger.Debugf("Status display ready: data=%s clock=%s latch=%s width=%d", data, clock, latch, d.width)
	return d, nil
}

// Width returns the number of addressable lines.
func (d *Display) Width() int {
	return d.width
}

// Word returns the last transmitted output word.
func (d *Display) Word() uint8 {
	return d.word
}

// Line reports the cached state of the given line (1..Width).
func (d *Display) Line(line int) (bool, error) {
	mask, err := d.mask(line)
	if err != nil {
		return false, err
	}
	return d.word&mask != 0, nil
}

// WriteLine switches one line on or off and retransmits the whole word.
// All other lines keep their current state.
func (d *Display) WriteLine(line int, on bool) error {
	mask, err := d.mask(line)
	if err != nil {
		return err
	}

	next := d.word &^ mask
	if on {
		next |= mask
	}

	d.logger.Debugf("Status line %d=%v (word %08b -> %08b)", line, on, d.word, next)
	return d.transmit(next)
}

// Write transmits a complete output word. Bits above Width are dropped.
func (d *Display) Write(word uint8) error {
	return d.transmit(word & d.widthMask())
}

// Clear switches all lines off.
func (d *Display) Clear() error {
	return d.transmit(0)
}

func (d *Display) mask(line int) (uint8, error) {
	if line < 1 || line > d.width {
		return 0, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidLine, line, d.width)
	}
	return uint8(1) << (line - 1), nil
}

func (d *Display) widthMask() uint8 {
	return uint8((1 << d.width) - 1)
}

// transmit shifts word out least significant bit first and latches it.
// The cache is only updated once the latch pulse went through.
func (d *Display) transmit(word uint8) error {
	for bit := 0; bit < MaxWidth; bit++ {
		level := gpio.Level(word&(1<<bit) != 0)
		if err := d.data.Out(level); err != nil {
			return fmt.Errorf("failed to write data bit %d: %w", bit, err)
		}
		if err := d.pulse(d.clock, 0); err != nil {
			return fmt.Errorf("failed to clock bit %d: %w", bit, err)
		}
	}

	if err := d.pulse(d.latch, d.latchPulse); err != nil {
		return fmt.Errorf("failed to latch status word: %w", err)
	}

	d.word = word
	return nil
}

func (d *Display) pulse(pin gpio.PinOut, width time.Duration) error {
	if err := pin.Out(gpio.High); err != nil {
		return err
	}
	if width > 0 {
		d.sleep(width)
	}
	return pin.Out(gpio.Low)
}
