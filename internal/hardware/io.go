package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"

	"actuator-service/internal/ledc"
	"actuator-service/internal/logger"
)

// LinuxHardwareIO hands out output pins backed by the GPIO character
// device and by sysfs PWM channels. Every pin is registered under a unique
// name and released by Cleanup.
type LinuxHardwareIO struct {
	logger   *logger.Logger
	consumer string
	pwmBase  string
	write    func(path, value string) error

	mu    sync.Mutex
	chips map[int]*gpiocdev.Chip
	lines map[string]*linePin
	pwms  map[string]*sysfsPWM
	ledcs map[int]*SysfsLEDC
}

func NewLinuxHardwareIO(consumer string, l *logger.Logger) *LinuxHardwareIO {
	if consumer == "" {
		consumer = DefaultConsumer
	}
	if l == nil {
		l = logger.Discard()
	}
	return &LinuxHardwareIO{
		logger:   l.WithTag("HardwareIO"),
		consumer: consumer,
		pwmBase:  PwmSysfsBase,
		write:    writeSysfs,
		chips:    make(map[int]*gpiocdev.Chip),
		lines:    make(map[string]*linePin),
		pwms:     make(map[string]*sysfsPWM),
		ledcs:    make(map[int]*SysfsLEDC),
	}
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing hardware IO")
	chips := gpiocdev.Chips()
	if len(chips) == 0 {
		return fmt.Errorf("no GPIO chips found")
	}
	io.logger.Debugf("Available GPIO chips: %v", chips)
	return nil
}

// Output requests a GPIO line as output, initially low.
func (io *LinuxHardwareIO) Output(name string, chip, line int) (gpio.PinOut, error) {
	io.mu.Lock()
	defer io.mu.Unlock()

	if err := io.checkName(name); err != nil {
		return nil, err
	}

	c, ok := io.chips[chip]
	if !ok {
		var err error
		c, err = gpiocdev.NewChip(fmt.Sprintf(GpioChipFormat, chip))
		if err != nil {
			return nil, fmt.Errorf("failed to open GPIO chip %d: %w", chip, err)
		}
		io.chips[chip] = c
	}

	l, err := c.RequestLine(line,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(io.consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO line %d: %w", line, err)
	}

	pin := &linePin{name: name, chip: chip, offset: line, line: l}
	io.lines[name] = pin
	io.logger.Infof("Configured output %s: chip=%d, line=%d", name, chip, line)
	return pin, nil
}

// PWMOutput exports a sysfs PWM channel. It stays disabled until the first
// PWM call sets a frequency.
func (io *LinuxHardwareIO) PWMOutput(name string, chip, channel int) (gpio.PinOut, error) {
	io.mu.Lock()
	defer io.mu.Unlock()

	if err := io.checkName(name); err != nil {
		return nil, err
	}
	pwm, err := openSysfsPWM(io.pwmBase, name, chip, channel, io.write)
	if err != nil {
		return nil, err
	}
	io.pwms[name] = pwm
	io.logger.Infof("Configured PWM %s: pwmchip=%d, channel=%d", name, chip, channel)
	return pwm, nil
}

// LEDC returns the LEDC peripheral for a pwmchip, creating it on first use.
func (io *LinuxHardwareIO) LEDC(chip int) (ledc.Peripheral, error) {
	io.mu.Lock()
	defer io.mu.Unlock()

	if chip < 0 {
		return nil, fmt.Errorf("invalid pwm chip %d", chip)
	}
	p, ok := io.ledcs[chip]
	if !ok {
		p = newSysfsLEDC(io.pwmBase, chip, io.write)
		io.ledcs[chip] = p
	}
	return p, nil
}

func (io *LinuxHardwareIO) checkName(name string) error {
	if _, ok := io.lines[name]; ok {
		return fmt.Errorf("output %s already configured", name)
	}
	if _, ok := io.pwms[name]; ok {
		return fmt.Errorf("output %s already configured", name)
	}
	return nil
}

func (io *LinuxHardwareIO) Cleanup() {
	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")

	for name, pwm := range io.pwms {
		if err := pwm.Close(); err != nil {
			io.logger.Warnf("Failed to disable PWM %s: %v", name, err)
		}
	}
	for chip, p := range io.ledcs {
		if err := p.Close(); err != nil {
			io.logger.Warnf("Failed to disable LEDC on pwmchip%d: %v", chip, err)
		}
	}
	for name, pin := range io.lines {
		if err := pin.Halt(); err != nil {
			io.logger.Warnf("Failed to drive %s low: %v", name, err)
		}
		pin.line.Close()
		io.logger.Debugf("Closed GPIO line for %s", name)
	}
	for id, chip := range io.chips {
		chip.Close()
		io.logger.Debugf("Closed GPIO chip %d", id)
	}

	io.lines = make(map[string]*linePin)
	io.pwms = make(map[string]*sysfsPWM)
	io.ledcs = make(map[int]*SysfsLEDC)
	io.chips = make(map[int]*gpiocdev.Chip)

	io.logger.Infof("Hardware cleanup complete")
}
