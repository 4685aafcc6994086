package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"actuator-service/internal/ledc"
	"actuator-service/internal/logger"
)

// VirtualIO is a board without hardware. Every output is an in-memory
// gpiotest.Pin whose level, duty and frequency can be inspected.
type VirtualIO struct {
	logger *logger.Logger

	mu    sync.Mutex
	pins  map[string]*gpiotest.Pin
	ledcs map[int]*VirtualLEDC
}

func NewVirtualIO(l *logger.Logger) *VirtualIO {
	if l == nil {
		l = logger.Discard()
	}
	return &VirtualIO{
		logger: l.WithTag("VirtualIO"),
		pins:   make(map[string]*gpiotest.Pin),
		ledcs:  make(map[int]*VirtualLEDC),
	}
}

func (v *VirtualIO) Initialize() error {
	v.logger.Infof("Using virtual hardware")
	return nil
}

func (v *VirtualIO) Output(name string, chip, line int) (gpio.PinOut, error) {
	return v.pin(name, line)
}

func (v *VirtualIO) PWMOutput(name string, chip, channel int) (gpio.PinOut, error) {
	return v.pin(name, channel)
}

func (v *VirtualIO) pin(name string, num int) (gpio.PinOut, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.pins[name]; ok {
		return nil, fmt.Errorf("output %s already configured", name)
	}
	p := &gpiotest.Pin{N: name, Num: num, L: gpio.Low}
	v.pins[name] = p
	v.logger.Debugf("Configured virtual output %s", name)
	return p, nil
}

// Pin returns a previously configured output.
func (v *VirtualIO) Pin(name string) (*gpiotest.Pin, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pins[name]
	return p, ok
}

func (v *VirtualIO) LEDC(chip int) (ledc.Peripheral, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if chip < 0 {
		return nil, fmt.Errorf("invalid pwm chip %d", chip)
	}
	p, ok := v.ledcs[chip]
	if !ok {
		p = NewVirtualLEDC()
		v.ledcs[chip] = p
	}
	return p, nil
}

func (v *VirtualIO) Cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.pins {
		p.Lock()
		f := p.F
		p.Unlock()
		if f > 0 {
			p.PWM(0, f)
		}
		p.Out(gpio.Low)
	}
	v.logger.Infof("Virtual hardware released")
}

// VirtualLEDC is a ledc.Peripheral whose channels drive gpiotest pins.
type VirtualLEDC struct {
	*ledcRegisters
	pins map[ledcChannelKey]*gpiotest.Pin
}

var _ ledc.Peripheral = (*VirtualLEDC)(nil)

func NewVirtualLEDC() *VirtualLEDC {
	v := &VirtualLEDC{pins: make(map[ledcChannelKey]*gpiotest.Pin)}
	v.ledcRegisters = newLEDCRegisters(func(cfg ledc.ChannelConfig) (gpio.PinOut, error) {
		p := &gpiotest.Pin{N: fmt.Sprintf("ledc-%s-%d", cfg.SpeedMode, cfg.Channel), Num: cfg.Pin}
		v.pins[ledcChannelKey{cfg.SpeedMode, cfg.Channel}] = p
		return p, nil
	})
	return v
}

// Output returns the pin driven by a configured channel.
func (v *VirtualLEDC) Output(mode ledc.SpeedMode, ch ledc.Channel) (*gpiotest.Pin, bool) {
	p, ok := v.pins[ledcChannelKey{mode, ch}]
	return p, ok
}
