package hardware

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var errNoPWM = errors.New("gpio line has no pwm")

// linePin is a GPIO character device line requested as output.
// linePin implements gpio.PinOut.
type linePin struct {
	name   string
	chip   int
	offset int
	line   *gpiocdev.Line
}

var _ gpio.PinOut = (*linePin)(nil)

func (p *linePin) String() string {
	return fmt.Sprintf("%s(gpiochip%d/%d)", p.name, p.chip, p.offset)
}

func (p *linePin) Name() string {
	return p.name
}

func (p *linePin) Number() int {
	return p.offset
}

func (p *linePin) Function() string {
	return "Out"
}

// Halt drives the line low.
func (p *linePin) Halt() error {
	return p.Out(gpio.Low)
}

func (p *linePin) Out(l gpio.Level) error {
	val := 0
	if l {
		val = 1
	}
	if err := p.line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set %s=%v: %w", p.name, l, err)
	}
	return nil
}

func (p *linePin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return fmt.Errorf("%s: %w", p.name, errNoPWM)
}
