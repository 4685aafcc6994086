package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// writeSysfs writes one attribute without O_TRUNC or O_CREAT; several pwm
// attributes reject either flag.
func writeSysfs(path, value string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer unix.Close(fd)

	buf := []byte(value)
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		buf = buf[n:]
	}
	return nil
}

// sysfsPWM is a channel of a /sys/class/pwm chip. It implements
// gpio.PinOut: Out switches fully on or off, PWM sets period and duty.
type sysfsPWM struct {
	name     string
	chip     int
	channel  int
	chipPath string
	pwmPath  string

	periodNS uint64
	dutyNS   uint64
	enabled  bool

	write func(path, value string) error
}

var _ gpio.PinOut = (*sysfsPWM)(nil)

func openSysfsPWM(base, name string, chip, channel int, write func(path, value string) error) (*sysfsPWM, error) {
	chipPath := filepath.Join(base, fmt.Sprintf("pwmchip%d", chip))
	p := &sysfsPWM{
		name:     name,
		chip:     chip,
		channel:  channel,
		chipPath: chipPath,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
		write:    write,
	}
	if err := p.export(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *sysfsPWM) export() error {
	if _, err := os.Stat(p.pwmPath); err == nil {
		return nil
	}
	if err := p.write(filepath.Join(p.chipPath, "export"), strconv.Itoa(p.channel)); err != nil {
		// Someone else may have exported it in the meantime.
		if _, statErr := os.Stat(p.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("failed to export pwm%d on pwmchip%d: %w", p.channel, p.chip, err)
	}

	deadline := time.Now().Add(pwmExportTimeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(p.pwmPath); err == nil {
			return nil
		}
		time.Sleep(pwmExportPoll)
	}
	return fmt.Errorf("pwm path %s not created after export", p.pwmPath)
}

func (p *sysfsPWM) String() string {
	return fmt.Sprintf("%s(pwmchip%d/%d)", p.name, p.chip, p.channel)
}

func (p *sysfsPWM) Name() string {
	return p.name
}

func (p *sysfsPWM) Number() int {
	return p.channel
}

func (p *sysfsPWM) Function() string {
	return "PWM"
}

// Halt disables the output.
func (p *sysfsPWM) Halt() error {
	return p.setEnabled(false)
}

// Out switches the output fully on or off. Switching off an output
// without a period only disables it.
func (p *sysfsPWM) Out(l gpio.Level) error {
	if !l && p.periodNS == 0 {
		return p.setEnabled(false)
	}
	if l {
		return p.PWM(gpio.DutyMax, 0)
	}
	return p.PWM(0, 0)
}

// PWM sets the duty cycle. A zero frequency keeps the current period.
func (p *sysfsPWM) PWM(duty gpio.Duty, f physic.Frequency) error {
	if duty < 0 {
		duty = 0
	} else if duty > gpio.DutyMax {
		duty = gpio.DutyMax
	}

	if f > 0 {
		periodNS := uint64(f.Period().Nanoseconds())
		if periodNS == 0 {
			return fmt.Errorf("%s: frequency %s too high", p.name, f)
		}
		if periodNS != p.periodNS {
			if err := p.setPeriod(periodNS); err != nil {
				return err
			}
		}
	}
	if p.periodNS == 0 {
		return fmt.Errorf("%s: pwm period not configured", p.name)
	}

	dutyNS := p.periodNS * uint64(duty) / uint64(gpio.DutyMax)
	if err := p.writeUint("duty_cycle", dutyNS); err != nil {
		return err
	}
	p.dutyNS = dutyNS

	if !p.enabled {
		return p.setEnabled(true)
	}
	return nil
}

// setPeriod changes the period with the output disabled. The duty cycle is
// zeroed first because the kernel rejects a period shorter than it.
func (p *sysfsPWM) setPeriod(periodNS uint64) error {
	if err := p.setEnabled(false); err != nil {
		return err
	}
	if p.dutyNS > periodNS {
		if err := p.writeUint("duty_cycle", 0); err != nil {
			return err
		}
		p.dutyNS = 0
	}
	if err := p.writeUint("period", periodNS); err != nil {
		return err
	}
	p.periodNS = periodNS
	return nil
}

func (p *sysfsPWM) setEnabled(on bool) error {
	val := "0"
	if on {
		val = "1"
	}
	if err := p.write(filepath.Join(p.pwmPath, "enable"), val); err != nil {
		return err
	}
	p.enabled = on
	return nil
}

func (p *sysfsPWM) writeUint(attr string, v uint64) error {
	return p.write(filepath.Join(p.pwmPath, attr), strconv.FormatUint(v, 10))
}

// Close zeroes the duty cycle and disables the channel.
func (p *sysfsPWM) Close() error {
	if p.periodNS > 0 {
		if err := p.writeUint("duty_cycle", 0); err != nil {
			return err
		}
		p.dutyNS = 0
	}
	return p.setEnabled(false)
}
