package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"actuator-service/internal/ledc"
)

// Source clocks selectable for the LEDC timers.
var ledcClockRates = map[ledc.ClockSource]physic.Frequency{
	ledc.AutoClock:    80 * physic.MegaHertz,
	ledc.APBClock:     80 * physic.MegaHertz,
	ledc.RefTickClock: physic.MegaHertz,
	ledc.SlowClock:    8 * physic.MegaHertz,
}

type ledcTimerKey struct {
	mode  ledc.SpeedMode
	timer ledc.Timer
}

type ledcChannelKey struct {
	mode    ledc.SpeedMode
	channel ledc.Channel
}

type ledcChannel struct {
	timer  ledcTimerKey
	out    gpio.PinOut
	staged uint32
}

// checkLEDCTimer validates a timer configuration before it is stored.
func checkLEDCTimer(cfg ledc.TimerConfig) error {
	if cfg.Timer < 0 || int(cfg.Timer) >= ledc.MaxTimers {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid timer %d", cfg.Timer)
	}
	if cfg.Resolution < 1 || cfg.Resolution > ledc.MaxResolution {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid duty resolution %d", cfg.Resolution)
	}
	if cfg.Frequency <= 0 {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid frequency %s", cfg.Frequency)
	}
	src, ok := ledcClockRates[cfg.Clock]
	if !ok {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid clock source %d", cfg.Clock)
	}
	if cfg.Frequency > src>>cfg.Resolution {
		return ledc.Errorf(ledc.StatusFail, "%s at %d bits not reachable from %s clock", cfg.Frequency, cfg.Resolution, cfg.Clock)
	}
	return nil
}

func checkLEDCChannel(ch ledc.Channel) error {
	if ch < 0 || int(ch) >= ledc.MaxChannels {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid channel %d", ch)
	}
	return nil
}

// ledcRegisters models the timer and channel registers of the LEDC block
// on top of plain PWM outputs. Duty values are staged by SetDuty and only
// reach the output on UpdateDuty.
type ledcRegisters struct {
	timers   map[ledcTimerKey]ledc.TimerConfig
	channels map[ledcChannelKey]*ledcChannel
	open     func(cfg ledc.ChannelConfig) (gpio.PinOut, error)
}

func newLEDCRegisters(open func(cfg ledc.ChannelConfig) (gpio.PinOut, error)) *ledcRegisters {
	return &ledcRegisters{
		timers:   make(map[ledcTimerKey]ledc.TimerConfig),
		channels: make(map[ledcChannelKey]*ledcChannel),
		open:     open,
	}
}

func (r *ledcRegisters) ConfigureTimer(cfg ledc.TimerConfig) error {
	if err := checkLEDCTimer(cfg); err != nil {
		return err
	}
	key := ledcTimerKey{cfg.SpeedMode, cfg.Timer}
	r.timers[key] = cfg

	// Channels already bound to this timer follow the new frequency.
	for _, ch := range r.channels {
		if ch.timer != key {
			continue
		}
		if err := r.apply(ch); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledcRegisters) ConfigureChannel(cfg ledc.ChannelConfig) error {
	if err := checkLEDCChannel(cfg.Channel); err != nil {
		return err
	}
	if cfg.Pin < 0 {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid pin %d", cfg.Pin)
	}
	if cfg.HPoint < 0 || cfg.HPoint > ledc.MaxHPoint {
		return ledc.Errorf(ledc.StatusInvalidArg, "invalid hpoint %d", cfg.HPoint)
	}
	// Plain PWM outputs start every period high and raise no interrupts.
	if cfg.HPoint != 0 {
		return ledc.Errorf(ledc.StatusNotSupported, "hpoint %d needs a phase-shifting output", cfg.HPoint)
	}
	if cfg.Interrupts {
		return ledc.Errorf(ledc.StatusNotSupported, "channel interrupts")
	}
	timerKey := ledcTimerKey{cfg.SpeedMode, cfg.Timer}
	timer, ok := r.timers[timerKey]
	if !ok {
		return ledc.Errorf(ledc.StatusInvalidState, "timer %d not configured", cfg.Timer)
	}
	if cfg.Duty > maxLEDCDuty(timer) {
		return ledc.Errorf(ledc.StatusInvalidArg, "duty %d out of range", cfg.Duty)
	}

	key := ledcChannelKey{cfg.SpeedMode, cfg.Channel}
	ch, ok := r.channels[key]
	if !ok {
		out, err := r.open(cfg)
		if err != nil {
			return ledc.Errorf(ledc.StatusFail, "failed to open channel %d: %v", cfg.Channel, err)
		}
		ch = &ledcChannel{out: out}
		r.channels[key] = ch
	}
	ch.timer = timerKey
	ch.staged = cfg.Duty
	return r.apply(ch)
}

func (r *ledcRegisters) SetDuty(mode ledc.SpeedMode, channel ledc.Channel, duty uint32) error {
	ch, err := r.channel(mode, channel)
	if err != nil {
		return err
	}
	if duty > maxLEDCDuty(r.timers[ch.timer]) {
		return ledc.Errorf(ledc.StatusInvalidArg, "duty %d out of range", duty)
	}
	ch.staged = duty
	return nil
}

func (r *ledcRegisters) UpdateDuty(mode ledc.SpeedMode, channel ledc.Channel) error {
	ch, err := r.channel(mode, channel)
	if err != nil {
		return err
	}
	return r.apply(ch)
}

func (r *ledcRegisters) channel(mode ledc.SpeedMode, channel ledc.Channel) (*ledcChannel, error) {
	if err := checkLEDCChannel(channel); err != nil {
		return nil, err
	}
	ch, ok := r.channels[ledcChannelKey{mode, channel}]
	if !ok {
		return nil, ledc.Errorf(ledc.StatusInvalidState, "channel %d not configured", channel)
	}
	return ch, nil
}

// apply writes the staged duty of ch at the frequency of its timer.
func (r *ledcRegisters) apply(ch *ledcChannel) error {
	timer := r.timers[ch.timer]
	full := uint64(1) << timer.Resolution
	duty := gpio.Duty(uint64(gpio.DutyMax) * uint64(ch.staged) / full)
	if err := ch.out.PWM(duty, timer.Frequency); err != nil {
		return ledc.Errorf(ledc.StatusFail, "failed to write duty: %v", err)
	}
	return nil
}

// maxLEDCDuty is 2^resolution: the hardware accepts one step past the last
// partial duty to mean fully on.
func maxLEDCDuty(timer ledc.TimerConfig) uint32 {
	return uint32(1) << timer.Resolution
}

// SysfsLEDC is a ledc.Peripheral whose channels are the channels of one
// sysfs pwmchip. Channel n drives pwm<n>.
type SysfsLEDC struct {
	*ledcRegisters
	pwms []*sysfsPWM
}

var _ ledc.Peripheral = (*SysfsLEDC)(nil)

// NewSysfsLEDC creates the peripheral for /sys/class/pwm/pwmchip<chip>.
func NewSysfsLEDC(chip int) *SysfsLEDC {
	return newSysfsLEDC(PwmSysfsBase, chip, writeSysfs)
}

func newSysfsLEDC(base string, chip int, write func(path, value string) error) *SysfsLEDC {
	s := &SysfsLEDC{}
	s.ledcRegisters = newLEDCRegisters(func(cfg ledc.ChannelConfig) (gpio.PinOut, error) {
		name := fmt.Sprintf("ledc-%s-%d", cfg.SpeedMode, cfg.Channel)
		pwm, err := openSysfsPWM(base, name, chip, int(cfg.Channel), write)
		if err != nil {
			return nil, err
		}
		s.pwms = append(s.pwms, pwm)
		return pwm, nil
	})
	return s
}

// Close zeroes and disables every opened channel.
func (s *SysfsLEDC) Close() error {
	var firstErr error
	for _, pwm := range s.pwms {
		if err := pwm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
