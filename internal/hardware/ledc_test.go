package hardware

import (
	"context"
	"reflect"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"actuator-service/internal/ledc"
)

func timer8bit(f physic.Frequency) ledc.TimerConfig {
	return ledc.TimerConfig{
		SpeedMode:  ledc.HighSpeedMode,
		Resolution: 8,
		Timer:      0,
		Frequency:  f,
		Clock:      ledc.AutoClock,
	}
}

func channel0(duty uint32) ledc.ChannelConfig {
	return ledc.ChannelConfig{
		Pin:       18,
		SpeedMode: ledc.HighSpeedMode,
		Channel:   0,
		Timer:     0,
		Duty:      duty,
	}
}

func TestSysfsLEDCStagesDutyUntilUpdate(t *testing.T) {
	rec := newSysfsRecorder(t)
	rec.exported("pwmchip0", "pwm0")
	p := newSysfsLEDC(rec.base, 0, rec.write)

	if err := p.ConfigureTimer(timer8bit(5 * physic.KiloHertz)); err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if got := rec.take(); len(got) != 0 {
		t.Errorf("timer alone wrote %v", got)
	}

	if err := p.ConfigureChannel(channel0(0)); err != nil {
		t.Fatalf("ConfigureChannel: %v", err)
	}
	want := []sysfsWrite{
		{"pwmchip0/pwm0/enable", "0"},
		{"pwmchip0/pwm0/period", "200000"},
		{"pwmchip0/pwm0/duty_cycle", "0"},
		{"pwmchip0/pwm0/enable", "1"},
	}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("channel writes=%v, want %v", got, want)
	}

	if err := p.SetDuty(ledc.HighSpeedMode, 0, 128); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if got := rec.take(); len(got) != 0 {
		t.Errorf("SetDuty wrote %v before UpdateDuty", got)
	}

	if err := p.UpdateDuty(ledc.HighSpeedMode, 0); err != nil {
		t.Fatalf("UpdateDuty: %v", err)
	}
	want = []sysfsWrite{{"pwmchip0/pwm0/duty_cycle", "100000"}}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("update writes=%v, want %v", got, want)
	}

	// Retiming the timer carries the committed duty to the new period.
	if err := p.ConfigureTimer(timer8bit(10 * physic.KiloHertz)); err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	want = []sysfsWrite{
		{"pwmchip0/pwm0/enable", "0"},
		{"pwmchip0/pwm0/period", "100000"},
		{"pwmchip0/pwm0/duty_cycle", "50000"},
		{"pwmchip0/pwm0/enable", "1"},
	}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("retime writes=%v, want %v", got, want)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLEDCRegistersReject(t *testing.T) {
	p := NewVirtualLEDC()

	tests := []struct {
		name string
		call func() error
		want ledc.Status
	}{
		{"channel before timer", func() error { return p.ConfigureChannel(channel0(0)) }, ledc.StatusInvalidState},
		{"timer out of range", func() error {
			cfg := timer8bit(physic.KiloHertz)
			cfg.Timer = ledc.MaxTimers
			return p.ConfigureTimer(cfg)
		}, ledc.StatusInvalidArg},
		{"resolution out of range", func() error {
			cfg := timer8bit(physic.KiloHertz)
			cfg.Resolution = ledc.MaxResolution + 1
			return p.ConfigureTimer(cfg)
		}, ledc.StatusInvalidArg},
		{"frequency unreachable", func() error { return p.ConfigureTimer(timer8bit(physic.MegaHertz)) }, ledc.StatusFail},
		{"slow clock", func() error {
			cfg := timer8bit(40 * physic.KiloHertz)
			cfg.Clock = ledc.SlowClock
			return p.ConfigureTimer(cfg)
		}, ledc.StatusFail},
		{"duty unconfigured channel", func() error { return p.SetDuty(ledc.HighSpeedMode, 3, 1) }, ledc.StatusInvalidState},
		{"update unconfigured channel", func() error { return p.UpdateDuty(ledc.HighSpeedMode, 3) }, ledc.StatusInvalidState},
		{"channel out of range", func() error { return p.SetDuty(ledc.HighSpeedMode, ledc.MaxChannels, 1) }, ledc.StatusInvalidArg},
		{"hpoint out of range", func() error {
			cfg := channel0(0)
			cfg.HPoint = ledc.MaxHPoint + 1
			return p.ConfigureChannel(cfg)
		}, ledc.StatusInvalidArg},
		{"shifted hpoint", func() error {
			cfg := channel0(0)
			cfg.HPoint = 10
			return p.ConfigureChannel(cfg)
		}, ledc.StatusNotSupported},
		{"channel interrupts", func() error {
			cfg := channel0(0)
			cfg.Interrupts = true
			return p.ConfigureChannel(cfg)
		}, ledc.StatusNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ledc.StatusOf(err); got != tt.want {
				t.Errorf("status=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestLEDCRegistersDutyRange(t *testing.T) {
	p := NewVirtualLEDC()
	if err := p.ConfigureTimer(timer8bit(5 * physic.KiloHertz)); err != nil {
		t.Fatal(err)
	}
	if err := p.ConfigureChannel(channel0(0)); err != nil {
		t.Fatal(err)
	}

	if err := p.SetDuty(ledc.HighSpeedMode, 0, 256); err != nil {
		t.Errorf("full-on duty rejected: %v", err)
	}
	err := p.SetDuty(ledc.HighSpeedMode, 0, 257)
	if ledc.StatusOf(err) != ledc.StatusInvalidArg {
		t.Errorf("expected ERR_INVALID_ARG, got %v", err)
	}
}

func TestVirtualLEDCDrivenByDriver(t *testing.T) {
	p := NewVirtualLEDC()
	d, err := ledc.New(p, 18, ledc.WithChannel(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	pin, ok := p.Output(ledc.HighSpeedMode, 2)
	if !ok {
		t.Fatal("channel 2 not configured")
	}
	if pin.Num != 18 {
		t.Errorf("pin=%d", pin.Num)
	}
	if pin.F != ledc.DefaultFrequency || pin.D != 0 {
		t.Errorf("after init: duty=%v freq=%v", pin.D, pin.F)
	}

	if err := d.SetSpeed(128); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if pin.D != gpio.DutyMax/2 {
		t.Errorf("duty=%v, want %v", pin.D, gpio.DutyMax/2)
	}

	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	if pin.D != 0 {
		t.Errorf("duty after stop=%v", pin.D)
	}
}
