package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"actuator-service/internal/ledc"
	"actuator-service/internal/logger"
	"actuator-service/internal/motor"
	"actuator-service/internal/statusdisplay"
)

const (
	DefaultPath = "/etc/actuator-service.yaml"

	BackendLinux   = "linux"
	BackendVirtual = "virtual"
)

type Config struct {
	LogLevel      string              `yaml:"log_level"`
	Backend       string              `yaml:"backend"`
	Consumer      string              `yaml:"consumer"`
	Redis         RedisConfig         `yaml:"redis"`
	StatusDisplay StatusDisplayConfig `yaml:"status_display"`
	Motor         MotorConfig         `yaml:"motor"`
	LEDC          LEDCConfig          `yaml:"ledc"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LinePin addresses a GPIO line on a gpiochip.
type LinePin struct {
	Chip int `yaml:"chip"`
	Line int `yaml:"line"`
}

// PWMPin addresses a channel of a sysfs pwmchip.
type PWMPin struct {
	Chip    int `yaml:"chip"`
	Channel int `yaml:"channel"`
}

type StatusDisplayConfig struct {
	Enable     bool          `yaml:"enable"`
	Data       LinePin       `yaml:"data"`
	Clock      LinePin       `yaml:"clock"`
	Latch      LinePin       `yaml:"latch"`
	Width      int           `yaml:"width"`
	LatchPulse time.Duration `yaml:"latch_pulse"`
}

type MotorConfig struct {
	Enable      bool    `yaml:"enable"`
	Speed       PWMPin  `yaml:"speed"`
	HBridge     bool    `yaml:"h_bridge"`
	In1         LinePin `yaml:"in1"`
	In2         LinePin `yaml:"in2"`
	Direction   string  `yaml:"direction"`
	FrequencyHz int     `yaml:"frequency_hz"`
}

type LEDCConfig struct {
	Enable         bool   `yaml:"enable"`
	Pin            int    `yaml:"pin"`
	PWMChip        int    `yaml:"pwm_chip"`
	Channel        int    `yaml:"channel"`
	FrequencyHz    int    `yaml:"frequency_hz"`
	ResolutionBits int    `yaml:"resolution_bits"`
	SpeedMode      string `yaml:"speed_mode"`
	Timer          int    `yaml:"timer"`
	Clock          string `yaml:"clock"`
}

// Default returns a configuration for the virtual board with every
// component enabled.
func Default() Config {
	cfg := Config{
		Backend:       BackendVirtual,
		StatusDisplay: StatusDisplayConfig{Enable: true, Data: LinePin{0, 17}, Clock: LinePin{0, 27}, Latch: LinePin{0, 22}, Width: 4},
		Motor:         MotorConfig{Enable: true, HBridge: true, In1: LinePin{0, 23}, In2: LinePin{0, 24}},
		LEDC:          LEDCConfig{Enable: true, Pin: 18},
	}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML and fills in defaults. It does not validate, so
// command line overrides can still be applied before Validate.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend == "" {
		c.Backend = BackendLinux
	}
	if c.Consumer == "" {
		c.Consumer = "actuator-service"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.StatusDisplay.Width == 0 {
		c.StatusDisplay.Width = statusdisplay.MaxWidth
	}
	if c.StatusDisplay.LatchPulse == 0 {
		c.StatusDisplay.LatchPulse = statusdisplay.LatchPulseWidth
	}
	if c.Motor.Direction == "" {
		c.Motor.Direction = motor.Clockwise.String()
	}
	if c.Motor.FrequencyHz == 0 {
		c.Motor.FrequencyHz = int(motor.DefaultFrequency / physic.Hertz)
	}
	if c.LEDC.FrequencyHz == 0 {
		c.LEDC.FrequencyHz = int(ledc.DefaultFrequency / physic.Hertz)
	}
	if c.LEDC.ResolutionBits == 0 {
		c.LEDC.ResolutionBits = ledc.DefaultResolution
	}
}

// Validate checks pin numbers and peripheral limits.
func (c Config) Validate() error {
	if _, err := logger.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Backend != BackendLinux && c.Backend != BackendVirtual {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendLinux, BackendVirtual, c.Backend)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port out of range: %d", c.Redis.Port)
	}

	if sd := c.StatusDisplay; sd.Enable {
		for name, pin := range map[string]LinePin{"data": sd.Data, "clock": sd.Clock, "latch": sd.Latch} {
			if err := pin.validate(); err != nil {
				return fmt.Errorf("status_display.%s: %w", name, err)
			}
		}
		if sd.Width < 1 || sd.Width > statusdisplay.MaxWidth {
			return fmt.Errorf("status_display.width must be 1..%d, got %d", statusdisplay.MaxWidth, sd.Width)
		}
		if sd.LatchPulse < 0 {
			return fmt.Errorf("status_display.latch_pulse must not be negative")
		}
	}

	if m := c.Motor; m.Enable {
		if err := m.Speed.validate(); err != nil {
			return fmt.Errorf("motor.speed: %w", err)
		}
		if m.HBridge {
			if err := m.In1.validate(); err != nil {
				return fmt.Errorf("motor.in1: %w", err)
			}
			if err := m.In2.validate(); err != nil {
				return fmt.Errorf("motor.in2: %w", err)
			}
		}
		if _, err := motor.ParseDirection(m.Direction); err != nil {
			return fmt.Errorf("motor.direction: %w", err)
		}
		if m.FrequencyHz <= 0 {
			return fmt.Errorf("motor.frequency_hz must be positive, got %d", m.FrequencyHz)
		}
	}

	if l := c.LEDC; l.Enable {
		if l.Pin < 0 || l.PWMChip < 0 {
			return fmt.Errorf("ledc: pin and pwm_chip must not be negative")
		}
		if l.Channel < 0 || l.Channel >= ledc.MaxChannels {
			return fmt.Errorf("ledc.channel must be 0..%d, got %d", ledc.MaxChannels-1, l.Channel)
		}
		if l.Timer < 0 || l.Timer >= ledc.MaxTimers {
			return fmt.Errorf("ledc.timer must be 0..%d, got %d", ledc.MaxTimers-1, l.Timer)
		}
		if l.ResolutionBits < 1 || l.ResolutionBits > ledc.MaxResolution {
			return fmt.Errorf("ledc.resolution_bits must be 1..%d, got %d", ledc.MaxResolution, l.ResolutionBits)
		}
		if l.FrequencyHz <= 0 {
			return fmt.Errorf("ledc.frequency_hz must be positive, got %d", l.FrequencyHz)
		}
		if _, err := ledc.ParseSpeedMode(l.SpeedMode); err != nil {
			return fmt.Errorf("ledc.speed_mode: %w", err)
		}
		if _, err := ledc.ParseClockSource(l.Clock); err != nil {
			return fmt.Errorf("ledc.clock: %w", err)
		}
	}
	return nil
}

// Frequency returns the speed pin PWM frequency.
func (m MotorConfig) Frequency() physic.Frequency {
	return physic.Frequency(m.FrequencyHz) * physic.Hertz
}

// Frequency returns the LEDC timer frequency.
func (l LEDCConfig) Frequency() physic.Frequency {
	return physic.Frequency(l.FrequencyHz) * physic.Hertz
}

func (p LinePin) validate() error {
	if p.Chip < 0 || p.Line < 0 {
		return fmt.Errorf("invalid gpio chip %d line %d", p.Chip, p.Line)
	}
	return nil
}

func (p PWMPin) validate() error {
	if p.Chip < 0 || p.Channel < 0 {
		return fmt.Errorf("invalid pwm chip %d channel %d", p.Chip, p.Channel)
	}
	return nil
}
