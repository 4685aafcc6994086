// File: internal/core/system.go
package core

import (
	"context"
	"fmt"
	"sync"

	"actuator-service/internal/config"
	"actuator-service/internal/ledc"
	"actuator-service/internal/logger"
	"actuator-service/internal/messaging"
	"actuator-service/internal/motor"
	"actuator-service/internal/statusdisplay"
	"actuator-service/internal/types"
)

// ActuatorSystem owns the status display, the motor and the LEDC channel
// and applies commands received over Redis to them.
type ActuatorSystem struct {
	cfg    config.Config
	logger *logger.Logger
	io     HardwareIO
	redis  MessagingClient

	// mu serialises command handlers; each list listener runs in its own
	// goroutine.
	mu      sync.Mutex
	display *statusdisplay.Display
	motor   *motor.Controller
	ledc    *ledc.Driver
}

func NewActuatorSystem(io HardwareIO, redis MessagingClient, cfg config.Config, l *logger.Logger) *ActuatorSystem {
	if l == nil {
		l = logger.Discard()
	}
	return &ActuatorSystem{
		cfg:    cfg,
		logger: l.WithTag("Actuator"),
		io:     io,
		redis:  redis,
	}
}

func (s *ActuatorSystem) Start(ctx context.Context) error {
	s.logger.Infof("Starting actuator system")

	if err := s.io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	if s.cfg.StatusDisplay.Enable {
		if err := s.initDisplay(); err != nil {
			return fmt.Errorf("failed to initialize status display: %w", err)
		}
	}
	if s.cfg.Motor.Enable {
		if err := s.initMotor(); err != nil {
			return fmt.Errorf("failed to initialize motor: %w", err)
		}
	}
	if s.cfg.LEDC.Enable {
		if err := s.initLEDC(ctx); err != nil {
			return fmt.Errorf("failed to initialize LEDC motor: %w", err)
		}
	}

	s.redis.SetCallbacks(messaging.Callbacks{
		StatusCallback: s.handleStatusCommand,
		MotorCallback:  s.handleMotorCommand,
		LedcCallback:   s.handleLedcCommand,
	})

	if err := s.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.mu.Lock()
	err := s.publishState()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish initial state: %w", err)
	}

	if err := s.redis.StartListening(); err != nil {
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	s.logger.Infof("Actuator system started")
	return nil
}

func (s *ActuatorSystem) initDisplay() error {
	sd := s.cfg.StatusDisplay
	data, err := s.io.Output("status_data", sd.Data.Chip, sd.Data.Line)
	if err != nil {
		return err
	}
	clock, err := s.io.Output("status_clock", sd.Clock.Chip, sd.Clock.Line)
	if err != nil {
		return err
	}
	latch, err := s.io.Output("status_latch", sd.Latch.Chip, sd.Latch.Line)
	if err != nil {
		return err
	}

	d, err := statusdisplay.New(data, clock, latch,
		statusdisplay.WithWidth(sd.Width),
		statusdisplay.WithLatchPulse(sd.LatchPulse),
		statusdisplay.WithLogger(s.logger.WithTag("StatusDisplay")))
	if err != nil {
		return err
	}
	s.display = d
	s.logger.Infof("Status display ready: width=%d", sd.Width)
	return nil
}

func (s *ActuatorSystem) initMotor() error {
	m := s.cfg.Motor
	dir, err := motor.ParseDirection(m.Direction)
	if err != nil {
		return err
	}
	speed, err := s.io.PWMOutput("motor_speed", m.Speed.Chip, m.Speed.Channel)
	if err != nil {
		return err
	}

	opts := []motor.Option{
		motor.WithFrequency(m.Frequency()),
		motor.WithLogger(s.logger.WithTag("Motor")),
	}

	var c *motor.Controller
	if m.HBridge {
		in1, err := s.io.Output("motor_in1", m.In1.Chip, m.In1.Line)
		if err != nil {
			return err
		}
		in2, err := s.io.Output("motor_in2", m.In2.Chip, m.In2.Line)
		if err != nil {
			return err
		}
		c, err = motor.NewHBridge(speed, in1, in2, dir, opts...)
		if err != nil {
			return err
		}
	} else {
		c, err = motor.NewSingle(speed, opts...)
		if err != nil {
			return err
		}
	}
	s.motor = c
	s.logger.Infof("Motor ready: mode=%s", c.Mode())
	return nil
}

func (s *ActuatorSystem) initLEDC(ctx context.Context) error {
	l := s.cfg.LEDC
	mode, err := ledc.ParseSpeedMode(l.SpeedMode)
	if err != nil {
		return err
	}
	clock, err := ledc.ParseClockSource(l.Clock)
	if err != nil {
		return err
	}
	p, err := s.io.LEDC(l.PWMChip)
	if err != nil {
		return err
	}

	d, err := ledc.New(p, l.Pin,
		ledc.WithChannel(ledc.Channel(l.Channel)),
		ledc.WithFrequency(l.Frequency()),
		ledc.WithResolution(l.ResolutionBits),
		ledc.WithSpeedMode(mode),
		ledc.WithTimer(ledc.Timer(l.Timer)),
		ledc.WithClock(clock),
		ledc.WithLogger(s.logger.WithTag("LEDC")))
	if err != nil {
		return err
	}
	if err := d.Init(ctx); err != nil {
		d.Close()
		return err
	}
	s.ledc = d
	return nil
}

// State returns a snapshot of every enabled actuator.
func (s *ActuatorSystem) State() types.ActuatorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *ActuatorSystem) stateLocked() types.ActuatorState {
	state := types.ActuatorState{LedcState: types.DriverUninitialized}
	if s.display != nil {
		state.StatusWord = s.display.Word()
	}
	if s.motor != nil {
		// Left empty while no direction is driven.
		if s.motor.Mode() == motor.ModeHBridge && !s.motor.Released() {
			state.MotorDirection = s.motor.Direction().String()
		}
		state.MotorSpeed = s.motor.Speed()
	}
	if s.ledc != nil {
		state.LedcState = s.ledc.State()
		state.LedcDuty = s.ledc.Duty()
	}
	return state
}

// publishState must be called with mu held.
func (s *ActuatorSystem) publishState() error {
	return s.redis.PublishState(s.stateLocked())
}

// Shutdown stops both motors and blanks the display before releasing
// Redis, the LEDC driver and the hardware.
func (s *ActuatorSystem) Shutdown() {
	s.logger.Infof("Shutting down actuator system")

	if err := s.redis.Close(); err != nil {
		s.logger.Warnf("Failed to close Redis client: %v", err)
	}

	s.mu.Lock()
	if s.motor != nil {
		if err := s.motor.Stop(); err != nil {
			s.logger.Warnf("Failed to stop motor: %v", err)
		}
	}
	if s.ledc != nil {
		if err := s.ledc.Stop(); err != nil {
			s.logger.Warnf("Failed to stop LEDC motor: %v", err)
		}
		if err := s.ledc.Close(); err != nil {
			s.logger.Warnf("Failed to close LEDC driver: %v", err)
		}
	}
	if s.display != nil {
		if err := s.display.Clear(); err != nil {
			s.logger.Warnf("Failed to clear status display: %v", err)
		}
	}
	s.mu.Unlock()

	s.io.Cleanup()
	s.logger.Infof("Actuator system stopped")
}
