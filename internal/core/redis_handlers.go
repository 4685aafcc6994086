package core

import (
	"errors"
	"fmt"

	"actuator-service/internal/messaging"
)

var errDisabled = errors.New("actuator disabled in configuration")

func (s *ActuatorSystem) handleStatusCommand(cmd messaging.StatusCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.display == nil {
		return fmt.Errorf("status display: %w", errDisabled)
	}

	var err error
	if cmd.Clear {
		s.logger.Infof("Clearing status display")
		err = s.display.Clear()
	} else {
		s.logger.Debugf("Status line %d on=%v", cmd.Line, cmd.On)
		err = s.display.WriteLine(cmd.Line, cmd.On)
	}
	if err != nil {
		return err
	}
	return s.publishAfterCommand()
}

func (s *ActuatorSystem) handleMotorCommand(cmd messaging.MotorCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.motor == nil {
		return fmt.Errorf("motor: %w", errDisabled)
	}

	var err error
	switch cmd.Action {
	case messaging.MotorSpeed:
		err = s.motor.SetSpeed(cmd.Speed)
	case messaging.MotorDirection:
		err = s.motor.SetDirection(cmd.Direction)
	case messaging.MotorDrive:
		err = s.motor.Drive(cmd.Direction, cmd.Speed)
	case messaging.MotorStop:
		s.logger.Infof("Stopping motor")
		err = s.motor.Stop()
	default:
		return fmt.Errorf("unknown motor action %d", cmd.Action)
	}
	if err != nil {
		return err
	}
	return s.publishAfterCommand()
}

func (s *ActuatorSystem) handleLedcCommand(cmd messaging.LedcCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledc == nil {
		return fmt.Errorf("LEDC motor: %w", errDisabled)
	}

	var err error
	if cmd.Stop {
		s.logger.Infof("Stopping LEDC motor")
		err = s.ledc.Stop()
	} else {
		err = s.ledc.SetSpeed(cmd.Duty)
	}
	if err != nil {
		return err
	}
	return s.publishAfterCommand()
}

// publishAfterCommand reports the new state. The command itself already
// succeeded, so a failed publish is only logged.
func (s *ActuatorSystem) publishAfterCommand() error {
	if err := s.publishState(); err != nil {
		s.logger.Warnf("Failed to publish actuator state: %v", err)
	}
	return nil
}
