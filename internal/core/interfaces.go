package core

import (
	"periph.io/x/conn/v3/gpio"

	"actuator-service/internal/ledc"
	"actuator-service/internal/messaging"
	"actuator-service/internal/types"
)

// MessagingClient defines the interface for Redis messaging operations needed by ActuatorSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	PublishState(state types.ActuatorState) error
}

// HardwareIO defines the interface for hardware I/O operations needed by ActuatorSystem
type HardwareIO interface {
	Initialize() error
	Cleanup()

	Output(name string, chip, line int) (gpio.PinOut, error)
	PWMOutput(name string, chip, channel int) (gpio.PinOut, error)
	LEDC(chip int) (ledc.Peripheral, error)
}
