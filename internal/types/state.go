package types

// DriverState is the published lifecycle state of a PWM channel driver.
type DriverState string

const (
	DriverUninitialized DriverState = "uninitialized"
	DriverReady         DriverState = "ready"
)

// ActuatorState is the snapshot published to the "actuator" hash after
// every applied command.
type ActuatorState struct {
	StatusWord     uint8
	MotorDirection string
	MotorSpeed     int
	LedcState      DriverState
	LedcDuty       int
}
