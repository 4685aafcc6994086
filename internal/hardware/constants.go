package hardware

import "time"

const (
	DefaultConsumer = "actuator-service"

	GpioChipFormat = "gpiochip%d"
	PwmSysfsBase   = "/sys/class/pwm"

	// pwmExportTimeout bounds the wait for a freshly exported channel
	// directory to show up.
	pwmExportTimeout = 500 * time.Millisecond
	pwmExportPoll    = 10 * time.Millisecond
)
