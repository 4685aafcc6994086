package messaging

import (
	"errors"
	"testing"

	"actuator-service/internal/motor"
)

func TestParseStatusCommand(t *testing.T) {
	tests := []struct {
		value   string
		want    StatusCommand
		wantErr bool
	}{
		{"clear", StatusCommand{Clear: true}, false},
		{"3:on", StatusCommand{Line: 3, On: true}, false},
		{"0:off", StatusCommand{Line: 0, On: false}, false},
		{"-1:on", StatusCommand{Line: -1, On: true}, false}, // range is checked by the display
		{"3:blink", StatusCommand{}, true},
		{"x:on", StatusCommand{}, true},
		{"on", StatusCommand{}, true},
	}
	for _, tt := range tests {
		got, err := ParseStatusCommand(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatusCommand(%q) error=%v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatusCommand(%q)=%+v, want %+v", tt.value, got, tt.want)
		}
	}
}

func TestParseMotorCommand(t *testing.T) {
	tests := []struct {
		value   string
		want    MotorCommand
		wantErr bool
	}{
		{"stop", MotorCommand{Action: MotorStop}, false},
		{"speed:200", MotorCommand{Action: MotorSpeed, Speed: 200}, false},
		{"speed:-4", MotorCommand{Action: MotorSpeed, Speed: -4}, false},
		{"direction:ccw", MotorCommand{Action: MotorDirection, Direction: motor.CounterClockwise}, false},
		{"drive:cw:90", MotorCommand{Action: MotorDrive, Direction: motor.Clockwise, Speed: 90}, false},
		{"speed:fast", MotorCommand{}, true},
		{"direction:up", MotorCommand{}, true},
		{"drive:cw", MotorCommand{}, true},
		{"drive:left:10", MotorCommand{}, true},
		{"brake", MotorCommand{}, true},
	}
	for _, tt := range tests {
		got, err := ParseMotorCommand(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMotorCommand(%q) error=%v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMotorCommand(%q)=%+v, want %+v", tt.value, got, tt.want)
		}
	}
}

func TestParseLedcCommand(t *testing.T) {
	tests := []struct {
		value   string
		want    LedcCommand
		wantErr bool
	}{
		{"stop", LedcCommand{Stop: true}, false},
		{"duty:128", LedcCommand{Duty: 128}, false},
		{"duty:", LedcCommand{}, true},
		{"speed:1", LedcCommand{}, true},
	}
	for _, tt := range tests {
		got, err := ParseLedcCommand(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLedcCommand(%q) error=%v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLedcCommand(%q)=%+v, want %+v", tt.value, got, tt.want)
		}
	}
}

func TestHandlersDispatchToCallbacks(t *testing.T) {
	r := NewRedisClient("127.0.0.1", 6379, nil)
	defer r.client.Close()

	var status []StatusCommand
	var motors []MotorCommand
	var ledcs []LedcCommand
	r.SetCallbacks(Callbacks{
		StatusCallback: func(c StatusCommand) error { status = append(status, c); return nil },
		MotorCallback:  func(c MotorCommand) error { motors = append(motors, c); return nil },
		LedcCallback:   func(c LedcCommand) error { ledcs = append(ledcs, c); return nil },
	})

	if err := r.handleStatusCommand("2:on"); err != nil {
		t.Fatal(err)
	}
	if err := r.handleMotorCommand("drive:ccw:10"); err != nil {
		t.Fatal(err)
	}
	if err := r.handleLedcCommand("duty:7"); err != nil {
		t.Fatal(err)
	}
	if err := r.handleMotorCommand("reverse"); err == nil {
		t.Error("expected error for invalid motor command")
	}

	if len(status) != 1 || status[0] != (StatusCommand{Line: 2, On: true}) {
		t.Errorf("status=%+v", status)
	}
	if len(motors) != 1 || motors[0] != (MotorCommand{Action: MotorDrive, Direction: motor.CounterClockwise, Speed: 10}) {
		t.Errorf("motors=%+v", motors)
	}
	if len(ledcs) != 1 || ledcs[0].Duty != 7 {
		t.Errorf("ledcs=%+v", ledcs)
	}
}

func TestHandlerErrorsPropagate(t *testing.T) {
	r := NewRedisClient("127.0.0.1", 6379, nil)
	defer r.client.Close()

	boom := errors.New("boom")
	r.SetCallbacks(Callbacks{
		LedcCallback: func(LedcCommand) error { return boom },
	})
	if err := r.handleLedcCommand("stop"); !errors.Is(err, boom) {
		t.Errorf("err=%v, want %v", err, boom)
	}
	// Lists without a callback are drained silently.
	if err := r.handleStatusCommand("garbage"); err != nil {
		t.Errorf("unexpected error without callback: %v", err)
	}
}
