package ledc

import (
	"errors"
	"fmt"
)

// Status is a peripheral driver status code. The zero value means success
// and is never returned as an error.
type Status int32

const (
	StatusOK           Status = 0
	StatusFail         Status = -1
	StatusNoMem        Status = 0x101
	StatusInvalidArg   Status = 0x102
	StatusInvalidState Status = 0x103
	StatusInvalidSize  Status = 0x104
	StatusNotFound     Status = 0x105
	StatusNotSupported Status = 0x106
	StatusTimeout      Status = 0x107
)

var statusNames = map[Status]string{
	StatusOK:           "OK",
	StatusFail:         "FAIL",
	StatusNoMem:        "ERR_NO_MEM",
	StatusInvalidArg:   "ERR_INVALID_ARG",
	StatusInvalidState: "ERR_INVALID_STATE",
	StatusInvalidSize:  "ERR_INVALID_SIZE",
	StatusNotFound:     "ERR_NOT_FOUND",
	StatusNotSupported: "ERR_NOT_SUPPORTED",
	StatusTimeout:      "ERR_TIMEOUT",
}

func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ERR_UNKNOWN(0x%x)", int32(s))
}

// StatusOf extracts the status code carried by err. Errors that carry no
// code count as StatusFail.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusFail
}

// Errorf wraps a status code with context. The result still matches the
// code with errors.Is and StatusOf.
func Errorf(s Status, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), s)
}
