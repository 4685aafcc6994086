package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("Expected warning line, got %q", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("Expected error line, got %q", out)
	}
}

func TestWithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelInfo).WithTag("ledc")

	l.Infof("configured channel %d", 2)
	l.Errorf("failed")

	want := "[ledc] configured channel 2\n[ledc] ERROR: failed\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	l := NewLogger(nil, LogLevelDebug)
	// Must not panic.
	l.Debugf("x")
	l.Errorf("y")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"none", LogLevelNone},
		{"0", LogLevelNone},
		{"error", LogLevelError},
		{"WARN", LogLevelWarning},
		{"warning", LogLevelWarning},
		{"3", LogLevelInfo},
		{" debug ", LogLevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
