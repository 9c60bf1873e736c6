package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(NewWriterLogger(&buf, INFO))
	defer SetGlobal(nil)

	Debug(AreaCalc, "hidden %d", 1)
	Info(AreaCalc, "shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("DEBUG entry written at INFO level: %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "[CALC]") {
		t.Errorf("INFO entry missing or malformed: %q", out)
	}
}

func TestAreaToggle(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(NewWriterLogger(&buf, DEBUG))
	defer SetGlobal(nil)

	DisableArea(AreaREPL)
	if GetAreaStatus(AreaREPL) {
		t.Fatal("area should be disabled")
	}
	Info(AreaREPL, "muted")
	if buf.Len() != 0 {
		t.Errorf("disabled area wrote %q", buf.String())
	}

	EnableArea(AreaREPL)
	Info(AreaREPL, "back")
	if !strings.Contains(buf.String(), "back") {
		t.Errorf("enabled area did not write: %q", buf.String())
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	SetGlobal(nil)
	// Must not panic.
	Debug(AreaGeneral, "nothing")
	Error(AreaGeneral, "nothing")
	if GetAreaStatus(AreaGeneral) {
		t.Error("nil logger reports enabled area")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"WARNING": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
