package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Fatal("fatal %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below level were written: %q", out)
	}
	if !strings.Contains(out, "hl7validator [WARN] warn 3") {
		t.Errorf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "[FATAL] fatal 4") {
		t.Errorf("fatal message missing: %q", out)
	}
}

func TestLoggerNone(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelNone)
	l.Fatal("nothing")
	if buf.Len() != 0 {
		t.Errorf("LevelNone wrote %q", buf.String())
	}
	if l.Enabled(LevelFatal) {
		t.Error("Enabled(LevelFatal) = true for LevelNone")
	}
}

func TestFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		want      Level
	}{
		{0, LevelFatal},
		{1, LevelError},
		{2, LevelWarn},
		{3, LevelInfo},
		{4, LevelDebug},
		{9, LevelWarn},
		{-1, LevelWarn},
	}
	for _, tt := range tests {
		if got := FromVerbosity(tt.verbosity); got != tt.want {
			t.Errorf("FromVerbosity(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}
