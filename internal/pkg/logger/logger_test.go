package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestStdLoggerSuppressesDebugWhenQuiet(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("hidden", nil)
	log.Info("hidden", nil)
	log.Warn("shown", map[string]interface{}{"action": "delete_file"})
	log.Error("failed", errors.New("disk full"), nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug/info leaked in quiet mode: %s", out)
	}
	if !strings.Contains(out, "action=delete_file") || !strings.Contains(out, "error=\"disk full\"") {
		t.Fatalf("missing structured fields: %s", out)
	}
}

func TestStdLoggerVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).Debug("visible", map[string]interface{}{"n": 1})
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}

func TestMemoryLogger(t *testing.T) {
	m := NewMemory()
	m.Warn("a", nil)
	m.Error("b", errors.New("x"), nil)
	if m.Count("warn") != 1 || m.Count("error") != 1 || len(m.Entries()) != 2 {
		t.Fatalf("unexpected entries %+v", m.Entries())
	}
}
