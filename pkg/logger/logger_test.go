package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWritesSortedAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.Info("token stored", map[string]any{"path": "/tmp/token.json", "expires_in": 3600})

	line := buf.String()
	if !strings.Contains(line, "msg=\"token stored\"") {
		t.Fatalf("missing message: %q", line)
	}
	if strings.Index(line, "expires_in=") > strings.Index(line, "path=") {
		t.Fatalf("expected sorted keys, got %q", line)
	}
}

func TestLoggerDropsDebugUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	New(&buf, true).Debug("shown", nil)
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}

func TestLoggerErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Warn("save failed", errors.New("permission denied"))
	if !strings.Contains(buf.String(), "error=\"permission denied\"") {
		t.Fatalf("expected error attribute, got %q", buf.String())
	}
}

func TestHelpersTolerateNilLogger(t *testing.T) {
	Info(nil, "x", nil)
	Warn(nil, "x", nil)
	Error(nil, "x", nil)
	Debug(true, nil, "x", nil)
	Debugf(true, nil, "x %d", 1)
}
