package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func resetLogger() {
	Init(Options{})
}

func TestInit_DefaultLevel_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Info("listing accepted")
	if !strings.Contains(buf.String(), "listing accepted") {
		t.Error("Info message should be logged at default level")
	}

	buf.Reset()
	Debug("slot inspected")
	if strings.Contains(buf.String(), "slot inspected") {
		t.Error("Debug message should not be logged at default level")
	}
}

func TestInit_DebugLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	Debug("slot inspected")
	if !strings.Contains(buf.String(), "slot inspected") {
		t.Error("Debug message should be logged when Debug=true")
	}
}

func TestInit_QuietOverridesDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Quiet: true, Output: buf})
	defer resetLogger()

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	for _, hidden := range []string{"debug message", "info message", "warn message"} {
		if strings.Contains(out, hidden) {
			t.Errorf("%q should not be logged when Quiet=true", hidden)
		}
	}
	if !strings.Contains(out, "error message") {
		t.Error("Error should be logged when Quiet=true")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("scrape complete", "scraped", 3)

	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"scraped":3`) {
		t.Errorf("expected structured attribute in output, got %q", out)
	}
}

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	With("device", "pixel-7").Info("session opened")

	out := buf.String()
	if !strings.Contains(out, "device=pixel-7") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestForSession_GroupsAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	ForSession("conversation", "abc").Info("turn started")

	out := buf.String()
	if !strings.Contains(out, "session.kind=conversation") {
		t.Errorf("expected session.kind in output, got %q", out)
	}
	if !strings.Contains(out, "session.id=abc") {
		t.Errorf("expected session.id in output, got %q", out)
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "debug with context")
	InfoContext(ctx, "info with context")
	WarnContext(ctx, "warn with context")
	ErrorContext(ctx, "error with context")

	out := buf.String()
	for _, msg := range []string{"debug with context", "info with context", "warn with context", "error with context"} {
		if !strings.Contains(out, msg) {
			t.Errorf("expected %q in output", msg)
		}
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	custom := With("custom", true)
	Init(Options{Logger: custom})
	defer resetLogger()

	Info("through custom")
	if !strings.Contains(buf.String(), "custom=true") {
		t.Errorf("expected custom logger attributes, got %q", buf.String())
	}
}
