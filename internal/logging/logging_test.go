package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWarnLevelSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed at warn level, got %q", buf.String())
	}
}

func TestWarnLevelEmitsWarnAndAbove(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})
	l.Warn("disk nearly full", "percent", 92)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON output, got %q: %v", buf.String(), err)
	}
	if decoded["message"] != "disk nearly full" {
		t.Fatalf("message = %v, want %q", decoded["message"], "disk nearly full")
	}
	if decoded["percent"] != float64(92) {
		t.Fatalf("percent field = %v, want 92", decoded["percent"])
	}
}

func TestDebugLevelEmitsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})
	l.Debug("trace detail")
	if !strings.Contains(buf.String(), "trace detail") {
		t.Fatalf("expected debug message present, got %q", buf.String())
	}
}

func TestWithFieldAttachesToSubsequentEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})
	child := l.WithField("component", "tail")
	child.Info("started")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", buf.String(), err)
	}
	if decoded["component"] != "tail" {
		t.Fatalf("component = %v, want %q", decoded["component"], "tail")
	}
}

func TestUnrecognizedLevelFallsBackToWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Level("nonsense"), Format: FormatJSON, Output: &buf})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected unrecognized level to default to warn (info suppressed), got %q", buf.String())
	}
	l.Warn("visible")
	if buf.Len() == 0 {
		t.Fatalf("expected warn to be emitted under the warn fallback")
	}
}
