package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bimmerbailey/cyro/internal/alertengine"
	"github.com/bimmerbailey/cyro/internal/config"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"garbage", FormatText},
	}
	for _, tc := range cases {
		if got := ParseFormat(tc.in); got != tc.want {
			t.Fatalf("ParseFormat(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestColorizeLine(t *testing.T) {
	cases := []struct {
		level    config.Level
		wantCode string
	}{
		{config.LevelError, colorRed},
		{config.LevelWarn, colorYellow},
		{config.LevelDebug, colorGray},
		{config.LevelTrace, colorGray},
	}
	for _, tc := range cases {
		got := ColorizeLine(tc.level, "boom")
		if !strings.HasPrefix(got, tc.wantCode) || !strings.HasSuffix(got, colorReset) {
			t.Fatalf("ColorizeLine(%v) = %q, want wrapped in %q...%q", tc.level, got, tc.wantCode, colorReset)
		}
		if !strings.Contains(got, "boom") {
			t.Fatalf("ColorizeLine(%v) lost the line content: %q", tc.level, got)
		}
	}
}

func TestColorizeLineCriticalIsBoldRed(t *testing.T) {
	got := ColorizeLine(config.LevelCritical, "meltdown")
	if !strings.Contains(got, colorBold) || !strings.Contains(got, colorRed) {
		t.Fatalf("ColorizeLine(CRITICAL) = %q, want bold red", got)
	}
}

func TestColorizeLineInfoAndUnknownUnchanged(t *testing.T) {
	for _, level := range []config.Level{config.LevelInfo, config.LevelUnknown} {
		if got := ColorizeLine(level, "plain"); got != "plain" {
			t.Fatalf("ColorizeLine(%v) = %q, want unmodified", level, got)
		}
	}
}

func TestNoveltyColorGradient(t *testing.T) {
	cases := []struct {
		novelty float64
		want    string
	}{
		{0.1, colorGreen},
		{0.59, colorGreen},
		{0.6, colorYellow},
		{0.89, colorYellow},
		{0.9, colorRed},
		{0.999, colorRed},
	}
	for _, tc := range cases {
		if got := noveltyColor(tc.novelty); got != tc.want {
			t.Fatalf("noveltyColor(%v) = %q, want %q", tc.novelty, got, tc.want)
		}
	}
}

func TestShouldColorizeModes(t *testing.T) {
	var buf bytes.Buffer
	if ShouldColorize(ColorAlways, &buf) != true {
		t.Fatalf("ColorAlways must colorize any writer")
	}
	if ShouldColorize(ColorNever, &buf) != false {
		t.Fatalf("ColorNever must never colorize")
	}
	// A plain buffer is not a terminal.
	if ShouldColorize(ColorAuto, &buf) != false {
		t.Fatalf("ColorAuto must not colorize a non-file writer")
	}
}

func sampleAlert() *alertengine.Alert {
	threshold := 0.87
	q := 0.992
	return &alertengine.Alert{
		Timestamp:           "2024-01-15T10:30:00Z",
		Level:               "ERROR",
		Novelty:             0.954,
		Score:               12.301,
		Template:            "user <str> logged in",
		TemplateProbability: 0.00012,
		Line:                "user \"mallory\" logged in",
		Threshold:           &threshold,
		Quantile:            &q,
		Neighbors: []alertengine.Neighbor{
			{Similarity: 0.6, Line: "user \"alice\" logged in"},
		},
	}
}

func TestRenderAlertPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderAlert(&buf, sampleAlert(), false); err != nil {
		t.Fatalf("RenderAlert() error: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"2024-01-15T10:30:00Z",
		"[ERROR]",
		"novelty=0.954",
		"(q0.992>=0.870)",
		"score=12.301",
		`user "mallory" logged in`,
		"-> neighbor (sim=0.60):",
		"template=user <str> logged in p~0.00012",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered alert missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\033[") {
		t.Fatalf("plain rendering must contain no ANSI escapes:\n%q", got)
	}
}

func TestRenderAlertColorized(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderAlert(&buf, sampleAlert(), true); err != nil {
		t.Fatalf("RenderAlert() error: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, colorRed) {
		t.Fatalf("expected high novelty tinted red, got:\n%q", got)
	}
	if !strings.Contains(got, colorReset) {
		t.Fatalf("expected reset codes in colorized output")
	}
}

func TestRenderAlertManualThresholdOmitsQuantile(t *testing.T) {
	a := sampleAlert()
	a.Quantile = nil
	var buf bytes.Buffer
	if err := RenderAlert(&buf, a, false); err != nil {
		t.Fatalf("RenderAlert() error: %v", err)
	}
	got := buf.String()
	if strings.Contains(got, "q0.992") {
		t.Fatalf("manual-threshold rendering must not name a quantile:\n%s", got)
	}
	if !strings.Contains(got, "(>=0.870)") {
		t.Fatalf("expected bare threshold in rendering:\n%s", got)
	}
}

func TestRenderAlertBlankFieldsUseDashes(t *testing.T) {
	a := sampleAlert()
	a.Timestamp = ""
	a.Level = ""
	var buf bytes.Buffer
	if err := RenderAlert(&buf, a, false); err != nil {
		t.Fatalf("RenderAlert() error: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "- [-] ") {
		t.Fatalf("expected dash placeholders for missing timestamp/level, got:\n%s", got)
	}
}
