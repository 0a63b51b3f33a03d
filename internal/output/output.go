// Package output renders alerts and log lines for human consumption: the
// multi-line console form of an alert record, severity-colored live tail
// lines, and a small JSON writer for commands with a --format switch.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bimmerbailey/cyro/internal/alertengine"
)

// Format represents an output format type.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	if strings.ToLower(s) == "json" {
		return FormatJSON
	}
	return FormatText
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderAlert writes one alert in its console form:
//
//	<ts> [LEVEL] novelty=0.987 (q0.992>=0.870) score=12.301  original line
//	   -> neighbor (sim=0.60): previous similar line
//	   template=user <str> logged in p~0.00012
//
// With colorize set, the novelty is tinted by its magnitude and the rest of
// the header follows a fixed scheme.
func RenderAlert(w io.Writer, a *alertengine.Alert, colorize bool) error {
	ts := a.Timestamp
	if ts == "" {
		ts = "-"
	}
	level := a.Level
	if level == "" {
		level = "-"
	}

	var b strings.Builder
	b.WriteString(paint(colorGray, ts+" ", colorize))
	b.WriteString(paint(colorCyan, "["+level+"] ", colorize))
	b.WriteString(paint(noveltyColor(a.Novelty), fmt.Sprintf("novelty=%.3f ", a.Novelty), colorize))
	if a.Threshold != nil {
		if a.Quantile != nil {
			b.WriteString(paint(colorGray, fmt.Sprintf("(q%.3f>=%.3f) ", *a.Quantile, *a.Threshold), colorize))
		} else {
			b.WriteString(paint(colorGray, fmt.Sprintf("(>=%.3f) ", *a.Threshold), colorize))
		}
	}
	b.WriteString(paint(colorMagenta, fmt.Sprintf("score=%.3f ", a.Score), colorize))
	b.WriteString(" ")
	b.WriteString(a.Line)
	b.WriteString("\n")

	for _, n := range a.Neighbors {
		b.WriteString(paint(colorGray, fmt.Sprintf("   -> neighbor (sim=%.2f): %s", n.Similarity, n.Line), colorize))
		b.WriteString("\n")
	}
	// ASCII '~' instead of a Unicode approx sign, for console compatibility.
	b.WriteString(paint(colorGray, fmt.Sprintf("   template=%s p~%.5f", a.Template, a.TemplateProbability), colorize))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
