package parser

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/bimmerbailey/cyro/internal/logging"
)

// jsonWarnOnce keeps the malformed-JSON fallback warning to a single line
// per process; a stream full of brace-wrapped non-JSON would otherwise spam
// stderr on every line.
var jsonWarnOnce sync.Once

// Parsed is the lightweight (timestamp, level, message) triple the alert
// engine's hot path works with — distinct from LogEntry, which the batch
// Parser builds with a fully-resolved time.Time and is heavier than a
// per-line scoring loop needs. Timestamp is returned verbatim as the string
// found in the line, not parsed into a time.Time.
type Parsed struct {
	Timestamp string
	Level     string
	Message   string
}

var levelWordPattern = regexp.MustCompile(`(?i)\b(CRITICAL|FATAL|ERROR|WARN(?:ING)?|INFO|DEBUG|TRACE)\b`)

// compactTimestampPattern matches the common "2024-01-15T10:30:00" /
// "2024-01-15 10:30:00" shapes without requiring a timezone suffix.
var compactTimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)

var knownLevels = map[string]bool{
	"CRITICAL": true, "FATAL": true, "ERROR": true, "WARN": true, "WARNING": true,
	"INFO": true, "DEBUG": true, "TRACE": true,
}

// ParseLine recovers a (timestamp, level, message) triple from one raw log
// line. Lines that look like a single JSON object are parsed as such, with
// field aliases timestamp/ts/@timestamp, level/severity/lvl, and
// message/msg/log; a line that fails to parse as JSON despite looking like
// one falls through to the heuristic path rather than being dropped. The
// heuristic path scans for a known severity word and a compact timestamp
// anywhere in the line; whichever (or neither) is found, the full line is
// always returned as Message.
func ParseLine(line string) Parsed {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Parsed{}
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if parsed, ok := parseJSONLine(trimmed); ok {
			return parsed
		}
		jsonWarnOnce.Do(func() {
			logging.Warn("line looked like JSON but failed to parse; falling back to heuristics", "line", truncateForWarning(trimmed))
		})
	}

	return heuristicParse(trimmed)
}

func parseJSONLine(line string) (Parsed, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Parsed{}, false
	}

	ts := firstStringField(fields, "timestamp", "ts", "@timestamp")
	level := strings.ToUpper(firstStringField(fields, "level", "severity", "lvl"))
	if level != "" && !knownLevels[level] {
		level = ""
	}
	msg := firstStringField(fields, "message", "msg", "log")
	if msg == "" {
		msg = line
	}

	return Parsed{Timestamp: ts, Level: level, Message: msg}, true
}

func firstStringField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func heuristicParse(line string) Parsed {
	var level, ts string
	if m := levelWordPattern.FindString(line); m != "" {
		level = strings.ToUpper(m)
		if level == "WARNING" {
			level = "WARN"
		}
	}
	if m := compactTimestampPattern.FindString(line); m != "" {
		ts = m
	}
	return Parsed{Timestamp: ts, Level: level, Message: line}
}

func truncateForWarning(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
