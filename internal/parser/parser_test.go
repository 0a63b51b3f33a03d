package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/bimmerbailey/cyro/internal/config"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Format
	}{
		{"json object", `{"level":"info","message":"ok"}`, FormatJSON},
		{"brace but not json", `{definitely not json}`, FormatGeneric},
		{"syslog", "Jan 26 10:00:01 web-01 sshd[1234]: Accepted password", FormatSyslog},
		{"apache", `10.0.0.5 - - [26/Jan/2025:10:00:01 -0500] "GET / HTTP/1.1" 200 123 "-" "curl"`, FormatApache},
		{"plain text", "something happened", FormatGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.line); got != tc.want {
				t.Fatalf("DetectFormat(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestParseEntryJSON(t *testing.T) {
	p := New(nil)

	entry := p.ParseEntry(`{"timestamp":"2025-01-26T10:00:01Z","level":"error","message":"disk full","source":"db-01","shard":"s3"}`, 7)
	if entry.Level != config.LevelError {
		t.Fatalf("Level = %v, want ERROR", entry.Level)
	}
	if entry.Message != "disk full" {
		t.Fatalf("Message = %q, want %q", entry.Message, "disk full")
	}
	if entry.Source != "db-01" {
		t.Fatalf("Source = %q, want db-01", entry.Source)
	}
	if entry.Timestamp.IsZero() {
		t.Fatalf("expected timestamp parsed")
	}
	if entry.Line != 7 {
		t.Fatalf("Line = %d, want 7", entry.Line)
	}
	if entry.Fields["shard"] != "s3" {
		t.Fatalf("expected extra field retained, got %v", entry.Fields)
	}
}

func TestParseEntryJSONAliases(t *testing.T) {
	p := New(nil)
	entry := p.ParseEntry(`{"time":"2025-01-26T10:00:01Z","severity":"warning","msg":"alternative fields"}`, 1)
	if entry.Level != config.LevelWarn {
		t.Fatalf("Level = %v, want WARN", entry.Level)
	}
	if entry.Message != "alternative fields" {
		t.Fatalf("Message = %q", entry.Message)
	}
}

func TestParseEntryJSONEpochTimestamps(t *testing.T) {
	p := New(nil)

	seconds := p.ParseEntry(`{"ts": 1706270401, "message": "epoch seconds"}`, 1)
	if seconds.Timestamp.IsZero() {
		t.Fatalf("expected epoch-seconds timestamp parsed")
	}
	millis := p.ParseEntry(`{"ts": 1706270401000, "message": "epoch millis"}`, 1)
	if millis.Timestamp.IsZero() {
		t.Fatalf("expected epoch-milliseconds timestamp parsed")
	}
	if !seconds.Timestamp.Equal(millis.Timestamp) {
		t.Fatalf("the same instant should parse identically: %v vs %v", seconds.Timestamp, millis.Timestamp)
	}
}

func TestParseEntrySyslog(t *testing.T) {
	p := New(nil)

	withPid := p.ParseEntry("Jan 26 10:00:01 web-01 sshd[1234]: Accepted password for admin", 1)
	if withPid.Source != "web-01" {
		t.Fatalf("Source = %q, want web-01", withPid.Source)
	}
	if withPid.Message != "Accepted password for admin" {
		t.Fatalf("Message = %q", withPid.Message)
	}
	if withPid.Fields["process"] != "sshd" || withPid.Fields["pid"] != "1234" {
		t.Fatalf("expected process/pid fields, got %v", withPid.Fields)
	}

	levelInMsg := p.ParseEntry("Jan 26 10:00:01 db-01 postgres: ERROR: deadlock detected", 1)
	if levelInMsg.Level != config.LevelError {
		t.Fatalf("expected ERROR recovered from message, got %v", levelInMsg.Level)
	}
}

func TestParseEntrySyslogPriority(t *testing.T) {
	p := New(nil)
	cases := []struct {
		line string
		want config.Level
	}{
		// priority % 8 is the severity: 27 % 8 = 3 (error), 30 % 8 = 6 (info)
		{"<27>Jan 26 10:00:01 app-01 myapp[999]: Connection established", config.LevelError},
		{"<30>Jan 26 10:00:01 web-01 nginx: Server started", config.LevelInfo},
	}
	for _, tc := range cases {
		entry := p.ParseEntry(tc.line, 1)
		if entry.Level != tc.want {
			t.Fatalf("ParseEntry(%q).Level = %v, want %v", tc.line, entry.Level, tc.want)
		}
	}
}

func TestParseEntryApache(t *testing.T) {
	p := New(nil)
	cases := []struct {
		name      string
		line      string
		wantLevel config.Level
		wantPath  string
	}{
		{
			"2xx is info",
			`192.168.1.100 - user123 [26/Jan/2025:10:00:01 -0500] "GET /index.html HTTP/1.1" 200 1234 "https://example.com" "Mozilla/5.0"`,
			config.LevelInfo, "/index.html",
		},
		{
			"4xx is warn",
			`10.0.0.50 - - [26/Jan/2025:10:01:15 -0500] "GET /missing HTTP/1.1" 404 567 "-" "curl/7.68.0"`,
			config.LevelWarn, "/missing",
		},
		{
			"5xx is error",
			`172.16.0.25 - - [26/Jan/2025:10:02:30 -0500] "POST /api/process HTTP/1.1" 500 89 "-" "client"`,
			config.LevelError, "/api/process",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := p.ParseEntry(tc.line, 1)
			if entry.Level != tc.wantLevel {
				t.Fatalf("Level = %v, want %v", entry.Level, tc.wantLevel)
			}
			if entry.Fields["path"] != tc.wantPath {
				t.Fatalf("path field = %v, want %q", entry.Fields["path"], tc.wantPath)
			}
			if entry.Timestamp.IsZero() {
				t.Fatalf("expected timestamp parsed")
			}
		})
	}
}

func TestParseEntryGeneric(t *testing.T) {
	p := New(nil)

	entry := p.ParseEntry("2025-01-26T10:00:01Z ERROR Connection failed", 1)
	if entry.Level != config.LevelError {
		t.Fatalf("Level = %v, want ERROR", entry.Level)
	}
	if entry.Message != "Connection failed" {
		t.Fatalf("expected timestamp and level stripped from message, got %q", entry.Message)
	}
	if entry.Timestamp.IsZero() {
		t.Fatalf("expected timestamp parsed")
	}

	bare := p.ParseEntry("no markers at all", 1)
	if bare.Level != config.LevelUnknown {
		t.Fatalf("Level = %v, want UNKNOWN", bare.Level)
	}
	if bare.Message != "no markers at all" {
		t.Fatalf("Message = %q", bare.Message)
	}
}

func TestParseEntryGenericNeverEmptiesMessage(t *testing.T) {
	p := New(nil)
	entry := p.ParseEntry("[ERROR]", 1)
	if entry.Message == "" {
		t.Fatalf("message must fall back to the raw line when cleanup strips everything")
	}
}

func TestParseStreamSkipsBlankLinesAndKeepsNumbers(t *testing.T) {
	p := New(nil)
	input := "first line\n\n   \nsecond line\n"

	var entries []config.LogEntry
	err := p.ParseStream(strings.NewReader(input), func(entry config.LogEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		t.Fatalf("ParseStream() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Line != 1 || entries[1].Line != 4 {
		t.Fatalf("expected original line numbers preserved, got %d and %d", entries[0].Line, entries[1].Line)
	}
}

var errStop = errors.New("stop")

func TestParseStreamCallbackErrorStopsEarly(t *testing.T) {
	p := New(nil)
	input := "one\ntwo\nthree\n"
	calls := 0
	err := p.ParseStream(strings.NewReader(input), func(config.LogEntry) error {
		calls++
		if calls == 2 {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("expected callback error surfaced, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected parsing stopped after the error, got %d calls", calls)
	}
}

func TestParseCollectsAllEntries(t *testing.T) {
	p := New(nil)
	entries, err := p.Parse(strings.NewReader("a\nb\nc\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestParseHandlesLongLines(t *testing.T) {
	p := New(nil)
	long := strings.Repeat("x", 200_000)
	entries, err := p.Parse(strings.NewReader(long + "\n"))
	if err != nil {
		t.Fatalf("Parse() error on a long line: %v", err)
	}
	if len(entries) != 1 || len(entries[0].Raw) != len(long) {
		t.Fatalf("expected the long line parsed intact")
	}
}
