// Package parser recovers structure from raw log lines. ParseLine is the
// cheap (timestamp, level, message) triple used on the scoring hot path;
// Parser is the fuller multi-format reader (JSON, syslog, Apache combined,
// generic text) that backs the display commands with complete LogEntry
// values.
package parser

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/cyro/internal/config"
)

// Format identifies the detected shape of a log line.
type Format string

const (
	FormatJSON    Format = "json"
	FormatSyslog  Format = "syslog"
	FormatApache  Format = "apache"
	FormatGeneric Format = "generic"
)

// syslogPattern matches BSD syslog, optionally with a <priority> prefix:
// <N>Jan 02 15:04:05 hostname process[pid]: message
var syslogPattern = regexp.MustCompile(`^(?:<(\d+)>)?(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(\S+)\s+(\S+?)(?:\[(\d+)\])?:\s+(.*)$`)

// apachePattern matches the Apache/Nginx combined log format.
var apachePattern = regexp.MustCompile(`^(\S+) (\S+) (\S+) \[([^\]]+)\] "(\S+) (\S+)(?: (\S+))?" (\d{3}) (\d+|-) "([^"]*)" "([^"]*)"`)

// levelPattern finds a severity word anywhere in free text.
var levelPattern = regexp.MustCompile(`(?i)\b(DEBUG|TRACE|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL)\b`)

// leadingLevelPattern strips a [LEVEL] / (LEVEL) / LEVEL: prefix from a
// generic line once the level has been recorded.
var leadingLevelPattern = regexp.MustCompile(`^\s*[\[\(]?(DEBUG|TRACE|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL)[\]\)]?\s*[-:]?\s*`)

// leadingTimestampPatterns strip a recognized timestamp from the front of a
// generic line, bracketed or bare.
var leadingTimestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[?\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?\]?\s*`),
	regexp.MustCompile(`^\[?\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?\]?\s*`),
}

// embeddedTimestampPatterns locate a timestamp anywhere in a generic line,
// paired with the layout that parses it.
var embeddedTimestampPatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`), time.RFC3339},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), "2006-01-02 15:04:05"},
}

// DetectFormat reports which parser would claim the line.
func DetectFormat(line string) Format {
	if strings.HasPrefix(line, "{") {
		var probe map[string]any
		if json.Unmarshal([]byte(line), &probe) == nil {
			return FormatJSON
		}
	}
	if syslogPattern.MatchString(line) {
		return FormatSyslog
	}
	if apachePattern.MatchString(line) {
		return FormatApache
	}
	return FormatGeneric
}

// Parser turns raw lines into config.LogEntry values.
type Parser struct {
	timestampFormats []string
}

// New constructs a Parser. timestampFormats are tried, in order, against
// string timestamps; nil selects a default set covering RFC3339, plain
// datetimes, syslog, and Apache layouts.
func New(timestampFormats []string) *Parser {
	if len(timestampFormats) == 0 {
		timestampFormats = []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"Jan 02 15:04:05",
			"02/Jan/2006:15:04:05 -0700",
		}
	}
	return &Parser{timestampFormats: timestampFormats}
}

// ParseEntry parses one already-read line into a LogEntry, for callers that
// receive lines from elsewhere (e.g. a tail reader) instead of an io.Reader.
func (p *Parser) ParseEntry(line string, lineNum int) config.LogEntry {
	entry := config.LogEntry{
		Raw:    line,
		Line:   lineNum,
		Level:  config.LevelUnknown,
		Fields: make(map[string]interface{}),
	}
	switch {
	case p.parseJSON(line, &entry):
	case p.parseSyslog(line, &entry):
	case p.parseApache(line, &entry):
	default:
		p.parseGeneric(line, &entry)
	}
	return entry
}

// ParseStream reads lines from r and calls fn for each non-blank one,
// preserving original line numbers. A callback error stops parsing and is
// returned as-is.
func (p *Parser) ParseStream(r io.Reader, fn func(config.LogEntry) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(p.ParseEntry(line, lineNum)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Parse collects every entry from r.
func (p *Parser) Parse(r io.Reader) ([]config.LogEntry, error) {
	var entries []config.LogEntry
	err := p.ParseStream(r, func(entry config.LogEntry) error {
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// parseJSON claims single-object JSON lines, pulling the conventional field
// aliases and keeping everything else in Fields.
func (p *Parser) parseJSON(line string, entry *config.LogEntry) bool {
	if !strings.HasPrefix(line, "{") {
		return false
	}
	var data map[string]any
	if json.Unmarshal([]byte(line), &data) != nil {
		return false
	}

	for _, key := range []string{"msg", "message", "text"} {
		if v, ok := data[key].(string); ok {
			entry.Message = v
			break
		}
	}
	for _, key := range []string{"level", "severity", "lvl"} {
		if v, ok := data[key].(string); ok {
			entry.Level = config.ParseLevel(v)
			break
		}
	}
	for _, key := range []string{"time", "timestamp", "ts", "@timestamp"} {
		switch v := data[key].(type) {
		case string:
			entry.Timestamp = p.parseTimestamp(v)
		case float64:
			entry.Timestamp = epochToTime(v)
		default:
			continue
		}
		break
	}
	if v, ok := data["source"].(string); ok {
		entry.Source = v
	}

	claimed := map[string]bool{
		"msg": true, "message": true, "text": true,
		"level": true, "severity": true, "lvl": true,
		"time": true, "timestamp": true, "ts": true, "@timestamp": true,
		"source": true,
	}
	for k, v := range data {
		if !claimed[k] {
			entry.Fields[k] = v
		}
	}
	return true
}

// epochToTime interprets a numeric timestamp as epoch seconds, or epoch
// milliseconds when the magnitude gives it away.
func epochToTime(v float64) time.Time {
	if v > 1e12 {
		return time.Unix(0, int64(v)*int64(time.Millisecond))
	}
	return time.Unix(int64(v), 0)
}

// parseSyslog claims BSD-syslog lines. Severity comes from the <priority>
// prefix when present (priority mod 8), else from a level word in the
// message body.
func (p *Parser) parseSyslog(line string, entry *config.LogEntry) bool {
	m := syslogPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	priority, stamp, host, process, pid, message := m[1], m[2], m[3], m[4], m[5], m[6]

	// Syslog timestamps carry no year; assume the current one.
	withYear := stamp + " " + time.Now().Format("2006")
	for _, layout := range []string{"Jan 02 15:04:05 2006", "Jan  2 15:04:05 2006"} {
		if t, err := time.Parse(layout, withYear); err == nil {
			entry.Timestamp = t
			break
		}
	}

	entry.Source = host
	entry.Message = message
	if process != "" {
		entry.Fields["process"] = process
	}
	if pid != "" {
		entry.Fields["pid"] = pid
	}

	if priority != "" {
		if n, err := strconv.Atoi(priority); err == nil {
			entry.Level = severityFromPriority(n % 8)
		}
	}
	if entry.Level == config.LevelUnknown {
		if word := levelPattern.FindString(message); word != "" {
			entry.Level = config.ParseLevel(word)
		}
	}
	return true
}

// severityFromPriority maps the syslog severity bits (0=emerg..7=debug)
// onto the model's closed level set.
func severityFromPriority(severity int) config.Level {
	switch severity {
	case 7:
		return config.LevelDebug
	case 6, 5:
		return config.LevelInfo
	case 4:
		return config.LevelWarn
	case 3:
		return config.LevelError
	case 2, 1, 0:
		return config.LevelCritical
	default:
		return config.LevelUnknown
	}
}

// parseApache claims combined-log-format lines, deriving severity from the
// HTTP status class.
func (p *Parser) parseApache(line string, entry *config.LogEntry) bool {
	m := apachePattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	host, user, stamp := m[1], m[3], m[4]
	method, path, protocol := m[5], m[6], m[7]
	status, size, referer, agent := m[8], m[9], m[10], m[11]

	entry.Source = host
	if t, err := time.Parse("02/Jan/2006:15:04:05 -0700", stamp); err == nil {
		entry.Timestamp = t
	}
	if protocol == "" {
		protocol = "HTTP/1.0"
	}
	entry.Message = method + " " + path + " " + protocol + " -> " + status

	entry.Fields["method"] = method
	entry.Fields["path"] = path
	entry.Fields["protocol"] = protocol
	entry.Fields["status_code"] = status
	if size != "-" {
		entry.Fields["size"] = size
	}
	if referer != "-" && referer != "" {
		entry.Fields["referer"] = referer
	}
	if agent != "" {
		entry.Fields["user_agent"] = agent
	}
	if user != "-" {
		entry.Fields["user"] = user
	}

	switch status[0] {
	case '2', '3':
		entry.Level = config.LevelInfo
	case '4':
		entry.Level = config.LevelWarn
	case '5':
		entry.Level = config.LevelError
	}
	return true
}

// parseGeneric is the fallback: pull out whatever timestamp and level word
// can be found, and strip both from the front of the message.
func (p *Parser) parseGeneric(line string, entry *config.LogEntry) {
	entry.Timestamp = p.extractTimestamp(line)

	cleaned := line
	if word := levelPattern.FindString(line); word != "" {
		entry.Level = config.ParseLevel(word)
		cleaned = strings.Replace(cleaned, word, "", 1)
	}
	for _, re := range leadingTimestampPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = leadingLevelPattern.ReplaceAllString(cleaned, "")

	entry.Message = strings.TrimSpace(cleaned)
	if entry.Message == "" {
		entry.Message = line
	}
}

// extractTimestamp finds the first parseable timestamp anywhere in line:
// the embedded regex/layout pairs first, then each configured layout
// matched against the line's prefix.
func (p *Parser) extractTimestamp(line string) time.Time {
	for _, tp := range embeddedTimestampPatterns {
		if match := tp.re.FindString(line); match != "" {
			if t, err := time.Parse(tp.layout, match); err == nil {
				return t
			}
			if t, err := time.Parse(tp.layout+".999999999", match); err == nil {
				return t
			}
		}
	}
	for _, layout := range p.timestampFormats {
		if len(line) >= len(layout) {
			if t, err := time.Parse(layout, line[:len(layout)]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// parseTimestamp parses a whole string against the configured layouts.
func (p *Parser) parseTimestamp(s string) time.Time {
	for _, layout := range p.timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
