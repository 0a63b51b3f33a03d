// Package logging wraps zerolog for cyro's internal diagnostics:
// config warnings, mask/parse fallbacks, sink failures, and snapshot I/O.
// It is deliberately quiet by default (warn level) — this is a log analysis
// tool, and its own chatter shouldn't compete with the stream it's watching.
//
// It does not own the two literal status lines ("summary: ..." and
// "stats: ..."); those are written straight to stderr with fmt.Fprintln so
// their format is never altered by a logging configuration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level names accepted by New, matching the flag/env vocabulary.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the wire shape of log output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config controls a Logger's verbosity and shape.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer // defaults to os.Stderr
}

// Logger is a thin, structured wrapper over zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// New builds a Logger from cfg. An unrecognized Level falls back to warn,
// matching the "quiet unless noteworthy" default.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer = out
	if cfg.Format != FormatJSON {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: true}
	}

	zl := zerolog.New(writer).With().Timestamp().Logger().Level(parseLevel(cfg.Level))
	return &Logger{logger: zl}
}

func parseLevel(l Level) zerolog.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn, "":
		return zerolog.WarnLevel
	default:
		return zerolog.WarnLevel
	}
}

func addFields(e *zerolog.Event, fields ...any) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...any) { addFields(l.logger.Debug(), fields...).Msg(msg) }
func (l *Logger) Info(msg string, fields ...any)  { addFields(l.logger.Info(), fields...).Msg(msg) }
func (l *Logger) Warn(msg string, fields ...any)  { addFields(l.logger.Warn(), fields...).Msg(msg) }
func (l *Logger) Error(msg string, fields ...any) { addFields(l.logger.Error(), fields...).Msg(msg) }

// WithField returns a child Logger with one structured field attached to
// every subsequent entry.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// GetZerologLogger exposes the underlying zerolog.Logger for callers that
// need direct access (e.g. wiring into a third-party library's logger hook).
func (l *Logger) GetZerologLogger() zerolog.Logger { return l.logger }

var global = New(Config{Level: LevelWarn})

// InitGlobalLogger replaces the process-wide default logger used by the
// package-level Debug/Info/Warn/Error functions.
func InitGlobalLogger(cfg Config) { global = New(cfg) }

func Debug(msg string, fields ...any) { global.Debug(msg, fields...) }
func Info(msg string, fields ...any)  { global.Info(msg, fields...) }
func Warn(msg string, fields ...any)  { global.Warn(msg, fields...) }
func Error(msg string, fields ...any) { global.Error(msg, fields...) }
