// Package sink delivers alert records to their destination: a JSONL file,
// a fan-out to several destinations, or any caller-supplied implementation.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// AlertSink receives emitted alerts and is closed once at shutdown.
type AlertSink interface {
	Emit(record any) error
	Close() error
}

// JSONLSink appends each alert as one JSON object per line, flushing after
// every write so a reader tailing the file sees alerts as they happen.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink opens path for appending (creating it if necessary).
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Emit writes record as one JSON line and flushes to disk.
func (s *JSONLSink) Emit(record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("sink: encode alert: %w", err)
	}
	return s.file.Sync()
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// MultiSink fans an alert out to several sinks. A failure in one child is
// reported but does not stop delivery to the others — one bad destination
// (a full disk, a dead network socket) never blocks the rest.
type MultiSink struct {
	Sinks []AlertSink
}

// NewMultiSink wraps sinks as a single AlertSink.
func NewMultiSink(sinks ...AlertSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// Emit calls Emit on every child, collecting (not stopping on) failures.
func (m *MultiSink) Emit(record any) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Emit(record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close calls Close on every child, collecting (not stopping on) failures.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopSink discards every alert. Useful for dry runs and tests.
type NopSink struct{}

func (NopSink) Emit(any) error { return nil }
func (NopSink) Close() error   { return nil }
