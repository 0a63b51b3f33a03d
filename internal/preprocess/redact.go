package preprocess

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Redactor masks sensitive values in displayed log lines while preserving
// correlation between identical values: the same secret always maps to the
// same placeholder, so an operator can still see that two lines mention the
// same IP without seeing the IP itself.
type Redactor struct {
	enabled  bool
	patterns []RedactionPattern

	mu      sync.Mutex
	hashMap map[string]string // original value -> placeholder
}

// NewRedactor builds a Redactor over the named patterns. Unknown names are
// ignored; an empty selection falls back to DefaultPatterns. With enabled
// false, Redact returns its input unchanged.
func NewRedactor(enabled bool, patternNames []string) *Redactor {
	patterns := GetPatterns(patternNames)
	if len(patterns) == 0 {
		patterns = GetPatterns(DefaultPatterns())
	}
	return &Redactor{
		enabled:  enabled,
		patterns: patterns,
		hashMap:  make(map[string]string),
	}
}

// IsEnabled reports whether redaction is active.
func (r *Redactor) IsEnabled() bool { return r.enabled }

// Redact replaces every sensitive match in text with its placeholder, e.g.
// "from 192.168.1.1" becomes "from [IPV4:a3f2]" — and the same address
// yields [IPV4:a3f2] again on every later line.
func (r *Redactor) Redact(text string) string {
	if !r.enabled {
		return text
	}
	for _, pattern := range r.patterns {
		text = pattern.Regex.ReplaceAllStringFunc(text, func(match string) string {
			return r.placeholder(match, pattern.Type)
		})
	}
	return text
}

// placeholder returns the stable placeholder for value, minting one on first
// sight. The tag is the pattern type plus the first four hex characters of
// the value's SHA-256, short enough to read and stable across lines.
func (r *Redactor) placeholder(value, patternType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.hashMap[value]; ok {
		return p
	}
	sum := sha256.Sum256([]byte(value))
	p := fmt.Sprintf("[%s:%s]", patternType, hex.EncodeToString(sum[:2]))
	r.hashMap[value] = p
	return p
}

// Reset forgets all value-to-placeholder mappings. Placeholders are derived
// from a hash of the value, so a value seen again after Reset gets the same
// placeholder it had before.
func (r *Redactor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashMap = make(map[string]string)
}
