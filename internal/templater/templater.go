// Package templater reduces a log line to a template by masking the
// high-cardinality substrings that vary between otherwise-identical lines:
// timestamps, identifiers, numbers, and the like. The same line always
// produces the same template, and a template is stable under re-templating
// (ToTemplate is idempotent).
package templater

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bimmerbailey/cyro/internal/logging"
)

// Mask is an ordered regex-to-replacement rule.
type Mask struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// replacers is the fixed, ordered list of built-in masks. Order matters:
// timestamps and UUIDs are masked before the generic hex/number rules would
// otherwise claim pieces of them.
var replacers = []Mask{
	{
		Name:    "ts",
		Pattern: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\b`),
		Replace: "<ts>",
	},
	{
		Name:    "uuid",
		Pattern: regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
		Replace: "<uuid>",
	},
	{
		Name:    "hex",
		Pattern: regexp.MustCompile(`\b0x[0-9a-fA-F]+\b|\b[0-9a-fA-F]{16,}\b`),
		Replace: "<hex>",
	},
	{
		Name:    "ip",
		Pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
		Replace: "<ip>",
	},
	{
		Name:    "email",
		Pattern: regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`),
		Replace: "<email>",
	},
	{
		Name:    "url",
		Pattern: regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s"']+`),
		Replace: "<url>",
	},
	{
		Name:    "path",
		Pattern: regexp.MustCompile(`"?(?:[A-Za-z]:\\[^\s"']+|/[\w.\-]+(?:/[\w.\-]+)+)"?`),
		Replace: "<path>",
	},
	{
		Name:    "str",
		Pattern: regexp.MustCompile(`"[^"]*"|'[^']*'`),
		Replace: "<str>",
	},
	{
		Name:    "num",
		Pattern: regexp.MustCompile(`\b\d+(?:\.\d+)?\b`),
		Replace: "<num>",
	},
}

// Templater applies the built-in masks plus an optional set of
// caller-supplied custom masks, run before and after the built-ins.
type Templater struct {
	mu       sync.Mutex
	before   []Mask
	after    []Mask
	warnOnce map[string]bool
}

// New returns a Templater with no custom masks installed.
func New() *Templater {
	return &Templater{warnOnce: make(map[string]bool)}
}

// SetCustomMasks installs custom masks, partitioned by whether they run
// before or after the built-in replacer list. Passing nil for either clears
// that stage.
func (t *Templater) SetCustomMasks(before, after []Mask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.before = before
	t.after = after
}

// ClearCustomMasks removes any custom masks previously installed.
func (t *Templater) ClearCustomMasks() {
	t.SetCustomMasks(nil, nil)
}

// ToTemplate reduces line to its template. Masking is applied in three
// stages — custom-before, built-ins, custom-after — then runs of whitespace
// are collapsed to a single space. The result is idempotent: calling
// ToTemplate on a template returns the same template unchanged.
func (t *Templater) ToTemplate(line string) string {
	t.mu.Lock()
	before := t.before
	after := t.after
	t.mu.Unlock()

	out := line
	out = t.apply(before, out)
	for _, m := range replacers {
		out = m.Pattern.ReplaceAllString(out, m.Replace)
	}
	out = t.apply(after, out)
	return strings.Join(strings.Fields(out), " ")
}

func (t *Templater) apply(masks []Mask, s string) string {
	for _, m := range masks {
		s = t.applyOne(m, s)
	}
	return s
}

// applyOne guards a single custom mask against a panicking or malformed
// pattern, warning once per mask name and leaving the input unchanged on
// failure rather than aborting the whole template pass.
func (t *Templater) applyOne(m Mask, s string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			t.warnFailure(m.Name, fmt.Errorf("%v", r))
			result = s
		}
	}()
	if m.Pattern == nil {
		t.warnFailure(m.Name, fmt.Errorf("nil pattern"))
		return s
	}
	return m.Pattern.ReplaceAllString(s, m.Replace)
}

func (t *Templater) warnFailure(name string, err error) {
	t.mu.Lock()
	already := t.warnOnce[name]
	t.warnOnce[name] = true
	t.mu.Unlock()
	if !already {
		logging.Warn("custom mask failed", "mask", name, "error", err)
	}
}

// CompileCustomMasks parses "pattern=replacement" specs into Masks,
// skipping (and warning once about) any spec that is malformed or whose
// pattern fails to compile.
func CompileCustomMasks(specs []string) []Mask {
	masks := make([]Mask, 0, len(specs))
	for _, spec := range specs {
		idx := strings.Index(spec, "=")
		if idx < 0 {
			logging.Warn("malformed custom mask spec, want pattern=replacement", "spec", spec)
			continue
		}
		pattern, replace := spec[:idx], spec[idx+1:]
		re, err := regexp.Compile(pattern)
		if err != nil {
			logging.Warn("invalid custom mask pattern", "pattern", pattern, "error", err)
			continue
		}
		masks = append(masks, Mask{Name: pattern, Pattern: re, Replace: replace})
	}
	return masks
}
