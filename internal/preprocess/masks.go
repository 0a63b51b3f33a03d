package preprocess

import (
	"strings"

	"github.com/bimmerbailey/cyro/internal/templater"
)

// ToTemplaterMasks adapts the named built-in redaction patterns into
// templater.Mask values, so the same PII patterns the Redactor uses for
// display redaction (cyro tail --redact) can also run as an optional custom mask preset ahead of the
// info model's own built-in masks — useful when a deployment's logs carry
// secrets or PII that the fixed mask list doesn't cover (credit cards,
// JWTs, private key headers). Unknown names are silently ignored, matching
// GetPatterns.
func ToTemplaterMasks(names []string) []templater.Mask {
	patterns := GetPatterns(names)
	masks := make([]templater.Mask, 0, len(patterns))
	for _, p := range patterns {
		masks = append(masks, templater.Mask{
			Name:    p.Name,
			Pattern: p.Regex,
			Replace: "<" + strings.ToLower(p.Type) + ">",
		})
	}
	return masks
}
