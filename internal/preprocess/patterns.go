// Package preprocess detects and masks sensitive values (PII, credentials)
// in log lines, as a Redactor for display paths and as named mask presets
// the templater can run ahead of its built-in canonicalization rules.
package preprocess

import "regexp"

// RedactionPattern is one named detector for a class of sensitive data.
// Type doubles as the placeholder prefix ([IPV4:...], [JWT:...]) and as the
// templater mask token (<ipv4>, <jwt>).
type RedactionPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Type        string
	Description string
}

// BuiltInPatterns contains every available detector, selectable by name.
var BuiltInPatterns = map[string]RedactionPattern{
	"ipv4": {
		Name:        "ipv4",
		Regex:       regexp.MustCompile(`\b(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		Type:        "IPV4",
		Description: "IPv4 addresses",
	},
	"ipv6": {
		Name:        "ipv6",
		Regex:       regexp.MustCompile(`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}|(?:[0-9a-fA-F]{1,4}:){1,7}:|(?:[0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}|(?:[0-9a-fA-F]{1,4}:){1,5}(?::[0-9a-fA-F]{1,4}){1,2}|(?:[0-9a-fA-F]{1,4}:){1,4}(?::[0-9a-fA-F]{1,4}){1,3}|(?:[0-9a-fA-F]{1,4}:){1,3}(?::[0-9a-fA-F]{1,4}){1,4}|(?:[0-9a-fA-F]{1,4}:){1,2}(?::[0-9a-fA-F]{1,4}){1,5}|[0-9a-fA-F]{1,4}:(?::[0-9a-fA-F]{1,4}){1,6}|:(?::[0-9a-fA-F]{1,4}){1,7}`),
		Type:        "IPV6",
		Description: "IPv6 addresses",
	},
	"email": {
		Name:        "email",
		Regex:       regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		Type:        "EMAIL",
		Description: "Email addresses",
	},
	"api_key": {
		Name:        "api_key",
		Regex:       regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|token|secret|password|passwd|pwd)["\s]*[:=]["\s]*[a-zA-Z0-9_\-]{8,}`),
		Type:        "SECRET",
		Description: "API keys, tokens and passwords in key=value form",
	},
	"aws_key": {
		Name:        "aws_key",
		Regex:       regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		Type:        "AWS_KEY",
		Description: "AWS access key IDs",
	},
	"jwt": {
		Name:        "jwt",
		Regex:       regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*\b`),
		Type:        "JWT",
		Description: "JWT tokens",
	},
	"private_key": {
		Name:        "private_key",
		Regex:       regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
		Type:        "PRIVATE_KEY",
		Description: "Private key headers",
	},
	"mac_address": {
		Name:        "mac_address",
		Regex:       regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}(?:[0-9A-Fa-f]{2})\b`),
		Type:        "MAC",
		Description: "MAC addresses",
	},
	"credit_card": {
		Name:        "credit_card",
		Regex:       regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
		Type:        "CC",
		Description: "Credit card numbers",
	},
	"uuid": {
		Name:        "uuid",
		Regex:       regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
		Type:        "UUID",
		Description: "UUIDs",
	},
}

// DefaultPatterns is the recommended selection: the common credential and
// PII shapes, leaving out the detectors prone to false positives on
// ordinary log content (MAC addresses, bare UUIDs, digit runs).
func DefaultPatterns() []string {
	return []string{"ipv4", "ipv6", "email", "api_key", "aws_key", "jwt", "private_key"}
}

// GetPatterns resolves names against BuiltInPatterns, silently ignoring
// unknown names.
func GetPatterns(names []string) []RedactionPattern {
	patterns := make([]RedactionPattern, 0, len(names))
	for _, name := range names {
		if pattern, ok := BuiltInPatterns[name]; ok {
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}
