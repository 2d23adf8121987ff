// Copyright 2026 © The Rolegate Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import "regexp"

type piiPattern struct {
	pattern *regexp.Regexp
	mask    string
}

// Order matters: more specific patterns first.
var piiPatterns = []piiPattern{
	{regexp.MustCompile(`\bSA[0-9]{2}[0-9A-Z]{20}\b`), "[IBAN]"},
	{regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`), "[CARD]"},
	{regexp.MustCompile(`\b[12][0-9]{9}\b`), "[NATIONAL_ID]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\+?966[-\s]?5[0-9]{8}\b|\b05[0-9]{8}\b`), "[PHONE]"},
}

// MaskPII replaces identifiers embedded in string values (emails, phone
// numbers, national ids, IBANs, card numbers) with placeholders. The result
// is a fixed point, so applying it twice is a no-op.
func MaskPII() Func {
	return func(raw map[string]any) map[string]any {
		out, _ := maskValue(Clone(raw)).(map[string]any)
		if out == nil {
			out = map[string]any{}
		}
		return out
	}
}

// MaskString masks identifiers in s. A mask can open a word boundary next
// to digits it left behind, so passes repeat until nothing changes. Every
// replacement removes digits or an @ and masks carry neither, which bounds
// the loop.
func MaskString(s string) string {
	for {
		next := s
		for _, p := range piiPatterns {
			next = p.pattern.ReplaceAllString(next, p.mask)
		}
		if next == s {
			return s
		}
		s = next
	}
}

func maskValue(v any) any {
	switch val := v.(type) {
	case string:
		return MaskString(val)
	case map[string]any:
		for k, inner := range val {
			val[k] = maskValue(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = maskValue(inner)
		}
		return val
	case []string:
		for i, inner := range val {
			val[i] = MaskString(inner)
		}
		return val
	default:
		return v
	}
}
