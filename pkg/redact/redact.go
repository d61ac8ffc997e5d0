// Package redact masks personal data (phone numbers, emails, UPI handles)
// before it reaches logs or call artifacts. Prices are never masked.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

type rule struct {
	re    *regexp.Regexp
	label string
}

// Order matters: UPI handles look like emails without a TLD, and Indian
// mobiles are masked before the generic long-digit rule.
var rules = []rule{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._\-]{2,}@(ok[a-z]+|ybl|paytm|upi|ibl|axl|apl)\b`), "[REDACTED_UPI]"},
	{regexp.MustCompile(`(?:\+91[\s\-]?)?\b[6-9]\d{4}[\s\-]?\d{5}\b`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`), "[REDACTED_PHONE]"},
}

func SetEnabled(v bool) { enabled.Store(v) }

func Enabled() bool { return enabled.Load() }

// Text masks personal data in free text when redaction is on.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	for _, r := range rules {
		in = r.re.ReplaceAllString(in, r.label)
	}
	return in
}

// Phone keeps the last four digits of a dialled number, e.g. "+91******3210",
// so operators can still tell calls apart.
func Phone(number string) string {
	if !enabled.Load() {
		return number
	}
	var digits int
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 4 {
		return number
	}
	keepFrom := digits - 4
	var b strings.Builder
	var seen int
	for i, r := range number {
		switch {
		case r < '0' || r > '9':
			if r == '+' && i == 0 {
				b.WriteRune(r)
			}
		case strings.HasPrefix(number, "+91") && seen < 2:
			b.WriteRune(r)
			seen++
		case seen >= keepFrom:
			b.WriteRune(r)
			seen++
		default:
			b.WriteByte('*')
			seen++
		}
	}
	return b.String()
}
