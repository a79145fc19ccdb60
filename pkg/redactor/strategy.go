package redactor

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
)

// Strategy selects how an entity's value is rewritten.
type Strategy string

const (
	// StrategyFull replaces the value with a fixed per-kind placeholder.
	StrategyFull Strategy = "FULL"
	// StrategyPartial masks the value while preserving its structure.
	StrategyPartial Strategy = "PARTIAL"
	// StrategyHash replaces the value with a stable non-cryptographic
	// hash marker, usable for tracking repeated values.
	StrategyHash Strategy = "HASH"
	// StrategySmart keeps the low-sensitivity part of the value and
	// masks the rest, per kind.
	StrategySmart Strategy = "SMART"
)

// ParseStrategy rejects unknown strategy strings at the settings boundary.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFull, StrategyPartial, StrategyHash, StrategySmart:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("redactor: unknown strategy %q", s)
}

// maskRune is the character used for structure-preserving masking.
const maskRune = "•"

// replacement computes the redacted form of value for the given kind and
// strategy.
func replacement(kind pii.Kind, value string, strategy Strategy) string {
	switch strategy {
	case StrategyFull:
		return fullPlaceholder(kind)
	case StrategyPartial:
		return partialMask(kind, value)
	case StrategyHash:
		return hashMarker(kind, value)
	case StrategySmart:
		return smartMask(kind, value)
	}
	return fullPlaceholder(kind)
}

func fullPlaceholder(kind pii.Kind) string {
	if kind == pii.KindUnknown || kind == "" {
		return "[REDACTED]"
	}
	return "[REDACTED_" + string(kind) + "]"
}

// hashMarker is [PRE_xxxxxxxx] with an FNV-1a 32-bit hash. FNV is not
// disclosure-safe; it is only meant to let one value be tracked across a
// session without revealing it.
func hashMarker(kind pii.Kind, value string) string {
	h := fnv.New32a()
	h.Write([]byte(value))
	prefix := string(kind)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("[%s_%08x]", prefix, h.Sum32())
}

func partialMask(kind pii.Kind, value string) string {
	switch kind {
	case pii.KindPhone, pii.KindSSN:
		return maskDigits(value)
	case pii.KindEmail:
		return partialEmail(value)
	case pii.KindCreditCard:
		return partialCard(value)
	}
	return partialGeneric(value)
}

func smartMask(kind pii.Kind, value string) string {
	switch kind {
	case pii.KindEmail:
		local, domain, ok := strings.Cut(value, "@")
		if !ok {
			return partialGeneric(value)
		}
		return local + "@" + maskEmailDomain(domain)
	case pii.KindPhone:
		return keepLeadingDigits(value, 3)
	case pii.KindSSN, pii.KindCreditCard:
		return keepTrailingDigits(value, 4)
	}
	return partialMask(kind, value)
}

// maskDigits replaces every digit, keeping separators intact.
func maskDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteString(maskRune)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// partialEmail masks local part, domain name, and TLD independently, each
// capped at three mask characters: "john@example.com" → "•••@•••.•••".
func partialEmail(value string) string {
	local, domain, ok := strings.Cut(value, "@")
	if !ok {
		return partialGeneric(value)
	}
	return maskSegment(local) + "@" + maskEmailDomain(domain)
}

func maskEmailDomain(domain string) string {
	dot := strings.LastIndex(domain, ".")
	if dot < 0 {
		return maskSegment(domain)
	}
	return maskSegment(domain[:dot]) + "." + maskSegment(domain[dot+1:])
}

func maskSegment(s string) string {
	n := len(s)
	if n > 3 {
		n = 3
	}
	return strings.Repeat(maskRune, n)
}

// partialCard keeps the last four digits and masks the rest in groups of
// four: "4111111111111111" → "•••• •••• •••• 1111".
func partialCard(value string) string {
	digits := digitsOf(value)
	if len(digits) <= 4 {
		return strings.Repeat(maskRune, len(digits))
	}

	masked := len(digits) - 4
	var groups []string
	for masked > 0 {
		n := 4
		if masked < 4 {
			n = masked
		}
		groups = append(groups, strings.Repeat(maskRune, n))
		masked -= n
	}
	groups = append(groups, digits[len(digits)-4:])
	return strings.Join(groups, " ")
}

// partialGeneric keeps the first and last two characters when the value is
// long enough to survive that disclosure; short values are masked entirely.
func partialGeneric(value string) string {
	if len(value) > 4 {
		return value[:2] + strings.Repeat(maskRune, len(value)-4) + value[len(value)-2:]
	}
	return strings.Repeat(maskRune, len(value))
}

// keepTrailingDigits masks all digits except the last n, preserving
// separators: SSN "123-45-6789" → "•••-••-6789".
func keepTrailingDigits(value string, n int) string {
	total := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			total++
		}
	}

	seen := 0
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			seen++
			if seen > total-n {
				b.WriteRune(r)
			} else {
				b.WriteString(maskRune)
			}
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keepLeadingDigits keeps the first n digits (country/area code) and masks
// the rest: "(555) 123-4567" → "(555) •••-••••".
func keepLeadingDigits(value string, n int) string {
	seen := 0
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= n {
				b.WriteRune(r)
			} else {
				b.WriteString(maskRune)
			}
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOf(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
