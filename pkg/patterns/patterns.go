// Package patterns is the local fallback detector: fixed regular expressions
// for the PII classes the engine can recognize without a remote service.
// Detection is pure, never fails, and never blocks.
package patterns

import (
	"regexp"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/risk"
)

var (
	// Email: standard pattern
	emailRegex = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	// US phone: (XXX) XXX-XXXX, XXX-XXX-XXXX, XXX.XXX.XXXX
	phoneRegex = regexp.MustCompile(`\b(?:\(\d{3}\)\s?|\d{3}[-.])\d{3}[-.]?\d{4}\b`)

	// SSN: XXX-XX-XXXX
	ssnRegex = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	// Credit card: 13-19 digits with optional spaces/dashes (Visa, MC, Amex, Discover)
	ccRegex = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// patternClass ties a regex to its kind and fixed confidence. Confidence
// reflects pattern specificity, not per-instance certainty: an SSN-shaped
// string is far more likely to be an SSN than a 13-digit run is to be a card.
type patternClass struct {
	kind       pii.Kind
	re         *regexp.Regexp
	confidence float64
}

var classes = []patternClass{
	{pii.KindEmail, emailRegex, 0.85},
	{pii.KindPhone, phoneRegex, 0.80},
	{pii.KindSSN, ssnRegex, 0.95},
	{pii.KindCreditCard, ccRegex, 0.75},
}

// Detect scans text with every pattern class and returns a fallback
// detection result. Every entity carries a populated span.
//
// Overlap between classes is not de-duplicated: a substring matched by two
// patterns produces two entities. That is a known limitation of the regex
// tier, surfaced rather than silently masked.
func Detect(text string) pii.DetectionResult {
	var entities []pii.Entity

	for _, c := range classes {
		for _, loc := range c.re.FindAllStringIndex(text, -1) {
			entities = append(entities, pii.Entity{
				Kind:       c.kind,
				Value:      text[loc[0]:loc[1]],
				Confidence: c.confidence,
				Span:       &pii.Span{Start: loc[0], End: loc[1]},
			})
		}
	}

	return pii.DetectionResult{
		HasPII:    len(entities) > 0,
		Entities:  entities,
		RiskScore: risk.Score(entities),
		Source:    pii.SourceFallback,
	}
}
