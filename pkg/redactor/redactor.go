// Package redactor rewrites a message given a set of detected entities and a
// strategy, producing the redacted text plus a structured log of every
// substitution. It must stay correct when spans overlap, arrive unsorted, or
// come from heterogeneous sources (remote API vs local regex).
package redactor

import (
	"sort"
	"strings"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
)

// Redact applies the strategy to every entity and returns the rewritten text
// with a log entry per entity. It never fails: entities with unusable spans
// are skipped with a note entry instead of an error.
//
// Spanned entities are replaced in descending start order so earlier
// replacements never invalidate the offsets of later ones. Spanless entities
// are replaced by first-occurrence substring match on the current text,
// lower precision than span-based replacement, and only applied when no
// spanned entity overlaps the occurrence.
func Redact(text string, entities []pii.Entity, strategy Strategy) (string, []pii.RedactionEntry) {
	var spanned, spanless []pii.Entity
	for _, e := range entities {
		if e.Span != nil {
			spanned = append(spanned, e)
		} else {
			spanless = append(spanless, e)
		}
	}

	sort.SliceStable(spanned, func(i, j int) bool {
		return spanned[i].Span.Start > spanned[j].Span.Start
	})

	var log []pii.RedactionEntry
	result := text

	for _, e := range spanned {
		sp := *e.Span
		if sp.Start < 0 || sp.End > len(text) || sp.Start >= sp.End {
			log = append(log, pii.RedactionEntry{
				Kind:     e.Kind,
				Original: e.Value,
				Strategy: string(strategy),
				Span:     e.Span,
				Note:     "span out of bounds, entity skipped",
			})
			continue
		}

		original := e.Value
		if original == "" {
			// Remote detections may carry a position but no literal.
			original = text[sp.Start:sp.End]
		}

		redacted := replacement(e.Kind, original, strategy)
		result = result[:sp.Start] + redacted + result[sp.End:]
		log = append(log, pii.RedactionEntry{
			Kind:     e.Kind,
			Original: original,
			Redacted: redacted,
			Strategy: string(strategy),
			Span:     e.Span,
		})
	}

	for _, e := range spanless {
		log = append(log, redactByValue(text, &result, e, spanned, strategy))
	}

	return result, log
}

// redactByValue replaces the first occurrence of e.Value in the current
// text. The occurrence is located in the original text first so overlap
// with a spanned entity can be detected in stable coordinates.
func redactByValue(original string, current *string, e pii.Entity, spanned []pii.Entity, strategy Strategy) pii.RedactionEntry {
	entry := pii.RedactionEntry{
		Kind:     e.Kind,
		Original: e.Value,
		Strategy: string(strategy),
	}

	if e.Value == "" {
		entry.Note = "no span and no value, entity skipped"
		return entry
	}

	if at := strings.Index(original, e.Value); at >= 0 {
		occ := pii.Span{Start: at, End: at + len(e.Value)}
		for _, s := range spanned {
			if s.Span.Overlaps(occ) {
				entry.Note = "value overlaps a spanned entity, entity skipped"
				return entry
			}
		}
	}

	at := strings.Index(*current, e.Value)
	if at < 0 {
		entry.Note = "value not found in text, entity skipped"
		return entry
	}

	redacted := replacement(e.Kind, e.Value, strategy)
	*current = (*current)[:at] + redacted + (*current)[at+len(e.Value):]
	entry.Redacted = redacted
	return entry
}
