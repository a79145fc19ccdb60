package policy

import (
	"strings"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

// Resolve turns one detection result plus settings into a final decision.
// Each call is one transition; nothing is persisted between calls.
//
// Tier 1: a remote decision, when present, is authoritative and bypasses
// local policy entirely. Tier 2: local filtering by enabled kinds, then
// dispatch on the local mode.
func Resolve(text string, result pii.DetectionResult, settings Settings) pii.Decision {
	if result.Source == pii.SourceRemoteDecision {
		switch result.RemoteAction {
		case pii.RemoteAllow:
			return pii.Decision{
				Action: pii.ActionAllow,
				Reason: remoteReason(result, "allowed by remote decision"),
			}
		case pii.RemoteBlock:
			return pii.Decision{
				Action:           pii.ActionBlock,
				Reason:           remoteReason(result, "blocked by remote decision"),
				RelevantEntities: result.Entities,
			}
		case pii.RemoteTransform:
			if result.TransformedText != "" {
				return pii.Decision{
					Action:           pii.ActionRedact,
					Reason:           remoteReason(result, "transformed by remote decision"),
					RedactedText:     result.TransformedText,
					RedactionLog:     remoteLog(result),
					RelevantEntities: result.Entities,
				}
			}
			// Transform without a usable payload: the client has already
			// degraded to fallback detection of the original text. The
			// transform intent still stands, so the entities are redacted
			// with the configured strategy no matter what the local mode
			// says. A remote transform intent never silently becomes allow.
			relevant := enabledEntities(result.Entities, settings)
			if len(relevant) == 0 {
				return pii.Decision{
					Action: pii.ActionAllow,
					Reason: remoteReason(result, "transform with no relevant PII"),
				}
			}
			redacted, log := redactor.Redact(text, relevant, settings.RedactionStrategy)
			return pii.Decision{
				Action:           pii.ActionRedact,
				Reason:           remoteReason(result, "transformed by remote decision"),
				RedactedText:     redacted,
				RedactionLog:     log,
				RelevantEntities: relevant,
			}
		}
	}

	relevant := enabledEntities(result.Entities, settings)

	if len(relevant) == 0 {
		return pii.Decision{Action: pii.ActionAllow, Reason: "no relevant PII"}
	}

	switch settings.LocalMode {
	case ModeBlock:
		return pii.Decision{
			Action:           pii.ActionBlock,
			Reason:           "blocked: " + kindList(relevant),
			RelevantEntities: relevant,
		}
	case ModeRedact:
		redacted, log := redactor.Redact(text, relevant, settings.RedactionStrategy)
		return pii.Decision{
			Action:           pii.ActionRedact,
			Reason:           "redacted: " + kindList(relevant),
			RedactedText:     redacted,
			RedactionLog:     log,
			RelevantEntities: relevant,
		}
	case ModeWarn:
		return pii.Decision{
			Action:           pii.ActionAllow,
			Reason:           "allowed with warning",
			RelevantEntities: relevant,
		}
	}

	return pii.Decision{
		Action:           pii.ActionAllow,
		Reason:           "allowed by policy",
		RelevantEntities: relevant,
	}
}

// enabledEntities filters entities down to the kinds local policy acts on.
func enabledEntities(entities []pii.Entity, settings Settings) []pii.Entity {
	relevant := make([]pii.Entity, 0, len(entities))
	for _, e := range entities {
		if settings.Enabled(e.Kind) {
			relevant = append(relevant, e)
		}
	}
	return relevant
}

// remoteReason joins the remote reasons, falling back to a fixed phrase
// when the service sent none.
func remoteReason(result pii.DetectionResult, fallback string) string {
	if len(result.RemoteReasons) == 0 {
		return fallback
	}
	return strings.Join(result.RemoteReasons, "; ")
}

// remoteLog derives redaction-log entries from remote reasons. The remote
// service does not disclose what it rewrote, only why.
func remoteLog(result pii.DetectionResult) []pii.RedactionEntry {
	log := make([]pii.RedactionEntry, 0, len(result.RemoteReasons))
	for _, reason := range result.RemoteReasons {
		log = append(log, pii.RedactionEntry{
			Kind:     pii.KindUnknown,
			Strategy: "remote",
			Note:     reason,
		})
	}
	return log
}

// kindList renders the distinct kinds among entities in first-seen order.
func kindList(entities []pii.Entity) string {
	seen := make(map[pii.Kind]bool, len(entities))
	var kinds []string
	for _, e := range entities {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			kinds = append(kinds, string(e.Kind))
		}
	}
	return strings.Join(kinds, ", ")
}
