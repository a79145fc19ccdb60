package pii

// Action is the engine's final verdict for a message.
type Action string

const (
	ActionAllow  Action = "ALLOW"
	ActionRedact Action = "REDACT"
	ActionBlock  Action = "BLOCK"
)

// RedactionEntry records one substitution made by the redaction engine.
// Entries follow processing order (descending start offset); callers that
// need message order must re-sort by Span.
type RedactionEntry struct {
	Kind     Kind   `json:"kind"`
	Original string `json:"original"`
	Redacted string `json:"redacted"`
	Strategy string `json:"strategy"`
	Span     *Span  `json:"span,omitempty"`

	// Note is set when an entity was skipped instead of replaced
	// (e.g. its span fell outside the current text).
	Note string `json:"note,omitempty"`
}

// Decision is the final verdict plus everything needed for audit.
// RedactedText and RedactionLog are present only when Action == ActionRedact.
type Decision struct {
	Action           Action           `json:"action"`
	Reason           string           `json:"reason"`
	RedactedText     string           `json:"redacted_text,omitempty"`
	RedactionLog     []RedactionEntry `json:"redaction_log,omitempty"`
	RelevantEntities []Entity         `json:"relevant_entities,omitempty"`
}
