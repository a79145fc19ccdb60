package pii

// Source identifies where a detection result came from.
type Source string

const (
	// SourceRemote means the remote service returned raw detections.
	SourceRemote Source = "REMOTE"
	// SourceRemoteDecision means the remote service returned a pre-computed
	// action instead of raw entities.
	SourceRemoteDecision Source = "REMOTE_DECISION"
	// SourceFallback means local pattern matching produced the result.
	SourceFallback Source = "FALLBACK"
)

// RemoteAction is the action vocabulary of a remote decision.
type RemoteAction string

const (
	RemoteAllow     RemoteAction = "allow"
	RemoteBlock     RemoteAction = "block"
	RemoteTransform RemoteAction = "transform"
)

// DetectionResult is the outcome of one detection pass over one message.
// Entities keep source order; callers must not assume they are sorted.
type DetectionResult struct {
	HasPII    bool     `json:"has_pii"`
	Entities  []Entity `json:"entities"`
	RiskScore int      `json:"risk_score"` // [0,100]
	Source    Source   `json:"source"`

	// Remote-decision fields, set only when Source == SourceRemoteDecision.
	RemoteAction    RemoteAction `json:"remote_action,omitempty"`
	RemoteReasons   []string     `json:"remote_reasons,omitempty"`
	TransformedText string       `json:"remote_transformed_text,omitempty"`
}
