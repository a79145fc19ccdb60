// Package audit emits per-evaluation audit events to pluggable sinks.
// Delivery is asynchronous and best-effort: a failing or slow sink can never
// change the decision returned to the caller.
package audit

import (
	"time"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
)

// EntityRecord is the audit view of one detected entity. Values are never
// included; the engine does not persist message content.
type EntityRecord struct {
	Kind       pii.Kind `json:"kind"`
	Confidence float64  `json:"confidence"`
}

// Event is the audit record emitted once per evaluation.
type Event struct {
	ID            string         `json:"id"`
	CorrID        string         `json:"corr_id"`
	Platform      string         `json:"platform"`
	URL           string         `json:"url"`
	Timestamp     time.Time      `json:"timestamp"`
	MessageLength int            `json:"message_length"`
	HasPII        bool           `json:"has_pii"`
	Entities      []EntityRecord `json:"entities"`
	RiskScore     int            `json:"risk_score"`
	Action        pii.Action     `json:"action"`
}

// RecordEntities converts detected entities to their audit view.
func RecordEntities(entities []pii.Entity) []EntityRecord {
	out := make([]EntityRecord, 0, len(entities))
	for _, e := range entities {
		out = append(out, EntityRecord{Kind: e.Kind, Confidence: e.Confidence})
	}
	return out
}
