// Package engine wires detection, risk scoring, policy resolution, and
// redaction into the single evaluate operation exposed to hosts. One call
// processes one message start to finish; there is no shared mutable state
// between concurrent calls.
package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nostalgicskinco/precheck-engine/pkg/audit"
	"github.com/nostalgicskinco/precheck-engine/pkg/detect"
	"github.com/nostalgicskinco/precheck-engine/pkg/patterns"
	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
)

var tracer = otel.Tracer("precheck-engine/engine")

// Detector abstracts the detection client so tests can substitute a fake.
type Detector interface {
	Scan(ctx context.Context, text string, settings policy.Settings) (pii.DetectionResult, detect.Meta, error)
}

// Origin describes where a message came from, for audit correlation.
// The engine never interprets it.
type Origin struct {
	Platform string
	URL      string
}

// Engine evaluates messages against policy. Construct with New.
type Engine struct {
	detector Detector
	auditor  *audit.Emitter
	logger   *log.Logger
}

// New creates an engine. detector may be nil, in which case every message is
// evaluated with local pattern matching only. auditor may be nil to disable
// audit emission.
func New(detector Detector, auditor *audit.Emitter, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{detector: detector, auditor: auditor, logger: logger}
}

// Evaluate decides whether the message is allowed, redacted, or blocked.
// It returns an error only when ctx is cancelled; detection failures are
// absorbed into fallback results upstream.
func (e *Engine) Evaluate(ctx context.Context, text string, settings policy.Settings) (pii.Decision, error) {
	return e.EvaluateOrigin(ctx, text, settings, Origin{})
}

// EvaluateOrigin is Evaluate with origin metadata attached to the audit
// event.
func (e *Engine) EvaluateOrigin(ctx context.Context, text string, settings policy.Settings, origin Origin) (pii.Decision, error) {
	ctx, span := tracer.Start(ctx, "pii.evaluate")
	defer span.End()

	var (
		result pii.DetectionResult
		meta   detect.Meta
		err    error
	)
	if settings.Connected && e.detector != nil {
		result, meta, err = e.detector.Scan(ctx, text, settings)
		if err != nil {
			// Cancelled: the call produces no result, by contract.
			return pii.Decision{}, err
		}
	} else {
		result = patterns.Detect(text)
		meta = detect.Meta{CorrID: uuid.New().String(), Termination: detect.TerminationSuccess}
	}

	decision := policy.Resolve(text, result, settings)

	span.SetAttributes(
		attribute.String("pii.corr_id", meta.CorrID),
		attribute.String("pii.source", string(result.Source)),
		attribute.Bool("pii.has_pii", result.HasPII),
		attribute.Int("pii.risk_score", result.RiskScore),
		attribute.String("pii.action", string(decision.Action)),
	)

	e.logger.Debug("message evaluated",
		"corr_id", meta.CorrID, "source", result.Source,
		"termination", meta.Termination, "risk_score", result.RiskScore,
		"action", decision.Action)

	e.emit(text, result, decision, meta, origin)
	return decision, nil
}

// emit queues the audit event; it never blocks and never fails the call.
func (e *Engine) emit(text string, result pii.DetectionResult, decision pii.Decision, meta detect.Meta, origin Origin) {
	if e.auditor == nil {
		return
	}
	e.auditor.Emit(audit.Event{
		ID:            uuid.New().String(),
		CorrID:        meta.CorrID,
		Platform:      origin.Platform,
		URL:           origin.URL,
		Timestamp:     time.Now().UTC(),
		MessageLength: len(text),
		HasPII:        result.HasPII,
		Entities:      audit.RecordEntities(result.Entities),
		RiskScore:     result.RiskScore,
		Action:        decision.Action,
	})
}
