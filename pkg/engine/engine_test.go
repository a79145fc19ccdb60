package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nostalgicskinco/precheck-engine/pkg/audit"
	"github.com/nostalgicskinco/precheck-engine/pkg/detect"
	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

// fakeDetector returns a canned result and records whether it was called.
type fakeDetector struct {
	result pii.DetectionResult
	meta   detect.Meta
	err    error
	calls  int
}

func (d *fakeDetector) Scan(context.Context, string, policy.Settings) (pii.DetectionResult, detect.Meta, error) {
	d.calls++
	return d.result, d.meta, d.err
}

func testLogger() *log.Logger { return log.New(io.Discard) }

func TestEvaluateUsesLocalPatternsWhenDisconnected(t *testing.T) {
	det := &fakeDetector{}
	e := New(det, nil, testLogger())

	settings := policy.Settings{Connected: false, LocalMode: policy.ModeRedact, RedactionStrategy: redactor.StrategyFull}
	decision, err := e.Evaluate(context.Background(), "mail john@example.com", settings)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if det.calls != 0 {
		t.Fatal("detector must not be called when disconnected")
	}
	if decision.Action != pii.ActionRedact {
		t.Fatalf("expected REDACT, got %s", decision.Action)
	}
	if decision.RedactedText != "mail [REDACTED_EMAIL]" {
		t.Fatalf("unexpected redaction %q", decision.RedactedText)
	}
}

func TestEvaluateUsesDetectorWhenConnected(t *testing.T) {
	det := &fakeDetector{
		result: pii.DetectionResult{
			HasPII:       true,
			Source:       pii.SourceRemoteDecision,
			RemoteAction: pii.RemoteBlock,
		},
		meta: detect.Meta{CorrID: "c-1", Termination: detect.TerminationSuccess, Attempts: 1},
	}
	e := New(det, nil, testLogger())

	settings := policy.Settings{Connected: true, LocalMode: policy.ModeAllow}
	decision, err := e.Evaluate(context.Background(), "anything", settings)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if det.calls != 1 {
		t.Fatalf("expected one scan, got %d", det.calls)
	}
	// Remote authority wins even over a permissive local mode.
	if decision.Action != pii.ActionBlock {
		t.Fatalf("expected BLOCK, got %s", decision.Action)
	}
}

func TestEvaluateNilDetectorFallsBackEvenWhenConnected(t *testing.T) {
	e := New(nil, nil, testLogger())

	settings := policy.Settings{Connected: true, LocalMode: policy.ModeBlock}
	decision, err := e.Evaluate(context.Background(), "SSN 123-45-6789", settings)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Action != pii.ActionBlock {
		t.Fatalf("expected BLOCK from local scan, got %s", decision.Action)
	}
}

func TestEvaluatePropagatesCancellation(t *testing.T) {
	det := &fakeDetector{err: context.Canceled}
	e := New(det, nil, testLogger())

	settings := policy.Settings{Connected: true}
	_, err := e.Evaluate(context.Background(), "anything", settings)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// captureSink records audit events delivered by the emitter.
type captureSink struct {
	events chan audit.Event
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Deliver(_ context.Context, ev audit.Event) error {
	s.events <- ev
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func TestEvaluateEmitsAuditEvent(t *testing.T) {
	sink := &captureSink{events: make(chan audit.Event, 1)}
	em := audit.NewEmitter(audit.EmitterConfig{QueueSize: 4, Workers: 1}, []audit.Sink{sink}, testLogger())
	defer em.Close(context.Background())

	e := New(nil, em, testLogger())
	text := "mail john@example.com"
	if _, err := e.EvaluateOrigin(context.Background(), text,
		policy.Settings{LocalMode: policy.ModeRedact, RedactionStrategy: redactor.StrategyFull},
		Origin{Platform: "slack", URL: "https://s/1"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	ev := <-sink.events
	if ev.ID == "" || ev.CorrID == "" {
		t.Fatalf("missing identifiers: %+v", ev)
	}
	if ev.Platform != "slack" || ev.URL != "https://s/1" {
		t.Fatalf("origin lost: %+v", ev)
	}
	if ev.MessageLength != len(text) || !ev.HasPII || ev.Action != pii.ActionRedact {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.Entities) != 1 || ev.Entities[0].Kind != pii.KindEmail {
		t.Fatalf("entity records lost: %+v", ev.Entities)
	}
}

func TestEvaluateCleanTextAllows(t *testing.T) {
	e := New(nil, nil, testLogger())

	decision, err := e.Evaluate(context.Background(), "nothing sensitive here",
		policy.Settings{LocalMode: policy.ModeBlock})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if decision.Action != pii.ActionAllow {
		t.Fatalf("expected ALLOW, got %s", decision.Action)
	}
}
