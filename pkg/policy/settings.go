// Package policy holds the resolved per-call settings and the two-tier
// decision procedure that turns a detection result into a verdict.
package policy

import (
	"fmt"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

// Mode is the local policy mode applied when no remote decision governs.
type Mode string

const (
	ModeBlock  Mode = "BLOCK"
	ModeRedact Mode = "REDACT"
	ModeWarn   Mode = "WARN"
	ModeAllow  Mode = "ALLOW"
)

// ParseMode rejects unknown mode strings at the settings boundary.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBlock, ModeRedact, ModeWarn, ModeAllow:
		return Mode(s), nil
	}
	return "", fmt.Errorf("policy: unknown mode %q", s)
}

// Settings is the resolved configuration for one evaluation. It is loaded
// once per call and treated as immutable input; the engine keeps no
// process-wide settings state.
type Settings struct {
	// Connected is true iff a remote credential is configured. It controls
	// how entities are detected, not who decides. Local policy still
	// governs unless the remote explicitly returns a decision.
	Connected bool

	LocalMode Mode

	// EnabledTypes maps entity kinds to enablement. Absent kinds default to
	// enabled: the filter is a denylist, so unrecognized sensitive kinds
	// are never silently passed.
	EnabledTypes map[pii.Kind]bool

	RedactionStrategy redactor.Strategy
}

// Enabled reports whether a kind participates in local policy.
func (s Settings) Enabled(kind pii.Kind) bool {
	enabled, ok := s.EnabledTypes[kind]
	if !ok {
		return true
	}
	return enabled
}
