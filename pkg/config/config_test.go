package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.Detection.MaxAttempts != 3 || cfg.BaseDelay() != 500*time.Millisecond || cfg.MaxDelay() != 10*time.Second {
		t.Fatalf("unexpected retry defaults %+v", cfg.Detection)
	}
	if cfg.Connected() {
		t.Fatal("no credentials configured, must not be connected")
	}

	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.LocalMode != policy.ModeRedact || settings.RedactionStrategy != redactor.StrategyFull {
		t.Fatalf("unexpected policy defaults %+v", settings)
	}
	if !settings.Enabled(pii.KindEmail) {
		t.Fatal("kinds must default to enabled")
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
detection:
  base_url: https://scan.example.com
  api_key: k-123
  org_id: org-1
  max_attempts: 5
  base_delay_ms: 250
policy:
  mode: BLOCK
  redaction_strategy: SMART
  enabled_types:
    EMAIL: false
    SSN: true
audit:
  dir: /tmp/audit
  chain_secret: sekrit
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != ":9090" || cfg.Detection.MaxAttempts != 5 || cfg.BaseDelay() != 250*time.Millisecond {
		t.Fatalf("values not read: %+v", cfg)
	}
	if !cfg.Connected() {
		t.Fatal("base_url and api_key set, must be connected")
	}

	settings, err := cfg.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !settings.Connected || settings.LocalMode != policy.ModeBlock || settings.RedactionStrategy != redactor.StrategySmart {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.Enabled(pii.KindEmail) {
		t.Fatal("EMAIL explicitly disabled")
	}
	if !settings.Enabled(pii.KindSSN) || !settings.Enabled(pii.KindPhone) {
		t.Fatal("SSN explicit and PHONE absent must both be enabled")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "policy:\n  mode: AUDIT_ONLY\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown mode must fail at load time")
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, "policy:\n  redaction_strategy: ROT13\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown strategy must fail at load time")
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, "policy:\n  enabled_types:\n    PASSPORT_NO: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown kind must fail at load time")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "policy: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml must fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("an explicitly named missing file must fail")
	}
}

func TestConnectedRequiresBothFields(t *testing.T) {
	cfg := &Config{}
	cfg.Detection.BaseURL = "https://scan.example.com"
	if cfg.Connected() {
		t.Fatal("base_url alone must not count as connected")
	}
	cfg.Detection.APIKey = "k-123"
	if !cfg.Connected() {
		t.Fatal("base_url plus api_key must count as connected")
	}
}
