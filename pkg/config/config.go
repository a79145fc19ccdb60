// Package config loads the engine configuration file and converts its policy
// section into resolved per-call settings. Unknown mode, strategy, or kind
// strings are rejected here, at the boundary, never deep inside the engine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

// Config is the full configuration of precheckd.
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	Detection  DetectionConfig `yaml:"detection"`
	Policy     PolicyConfig    `yaml:"policy"`
	Audit      AuditConfig     `yaml:"audit"`
}

// DetectionConfig holds remote scanning service settings.
type DetectionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	OrgID       string `yaml:"org_id"`
	Tool        string `yaml:"tool"`
	Scope       string `yaml:"scope"`
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelayMS int    `yaml:"base_delay_ms"`
	MaxDelayMS  int    `yaml:"max_delay_ms"`
}

// PolicyConfig is the on-disk shape of the default policy.
type PolicyConfig struct {
	Mode              string          `yaml:"mode"`
	RedactionStrategy string          `yaml:"redaction_strategy"`
	EnabledTypes      map[string]bool `yaml:"enabled_types"`
}

// AuditConfig selects which audit sinks are active. Empty fields disable the
// corresponding sink.
type AuditConfig struct {
	Dir         string        `yaml:"dir"`
	ChainSecret string        `yaml:"chain_secret"`
	WebhookURL  string        `yaml:"webhook_url"`
	SQLitePath  string        `yaml:"sqlite_path"`
	S3          AuditS3Config `yaml:"s3"`
}

// AuditS3Config configures the S3 archive sink.
type AuditS3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads a config YAML file. Returns defaults if path is empty.
// Returns an error if the file exists but is invalid.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyDefaults(cfg)

	// Surface bad enum strings at load time, not per message.
	if _, err := cfg.Settings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Detection.Tool == "" {
		cfg.Detection.Tool = "precheck-engine"
	}
	if cfg.Detection.Scope == "" {
		cfg.Detection.Scope = "message"
	}
	if cfg.Detection.MaxAttempts == 0 {
		cfg.Detection.MaxAttempts = 3
	}
	if cfg.Detection.BaseDelayMS == 0 {
		cfg.Detection.BaseDelayMS = 500
	}
	if cfg.Detection.MaxDelayMS == 0 {
		cfg.Detection.MaxDelayMS = 10000
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = string(policy.ModeRedact)
	}
	if cfg.Policy.RedactionStrategy == "" {
		cfg.Policy.RedactionStrategy = string(redactor.StrategyFull)
	}
}

// Connected reports whether a remote credential is configured.
func (c *Config) Connected() bool {
	return c.Detection.BaseURL != "" && c.Detection.APIKey != ""
}

// Settings resolves the policy section into per-call settings.
func (c *Config) Settings() (policy.Settings, error) {
	mode, err := policy.ParseMode(c.Policy.Mode)
	if err != nil {
		return policy.Settings{}, err
	}
	strategy, err := redactor.ParseStrategy(c.Policy.RedactionStrategy)
	if err != nil {
		return policy.Settings{}, err
	}

	var enabled map[pii.Kind]bool
	if len(c.Policy.EnabledTypes) > 0 {
		enabled = make(map[pii.Kind]bool, len(c.Policy.EnabledTypes))
		for name, on := range c.Policy.EnabledTypes {
			kind, err := pii.ParseKind(name)
			if err != nil {
				return policy.Settings{}, err
			}
			enabled[kind] = on
		}
	}

	return policy.Settings{
		Connected:         c.Connected(),
		LocalMode:         mode,
		EnabledTypes:      enabled,
		RedactionStrategy: strategy,
	}, nil
}

// BaseDelay returns the detection retry base delay.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Detection.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the detection retry delay cap.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Detection.MaxDelayMS) * time.Millisecond
}
