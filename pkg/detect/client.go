// Package detect calls the remote scanning service with classified
// retry/backoff and degrades to local pattern matching when the service is
// unavailable. Callers never see a detection failure; the worst case is a
// lower-recall fallback result.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nostalgicskinco/precheck-engine/pkg/patterns"
	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
)

var tracer = otel.Tracer("precheck-engine/detect")

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
	defaultTimeout     = 15 * time.Second
)

// Config holds detection service connection settings.
type Config struct {
	BaseURL string // e.g. https://scan.example.com
	APIKey  string // sent as X-Governs-Key when set
	OrgID   string // sent as X-Org-Id when set
	Tool    string // reported in the request body
	Scope   string

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client scans messages against the remote service. The zero value is not
// usable; construct with New.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger

	// sleep waits between attempts; replaced in tests with a recording fake.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a detection client. Zero config fields get defaults.
func New(cfg Config, logger *log.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Meta describes how a scan concluded, for audit and logging.
type Meta struct {
	CorrID      string
	Termination Termination
	Attempts    int
}

// Scan runs one detection pass over text. It returns an error only when ctx
// is cancelled; every remote failure degrades to the pattern matcher.
//
// A fresh correlation ID is generated per call and reused across the retries
// of that call. Retries are strictly sequential, never parallel, so the
// remote side sees one logical request.
func (c *Client) Scan(ctx context.Context, text string, settings policy.Settings) (pii.DetectionResult, Meta, error) {
	ctx, span := tracer.Start(ctx, "pii.scan")
	defer span.End()

	meta := Meta{CorrID: uuid.New().String()}
	span.SetAttributes(attribute.String("pii.corr_id", meta.CorrID))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxInterval = c.cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		meta.Attempts = attempt

		result, class, err := c.attempt(ctx, text, settings, meta.CorrID)
		if err == nil {
			meta.Termination = TerminationSuccess
			span.SetAttributes(attribute.Int("pii.attempts", attempt))
			return result, meta, nil
		}
		if ctx.Err() != nil {
			meta.Termination = TerminationCancelled
			return pii.DetectionResult{}, meta, ctx.Err()
		}
		if class == failureTerminal {
			c.logger.Warn("detection attempt failed, falling back",
				"corr_id", meta.CorrID, "attempt", attempt, "err", err)
			meta.Termination = TerminationTerminal
			return c.fallback(text), meta, nil
		}

		c.logger.Debug("detection attempt failed",
			"corr_id", meta.CorrID, "attempt", attempt, "err", err)
		if attempt < c.cfg.MaxAttempts {
			if err := c.sleep(ctx, bo.NextBackOff()); err != nil {
				meta.Termination = TerminationCancelled
				return pii.DetectionResult{}, meta, err
			}
		}
	}

	c.logger.Warn("detection attempts exhausted, falling back",
		"corr_id", meta.CorrID, "attempts", c.cfg.MaxAttempts)
	meta.Termination = TerminationExhausted
	return c.fallback(text), meta, nil
}

// fallback runs the local pattern matcher; it cannot fail.
func (c *Client) fallback(text string) pii.DetectionResult {
	return patterns.Detect(text)
}

// attempt performs one POST to {base_url}/precheck. The returned class is
// meaningful only when err is non-nil.
func (c *Client) attempt(ctx context.Context, text string, settings policy.Settings, corrID string) (pii.DetectionResult, string, error) {
	body, err := json.Marshal(precheckRequest{
		Tool:         c.cfg.Tool,
		Scope:        c.cfg.Scope,
		RawText:      text,
		Tags:         []string{},
		CorrID:       corrID,
		PolicyConfig: policyConfig(settings),
	})
	if err != nil {
		return pii.DetectionResult{}, failureTerminal, fmt.Errorf("detect: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/precheck", bytes.NewReader(body))
	if err != nil {
		return pii.DetectionResult{}, failureTerminal, fmt.Errorf("detect: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Governs-Key", c.cfg.APIKey)
	}
	if c.cfg.OrgID != "" {
		req.Header.Set("X-Org-Id", c.cfg.OrgID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pii.DetectionResult{}, failureRetryable, fmt.Errorf("detect: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return pii.DetectionResult{}, classifyStatus(resp.StatusCode),
			fmt.Errorf("detect: service returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pii.DetectionResult{}, failureRetryable, fmt.Errorf("detect: read response: %w", err)
	}

	result, err := c.parseResponse(text, raw)
	if err != nil {
		return pii.DetectionResult{}, failureTerminal, err
	}
	return result, "", nil
}

// sleepCtx waits without holding a thread, honoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
