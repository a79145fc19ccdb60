// Package server exposes the engine's evaluate operation over HTTP to the
// host UI layer. It is a thin shim: parse, evaluate, encode.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/nostalgicskinco/precheck-engine/pkg/engine"
	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/redactor"
)

// statusClientClosedRequest is nginx's non-standard code for a request the
// client abandoned; net/http has no constant for it.
const statusClientClosedRequest = 499

// Config holds server wiring.
type Config struct {
	Engine *engine.Engine

	// Settings returns the current resolved settings; a provider function
	// so config reloads take effect without restarting the server.
	Settings func() policy.Settings

	Logger *log.Logger
}

// evaluateRequest is the inbound message evaluation call.
type evaluateRequest struct {
	Text     string `json:"text"`
	Platform string `json:"platform,omitempty"`
	URL      string `json:"url,omitempty"`

	// Optional per-request overrides of the configured policy.
	Mode         string          `json:"mode,omitempty"`
	Strategy     string          `json:"strategy,omitempty"`
	EnabledTypes map[string]bool `json:"enabled_types,omitempty"`
}

// Handler returns the HTTP handler for precheckd.
func Handler(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/v1/evaluate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, `{"error":"failed to read request"}`, http.StatusBadRequest)
			return
		}
		r.Body.Close()

		var req evaluateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
			return
		}

		settings, err := applyOverrides(cfg.Settings(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		decision, err := cfg.Engine.EvaluateOrigin(r.Context(), req.Text, settings,
			engine.Origin{Platform: req.Platform, URL: req.URL})
		if err != nil {
			// Only cancellation reaches here. The client is usually gone,
			// but the status makes the no-decision outcome explicit rather
			// than an implicit empty 200.
			logger.Debug("evaluation abandoned", "err", err)
			writeError(w, statusClientClosedRequest, "evaluation cancelled")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(decision)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// applyOverrides layers per-request policy overrides onto the configured
// settings, rejecting unknown enum strings.
func applyOverrides(settings policy.Settings, req evaluateRequest) (policy.Settings, error) {
	if req.Mode != "" {
		mode, err := policy.ParseMode(req.Mode)
		if err != nil {
			return settings, err
		}
		settings.LocalMode = mode
	}
	if req.Strategy != "" {
		strategy, err := redactor.ParseStrategy(req.Strategy)
		if err != nil {
			return settings, err
		}
		settings.RedactionStrategy = strategy
	}
	if len(req.EnabledTypes) > 0 {
		merged := make(map[pii.Kind]bool, len(settings.EnabledTypes)+len(req.EnabledTypes))
		for k, v := range settings.EnabledTypes {
			merged[k] = v
		}
		for name, on := range req.EnabledTypes {
			kind, err := pii.ParseKind(name)
			if err != nil {
				return settings, err
			}
			merged[kind] = on
		}
		settings.EnabledTypes = merged
	}
	return settings, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
