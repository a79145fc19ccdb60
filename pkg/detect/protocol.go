package detect

import (
	"encoding/json"
	"fmt"

	"github.com/nostalgicskinco/precheck-engine/pkg/patterns"
	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	"github.com/nostalgicskinco/precheck-engine/pkg/policy"
	"github.com/nostalgicskinco/precheck-engine/pkg/risk"
)

// precheckRequest is the body POSTed to {base_url}/precheck.
type precheckRequest struct {
	Tool         string            `json:"tool"`
	Scope        string            `json:"scope"`
	RawText      string            `json:"raw_text"`
	Tags         []string          `json:"tags"`
	CorrID       string            `json:"corr_id"`
	PolicyConfig map[string]string `json:"policy_config,omitempty"`
}

// precheckResponse covers both response shapes the service may return:
// raw detections or a pre-computed decision.
type precheckResponse struct {
	// Raw-detections shape.
	HasPII     *bool             `json:"has_pii,omitempty"`
	Detections []remoteDetection `json:"detections,omitempty"`

	// Decision shape.
	Decision string         `json:"decision,omitempty"`
	Reasons  []string       `json:"reasons,omitempty"`
	Payload  *remotePayload `json:"payload,omitempty"`
}

type remoteDetection struct {
	Type       string          `json:"type"`
	Value      string          `json:"value"`
	Confidence float64         `json:"confidence"`
	Position   *remotePosition `json:"position,omitempty"`
}

type remotePosition struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type remotePayload struct {
	TransformedText string `json:"transformed_text"`
}

// policyConfig derives the per-type action table sent to the service.
// Enabled kinds inherit the local mode translated to the remote vocabulary;
// disabled kinds always map to pass_through.
func policyConfig(settings policy.Settings) map[string]string {
	action := "pass_through"
	switch settings.LocalMode {
	case policy.ModeBlock:
		action = "block"
	case policy.ModeRedact:
		action = "redact"
	}

	table := make(map[string]string, len(remoteTypeNames))
	for kind, name := range remoteTypeNames {
		if settings.Enabled(kind) {
			table[name] = action
		} else {
			table[name] = "pass_through"
		}
	}
	return table
}

// remoteTypeNames is the lowercase wire vocabulary for each kind.
var remoteTypeNames = map[pii.Kind]string{
	pii.KindEmail:       "email",
	pii.KindPhone:       "phone",
	pii.KindSSN:         "ssn",
	pii.KindCreditCard:  "credit_card",
	pii.KindName:        "name",
	pii.KindAddress:     "address",
	pii.KindDateOfBirth: "date_of_birth",
	pii.KindIPAddress:   "ip_address",
	pii.KindAPIKey:      "api_key",
	pii.KindPassword:    "password",
}

// parseResponse maps a 200 body to a detection result. An unparseable body
// or an unrecognized decision is a terminal failure.
func (c *Client) parseResponse(text string, raw []byte) (pii.DetectionResult, error) {
	var resp precheckResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return pii.DetectionResult{}, fmt.Errorf("detect: malformed response: %w", err)
	}

	if resp.Decision != "" {
		return c.parseDecision(text, resp)
	}
	if resp.HasPII != nil || resp.Detections != nil {
		return parseDetections(text, resp), nil
	}
	return pii.DetectionResult{}, fmt.Errorf("detect: response has neither detections nor decision")
}

func (c *Client) parseDecision(text string, resp precheckResponse) (pii.DetectionResult, error) {
	switch pii.RemoteAction(resp.Decision) {
	case pii.RemoteAllow:
		return pii.DetectionResult{
			Source:        pii.SourceRemoteDecision,
			RemoteAction:  pii.RemoteAllow,
			RemoteReasons: resp.Reasons,
		}, nil
	case pii.RemoteBlock:
		return pii.DetectionResult{
			HasPII:        true,
			Source:        pii.SourceRemoteDecision,
			RemoteAction:  pii.RemoteBlock,
			RemoteReasons: resp.Reasons,
		}, nil
	case pii.RemoteTransform:
		if resp.Payload != nil && resp.Payload.TransformedText != "" {
			return pii.DetectionResult{
				HasPII:          true,
				Source:          pii.SourceRemoteDecision,
				RemoteAction:    pii.RemoteTransform,
				RemoteReasons:   resp.Reasons,
				TransformedText: resp.Payload.TransformedText,
			}, nil
		}
		// Transform without a usable payload: degrade to scanning the
		// original text locally so the resolver can redact by strategy.
		// A remote transform intent never silently becomes allow.
		local := patterns.Detect(text)
		return pii.DetectionResult{
			HasPII:        local.HasPII,
			Entities:      local.Entities,
			RiskScore:     local.RiskScore,
			Source:        pii.SourceRemoteDecision,
			RemoteAction:  pii.RemoteTransform,
			RemoteReasons: resp.Reasons,
		}, nil
	}
	return pii.DetectionResult{}, fmt.Errorf("detect: unknown remote decision %q", resp.Decision)
}

// parseDetections maps raw detections 1:1 to entities. Unknown type strings
// become KindUnknown, never dropped. A position is kept only when it is in
// bounds and consistent with the reported value.
func parseDetections(text string, resp precheckResponse) pii.DetectionResult {
	entities := make([]pii.Entity, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		e := pii.Entity{
			Kind:       pii.KindFromRemote(d.Type),
			Value:      d.Value,
			Confidence: d.Confidence,
		}
		if p := d.Position; p != nil && p.Start >= 0 && p.End <= len(text) && p.Start < p.End {
			if d.Value == "" || text[p.Start:p.End] == d.Value {
				e.Span = &pii.Span{Start: p.Start, End: p.End}
			}
		}
		entities = append(entities, e)
	}

	hasPII := len(entities) > 0
	if resp.HasPII != nil {
		hasPII = *resp.HasPII
	}

	return pii.DetectionResult{
		HasPII:    hasPII,
		Entities:  entities,
		RiskScore: risk.Score(entities),
		Source:    pii.SourceRemote,
	}
}
