// Package risk maps a set of detected entities to a bounded numeric risk
// score. It is pure and deterministic so it can be tested independently of
// the network layer.
package risk

import (
	"math"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
)

// weights are fixed per-kind heuristics. They are constants, not tuned
// business logic; adjust here if a deployment needs different emphasis.
var weights = map[pii.Kind]float64{
	pii.KindSSN:         30,
	pii.KindCreditCard:  30,
	pii.KindPassword:    25,
	pii.KindAPIKey:      25,
	pii.KindEmail:       15,
	pii.KindPhone:       15,
	pii.KindName:        10,
	pii.KindAddress:     10,
	pii.KindDateOfBirth: 10,
	pii.KindIPAddress:   5,
}

const defaultWeight = 10

// Score computes min(100, round(Σ weight(kind)·confidence)) over the given
// entities. Empty input yields 0.
func Score(entities []pii.Entity) int {
	if len(entities) == 0 {
		return 0
	}

	var sum float64
	for _, e := range entities {
		w, ok := weights[e.Kind]
		if !ok {
			w = defaultWeight
		}
		sum += w * e.Confidence
	}

	score := int(math.Round(sum))
	if score > 100 {
		score = 100
	}
	return score
}
