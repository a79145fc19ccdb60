// Package pii defines the shared value types of the precheck engine:
// detected entities, detection results, and final decisions. It carries
// no behavior beyond parsing and formatting; every other package depends
// on it and nothing here depends back.
package pii

import "fmt"

// Kind classifies a detected piece of sensitive data.
type Kind string

const (
	KindEmail       Kind = "EMAIL"
	KindPhone       Kind = "PHONE"
	KindSSN         Kind = "SSN"
	KindCreditCard  Kind = "CREDIT_CARD"
	KindName        Kind = "NAME"
	KindAddress     Kind = "ADDRESS"
	KindDateOfBirth Kind = "DATE_OF_BIRTH"
	KindIPAddress   Kind = "IP_ADDRESS"
	KindAPIKey      Kind = "API_KEY"
	KindPassword    Kind = "PASSWORD"
	KindUnknown     Kind = "UNKNOWN"
)

// remoteKinds normalizes the lowercase type vocabulary of the remote
// scanning service. Strings outside this table map to KindUnknown;
// unrecognized kinds are kept, never dropped.
var remoteKinds = map[string]Kind{
	"email":         KindEmail,
	"email_address": KindEmail,
	"phone":         KindPhone,
	"phone_number":  KindPhone,
	"ssn":           KindSSN,
	"us_ssn":        KindSSN,
	"credit_card":   KindCreditCard,
	"card_number":   KindCreditCard,
	"name":          KindName,
	"person":        KindName,
	"address":       KindAddress,
	"location":      KindAddress,
	"date_of_birth": KindDateOfBirth,
	"dob":           KindDateOfBirth,
	"ip_address":    KindIPAddress,
	"ip":            KindIPAddress,
	"api_key":       KindAPIKey,
	"password":      KindPassword,
}

// KindFromRemote maps a remote type string to a Kind.
func KindFromRemote(s string) Kind {
	if k, ok := remoteKinds[s]; ok {
		return k
	}
	return KindUnknown
}

// ParseKind parses an exact Kind string. Unlike KindFromRemote it rejects
// unknown input. It is meant for the configuration boundary, where a typo
// should fail loudly instead of degrading to UNKNOWN.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEmail, KindPhone, KindSSN, KindCreditCard, KindName,
		KindAddress, KindDateOfBirth, KindIPAddress, KindAPIKey,
		KindPassword, KindUnknown:
		return Kind(s), nil
	}
	return "", fmt.Errorf("pii: unknown entity kind %q", s)
}

// Span is a half-open byte-offset range [Start, End) into the original text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Entity is one detected PII occurrence.
//
// Span is nil when only a value-based match is available (e.g. a remote
// detection without position data). When Span is set, the invariant
// text[Span.Start:Span.End] == Value holds for the text the entity was
// extracted from.
type Entity struct {
	Kind       Kind    `json:"kind"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Span       *Span   `json:"span,omitempty"`
}
