package domain

import "encoding/json"

// Verdict is the outcome of one detector against one input. A denial carries
// a non-empty, human-readable reason used verbatim in the blocked response.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the zero-cost allowing verdict.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

// Deny builds a denying verdict with the given reason.
func Deny(reason string) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

// ScanInput is what a signature sees: the tool input reduced to a canonical
// searchable string, plus the call context.
type ScanInput struct {
	Text   string
	Tool   string
	Server ServerInfo
}

// Signature is an independent, stateless detector of one malicious pattern.
// Signatures never depend on each other's results; the engine runs every
// enabled signature and aggregates.
type Signature interface {
	ID() string
	Name() string
	Detect(input ScanInput) Verdict
}

// VerificationOutcome aggregates the decision for a single message.
// When Modified is set, Message is a full replacement for the original.
type VerificationOutcome struct {
	Blocked  bool
	Reason   string
	Modified bool
	Message  json.RawMessage
}
