package domain

import "time"

// VerifyFlow labels which direction of a tool call was verified.
type VerifyFlow string

const (
	// VerifyFlowRequest labels verification of a client→server call.
	VerifyFlowRequest VerifyFlow = "request"
	// VerifyFlowResponse labels verification of a server→client result.
	VerifyFlowResponse VerifyFlow = "response"
)

// VerifyOutcomeLabel labels how a verification ended.
type VerifyOutcomeLabel string

const (
	// VerifyOutcomeAllowed indicates the message was forwarded unchanged.
	VerifyOutcomeAllowed VerifyOutcomeLabel = "allowed"
	// VerifyOutcomeBlocked indicates the message was replaced by a denial.
	VerifyOutcomeBlocked VerifyOutcomeLabel = "blocked"
	// VerifyOutcomeModified indicates a rewritten message was forwarded.
	VerifyOutcomeModified VerifyOutcomeLabel = "modified"
	// VerifyOutcomeFailedOpen indicates the decision service failed and the
	// message was forwarded by policy.
	VerifyOutcomeFailedOpen VerifyOutcomeLabel = "failed_open"
)

// Metrics receives measurements from the verification path. Implementations
// must be safe for concurrent use.
type Metrics interface {
	RecordVerification(flow VerifyFlow, signature string, outcome VerifyOutcomeLabel, duration time.Duration)
	RecordRegisteredTools(serverName string, count int)
}
