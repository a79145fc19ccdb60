package detect

// failure classes for one attempt against the detection service.
const (
	failureRetryable = "retryable" // 5xx, 429, transport errors
	failureTerminal  = "terminal"  // other 4xx, malformed response body
)

// classifyStatus maps an HTTP status code to a failure class. 2xx is not a
// failure and must be handled before calling this.
func classifyStatus(status int) string {
	if status == 429 || status >= 500 {
		return failureRetryable
	}
	return failureTerminal
}

// Termination enumerates why a scan loop ended. It exists so retry behavior
// can be asserted in tests without real network timing.
type Termination string

const (
	TerminationSuccess   Termination = "success"
	TerminationTerminal  Termination = "terminal_error"
	TerminationExhausted Termination = "attempts_exhausted"
	TerminationCancelled Termination = "cancelled"
)
