package enums

// OutboxDLQErrorReason records why the publisher parked an event in the
// dead-letter table.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks events that kept failing until the
	// retry budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks events no retry could ever fix,
	// such as an unresolvable event type.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
