package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateLoan        OutboxAggregateType = "loan"
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateBookCopy    OutboxAggregateType = "book_copy"
	AggregateFine        OutboxAggregateType = "fine"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLoan,
	AggregateReservation,
	AggregateBookCopy,
	AggregateFine,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLoanCreated          OutboxEventType = "loan_created"
	EventLoanReturned         OutboxEventType = "loan_returned"
	EventLoanExtended         OutboxEventType = "loan_extended"
	EventLoanDueSoon          OutboxEventType = "loan_due_soon"
	EventLoanOverdue          OutboxEventType = "loan_overdue"
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationReady     OutboxEventType = "reservation_ready"
	EventReservationPrepared  OutboxEventType = "reservation_prepared"
	EventReservationFulfilled OutboxEventType = "reservation_fulfilled"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventCopyWithdrawn        OutboxEventType = "copy_withdrawn"
	EventFineAssessed         OutboxEventType = "fine_assessed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLoanCreated,
	EventLoanReturned,
	EventLoanExtended,
	EventLoanDueSoon,
	EventLoanOverdue,
	EventReservationCreated,
	EventReservationReady,
	EventReservationPrepared,
	EventReservationFulfilled,
	EventReservationCancelled,
	EventReservationExpired,
	EventCopyWithdrawn,
	EventFineAssessed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
